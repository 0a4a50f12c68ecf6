package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"worshiplive/internal/auth"
	"worshiplive/internal/logging"
	"worshiplive/internal/models"
)

type contextKey string

const operatorContextKey contextKey = "operator"

func OperatorFromContext(ctx context.Context) *models.Operator {
	op, _ := ctx.Value(operatorContextKey).(*models.Operator)
	return op
}

// RequireOperator rejects requests without a valid operator session.
func RequireOperator(mgr *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, err := mgr.Operator(r)
			if errors.Is(err, auth.ErrNoSession) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err != nil {
				logging.L().Error().Err(err).Msg("resolving session")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			ctx := context.WithValue(r.Context(), operatorContextKey, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Failed logins allowed per IP within loginWindow.
const (
	loginFailures = 10
	loginWindow   = 15 * time.Minute
)

// statusRecorder wraps ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// limitFailures only counts requests answered with 4xx/5xx toward the limit.
func limitFailures(rl *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if rl.blocked(ip) {
				w.Header().Set("Retry-After", rl.retryAfter(ip))
				writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= 400 {
				rl.record(ip)
			}
		})
	}
}
