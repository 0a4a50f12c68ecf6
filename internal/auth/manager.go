// Package auth handles operator accounts: password setup and login, and the
// cookie session that gates the control surface.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/models"
	"worshiplive/internal/store"
)

const (
	CookieName        = "worshiplive_session"
	DefaultSessionTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no session")
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if n > 32 {
		return fmt.Errorf("username must be at most 32 characters")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

type Manager struct {
	store *store.Store
	ttl   time.Duration
	log   zerolog.Logger
}

func NewManager(st *store.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{store: st, ttl: ttl, log: logging.Component("auth")}
}

func (m *Manager) SetupRequired() (bool, error) {
	n, err := m.store.CountOperators()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Setup creates the first operator. It returns store.ErrSetupComplete once
// any operator exists.
func (m *Manager) Setup(username, password string) (*models.Operator, error) {
	if err := validateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if err := ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return m.store.CreateFirstOperator(username, hash)
}

// AddOperator creates a further operator account.
func (m *Manager) AddOperator(username, password string) (*models.Operator, error) {
	if err := validateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if err := ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return m.store.CreateOperator(username, hash)
}

// Authenticate always runs one argon2 verification, against a dummy hash for
// unknown usernames.
func (m *Manager) Authenticate(username, password string) (*models.Operator, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	op, hash, err := m.store.GetOperatorByUsername(username)
	found := err == nil && hash != ""
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if !found {
		hash = dummyHash
	}
	ok, _ := VerifyPassword(password, hash)
	if !found || !ok {
		return nil, ErrInvalidCredentials
	}
	return op, nil
}

// StartSession stores a session for the operator and sets its cookie.
func (m *Manager) StartSession(w http.ResponseWriter, r *http.Request, operatorID int64) error {
	token, err := m.store.CreateSession(r.Context(), operatorID, time.Now().UTC().Add(m.ttl))
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Operator resolves the request's session cookie and refreshes its last use.
func (m *Manager) Operator(r *http.Request) (*models.Operator, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	op, err := m.store.SessionOperator(r.Context(), cookie.Value)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrNoSession
	}
	return op, err
}

func (m *Manager) EndSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if err := m.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			m.log.Warn().Err(err).Msg("deleting session")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
