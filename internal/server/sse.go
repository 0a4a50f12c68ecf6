package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"worshiplive/internal/logging"
)

const sseHeartbeat = 25 * time.Second

// streamSSE writes current and then every value from updates as server-sent
// events until the client leaves or updates is closed.
func streamSSE[T any](w http.ResponseWriter, r *http.Request, current T, updates <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	send := func(v T) bool {
		data, err := json.Marshal(v)
		if err != nil {
			logging.L().Warn().Err(err).Msg("encoding sse event")
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(current) {
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case v, ok := <-updates:
			if !ok {
				return
			}
			if !send(v) {
				return
			}
		}
	}
}
