package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"worshiplive/internal/models"
)

// handleTopicSocket joins a websocket client to a worship topic on the hub.
func (s *Server) handleTopicSocket(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if _, err := models.ParseWorshipTopic(topic); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.hub.ServeWS(w, r, topic, s.checkOrigin)
}

// checkOrigin admits non-browser clients, same-host pages and the configured
// CORS origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.corsOrigin != "" && origin == s.corsOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
