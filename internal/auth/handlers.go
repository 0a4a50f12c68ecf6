package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"worshiplive/internal/models"
	"worshiplive/internal/store"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (m *Manager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	required, err := m.SetupRequired()
	if err != nil {
		m.log.Error().Err(err).Msg("checking setup")
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp := map[string]any{"setup_required": required}
	if op, err := m.Operator(r); err == nil {
		resp["operator"] = op
	}
	writeJSON(w, http.StatusOK, resp)
}

func (m *Manager) HandleSetup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	op, err := m.Setup(req.Username, req.Password)
	switch {
	case errors.Is(err, store.ErrSetupComplete):
		writeJSONError(w, "setup already complete", http.StatusConflict)
		return
	case errors.Is(err, models.ErrInvalid):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		m.log.Error().Err(err).Msg("creating first operator")
		writeJSONError(w, "failed to create operator", http.StatusInternalServerError)
		return
	}
	m.log.Info().Str("username", op.Username).Msg("first operator created")
	m.respondWithSession(w, r, op, http.StatusCreated)
}

func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	op, err := m.Authenticate(req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		writeJSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		m.log.Error().Err(err).Msg("authenticating")
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	m.respondWithSession(w, r, op, http.StatusOK)
}

func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	m.EndSession(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *Manager) respondWithSession(w http.ResponseWriter, r *http.Request, op *models.Operator, status int) {
	if err := m.StartSession(w, r, op.ID); err != nil {
		m.log.Error().Err(err).Msg("creating session")
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, op)
}
