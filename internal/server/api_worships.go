package server

import (
	"net/http"
	"strconv"

	"worshiplive/internal/control"
	"worshiplive/internal/logging"
	"worshiplive/internal/models"
)

func (s *Server) handleStartWorship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	wp, err := s.control.StartWorship(r.Context(), req.Title)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if op := OperatorFromContext(r.Context()); op != nil {
		logging.L().Info().Str("operator", op.Username).Int64("worship_id", wp.ID).Msg("worship started by operator")
	}
	writeJSON(w, http.StatusCreated, wp)
}

func (s *Server) handleFinishWorship(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.control.FinishWorship(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHighlightVerse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req control.Highlight
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := s.control.HighlightVerse(r.Context(), id, req)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handlePresentHymn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req control.HymnRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := s.control.PresentHymn(r.Context(), id, req)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleStartOffering(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.control.StartOffering(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleFinishOffering(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	activityID, ok := pathID(w, r, "activityID")
	if !ok {
		return
	}
	if err := s.control.FinishOffering(r.Context(), id, activityID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.AdminNoticeReceived
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.control.SendNotice(r.Context(), id, req.Message, req.ImageBase64)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleListNotices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}
	notices, err := s.control.ListNotices(r.Context(), id, limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notices)
}

func (s *Server) handlePointSlide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.SlidePointer
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.control.PointSlide(r.Context(), id, req); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleSubmitPrayerRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Request string `json:"request"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.control.SubmitPrayerRequest(r.Context(), id, req.Name, req.Request)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPrayerRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := s.control.ListPrayerRequests(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
