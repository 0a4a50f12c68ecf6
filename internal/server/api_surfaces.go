package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"worshiplive/internal/preloader"
	"worshiplive/internal/surfaces"
)

// withSurface resolves the worship in the path and holds its surfaces for
// the duration of fn.
func (s *Server) withSurface(w http.ResponseWriter, r *http.Request, fn func(*surfaces.Surface)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	wp, err := s.store.GetWorship(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	surface, release, err := s.surfaces.Acquire(wp.Topic())
	if errors.Is(err, surfaces.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	defer release()
	fn(surface)
}

func (s *Server) handleDisplaySnapshot(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(sf *surfaces.Surface) {
		writeJSON(w, http.StatusOK, sf.Display().Snapshot())
	})
}

func (s *Server) handleDisplayStream(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(sf *surfaces.Surface) {
		ch := sf.Display().Subscribe()
		defer sf.Display().Unsubscribe(ch)
		streamSSE(w, r, sf.Display().Snapshot(), ch)
	})
}

// handleSurfaceStatus reports how the topic's surfaces are connected and
// who is watching.
func (s *Server) handleSurfaceStatus(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(sf *surfaces.Surface) {
		resp := struct {
			surfaces.Status
			HubMembers int `json:"hub_members"`
		}{Status: sf.Status()}
		if s.hub != nil {
			resp.HubMembers = s.hub.Members(sf.Topic())
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) handleProjectionStatus(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(sf *surfaces.Surface) {
		writeJSON(w, http.StatusOK, sf.Projector().Status())
	})
}

func (s *Server) handleProjectionStream(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(sf *surfaces.Surface) {
		ch := sf.Projector().Subscribe()
		defer sf.Projector().Unsubscribe(ch)
		streamSSE(w, r, sf.Projector().Status(), ch)
	})
}

// handleProjectionFrame serves the current slide's preloaded media.
func (s *Server) handleProjectionFrame(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(sf *surfaces.Surface) {
		slide, asset, err := sf.Projector().Frame()
		switch {
		case errors.Is(err, preloader.ErrNotReady):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, preloader.ErrAssetUnavailable):
			writeError(w, http.StatusBadGateway, err.Error())
			return
		case err != nil:
			writeStoreError(w, r, err)
			return
		}
		ct := asset.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Slide-Index", strconv.Itoa(slide.OrderIndex))
		w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
		_, _ = w.Write(asset.Data)
	})
}

func (s *Server) handleProjectionNext(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*preloader.Projector).Next)
}

func (s *Server) handleProjectionPrev(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*preloader.Projector).Prev)
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, move func(*preloader.Projector, context.Context) error) {
	s.withSurface(w, r, func(sf *surfaces.Surface) {
		err := move(sf.Projector(), r.Context())
		switch {
		case errors.Is(err, preloader.ErrNotReady), errors.Is(err, preloader.ErrOutOfRange):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sf.Projector().Status())
	})
}
