package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"worshiplive/internal/version"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	if s.auth != nil {
		s.router.Route("/auth", func(r chi.Router) {
			r.Use(limitBody)
			r.Use(corsMiddleware(s.corsOrigin))
			r.Get("/status", s.auth.HandleStatus)
			r.With(limitFailures(s.loginLimiter)).Post("/setup", s.auth.HandleSetup)
			r.With(limitFailures(s.loginLimiter)).Post("/login", s.auth.HandleLogin)
			r.Post("/logout", s.auth.HandleLogout)
		})
	}

	if s.hub != nil {
		s.router.Get("/ws/topics/{topic}", s.handleTopicSocket)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(jsonContentType)
		r.Use(corsMiddleware(s.corsOrigin))

		r.Get("/bible/versions", s.handleListVersions)
		r.Get("/bible/versions/{id}/books", s.handleListBooks)
		r.Get("/bible/books/{id}/chapters", s.handleListChapters)
		r.Get("/bible/chapters/{id}", s.handleGetChapter)
		r.Get("/hymns", s.handleListHymns)
		r.Get("/hymns/{id}", s.handleGetHymn)
		r.Get("/presentations/{id}", s.handleGetPresentation)
		r.Get("/worships", s.handleListWorships)
		r.Get("/worships/{id}", s.handleGetWorship)

		if s.control != nil {
			r.With(limitRequests(s.prayerLimiter)).Post("/worships/{id}/prayer-requests", s.handleSubmitPrayerRequest)

			r.Group(func(r chi.Router) {
				if s.auth != nil {
					r.Use(RequireOperator(s.auth))
				}
				r.Post("/worships", s.handleStartWorship)
				r.Post("/worships/{id}/finish", s.handleFinishWorship)
				r.Post("/worships/{id}/bible", s.handleHighlightVerse)
				r.Post("/worships/{id}/hymn", s.handlePresentHymn)
				r.Post("/worships/{id}/offering", s.handleStartOffering)
				r.Post("/worships/{id}/offering/{activityID}/finish", s.handleFinishOffering)
				r.Post("/worships/{id}/notices", s.handleSendNotice)
				r.Get("/worships/{id}/notices", s.handleListNotices)
				r.Post("/worships/{id}/slides", s.handlePointSlide)
				r.Get("/worships/{id}/prayer-requests", s.handleListPrayerRequests)
			})
		}

		if s.surfaces != nil {
			r.Get("/worships/{id}/display", s.handleDisplaySnapshot)
			r.Get("/worships/{id}/projection", s.handleProjectionStatus)
			r.Get("/worships/{id}/projection/frame", s.handleProjectionFrame)
			r.Post("/worships/{id}/projection/next", s.handleProjectionNext)
			r.Post("/worships/{id}/projection/prev", s.handleProjectionPrev)

			r.Group(func(r chi.Router) {
				if s.auth != nil {
					r.Use(RequireOperator(s.auth))
				}
				r.Get("/worships/{id}/surface", s.handleSurfaceStatus)
			})
		}
	})

	// Streams stay outside the /api group: no body limit and their own
	// content type.
	if s.surfaces != nil {
		s.router.Group(func(r chi.Router) {
			r.Use(corsMiddleware(s.corsOrigin))
			r.Get("/api/worships/{id}/display/stream", s.handleDisplayStream)
			r.Get("/api/worships/{id}/projection/stream", s.handleProjectionStream)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
