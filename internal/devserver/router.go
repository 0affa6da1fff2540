package devserver

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the analysis service routes on a chi mux
func NewRouter(h *Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(allowAnyOrigin)
	r.Use(middleware.RequestID)
	r.Use(exposeRequestID)
	r.Use(accessLog(logger))
	r.Use(recoverJSON(logger))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/upload", h.Upload)
	r.Post("/query", h.Query)
	r.Get("/tables/{tableID}/info", h.TableInfo)

	return r
}
