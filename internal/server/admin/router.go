// Package admin serves the operator HTTP endpoints: health, manual projection
// resync and signature verification.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Maintainer is the projection side as seen by operators.
type Maintainer interface {
	Resync(ctx context.Context, cvID string) error
	VerifyCV(ctx context.Context, cvID string) ([]int64, error)
}

// Pinger reports store readiness.
type Pinger func(ctx context.Context) error

// Handler holds the admin endpoints.
type Handler struct {
	m     Maintainer
	ready Pinger
	log   *zap.Logger
}

// NewHandler constructs Handler. ready may be nil.
func NewHandler(m Maintainer, ready Pinger, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{m: m, ready: ready, log: log}
}

// NewRouter mounts the admin endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, statusResponse{Status: "ok"}) })
	r.Get("/readyz", h.readyz)
	r.Route("/admin/cvs/{cvID}", func(r chi.Router) {
		r.Post("/resync", h.resync)
		r.Get("/verify", h.verify)
	})
	return r
}
