package admin

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type statusResponse struct {
	Status string `json:"status"`
}

type resyncResponse struct {
	CVID   string `json:"cvId"`
	Status string `json:"status"`
}

type verifyResponse struct {
	CVID     string  `json:"cvId"`
	Valid    bool    `json:"valid"`
	Tampered []int64 `json:"tampered"`
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error(), middleware.GetReqID(r.Context()))
			return
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}

func (h *Handler) resync(w http.ResponseWriter, r *http.Request) {
	cvID := strings.TrimSpace(chi.URLParam(r, "cvID"))
	if err := h.m.Resync(r.Context(), cvID); err != nil {
		status, code := mapDomainError(err)
		h.log.Warn("admin resync failed", zap.String("cv_id", cvID), zap.Error(err))
		writeError(w, status, code, err.Error(), middleware.GetReqID(r.Context()))
		return
	}
	h.log.Info("admin resync", zap.String("cv_id", cvID))
	writeJSON(w, http.StatusOK, resyncResponse{CVID: cvID, Status: "rebuilt"})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	cvID := strings.TrimSpace(chi.URLParam(r, "cvID"))
	bad, err := h.m.VerifyCV(r.Context(), cvID)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), middleware.GetReqID(r.Context()))
		return
	}
	if bad == nil {
		bad = []int64{}
	}
	writeJSON(w, http.StatusOK, verifyResponse{CVID: cvID, Valid: len(bad) == 0, Tampered: bad})
}
