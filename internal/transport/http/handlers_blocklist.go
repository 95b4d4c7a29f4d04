package httptransport

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"qcall/internal/blocklist"
)

// BlocklistHandler manages the user's block registry.
type BlocklistHandler struct {
	service *blocklist.Service
	logger  *slog.Logger
}

// NewBlocklistHandler wires the blocklist edge.
func NewBlocklistHandler(service *blocklist.Service, logger *slog.Logger) *BlocklistHandler {
	return &BlocklistHandler{service: service, logger: logger}
}

// Register mounts the blocklist routes. The number appears in the path
// URL-encoded; any formatting is accepted and canonicalized downstream.
func (h *BlocklistHandler) Register(r chi.Router) {
	r.Put("/v1/blocklist/{number}", h.handleBlock)
	r.Delete("/v1/blocklist/{number}", h.handleUnblock)
	r.Get("/v1/blocklist", h.handleList)
}

func (h *BlocklistHandler) handleBlock(w http.ResponseWriter, r *http.Request) {
	num, ok := pathNumber(w, r)
	if !ok {
		return
	}
	if err := h.service.Block(r.Context(), num); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BlocklistHandler) handleUnblock(w http.ResponseWriter, r *http.Request) {
	num, ok := pathNumber(w, r)
	if !ok {
		return
	}
	if err := h.service.Unblock(r.Context(), num); err != nil {
		h.logger.Error("unblock failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BlocklistHandler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("blocklist read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "blocklist unavailable")
		return
	}
	if entries == nil {
		entries = []blocklist.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func pathNumber(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "number")
	num, err := url.PathUnescape(raw)
	if err != nil || num == "" {
		writeError(w, http.StatusBadRequest, "invalid number")
		return "", false
	}
	return num, true
}
