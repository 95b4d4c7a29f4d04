package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"qcall/internal/call"
	"qcall/internal/calllog"
)

// CallAction is a user intent toward the current call.
type CallAction string

const (
	ActionAccept  CallAction = "accept"
	ActionDecline CallAction = "decline"
)

// ActionRequest carries one user action, typically from a notification
// button press relayed by the bridge.
type ActionRequest struct {
	Action CallAction `json:"action"`
}

// CallsHandler exposes the current call and its history.
type CallsHandler struct {
	machine *call.Machine
	log     calllog.Store
	logger  *slog.Logger
}

// NewCallsHandler wires the calls edge.
func NewCallsHandler(machine *call.Machine, log calllog.Store, logger *slog.Logger) *CallsHandler {
	return &CallsHandler{machine: machine, log: log, logger: logger}
}

// Register mounts the call routes.
func (h *CallsHandler) Register(r chi.Router) {
	r.Post("/v1/calls/actions", h.handleAction)
	r.Get("/v1/calls/current", h.handleCurrent)
	r.Get("/v1/calls/log", h.handleLog)
}

func (h *CallsHandler) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid action body")
		return
	}

	var err error
	switch req.Action {
	case ActionAccept:
		err = h.machine.Accept(r.Context())
	case ActionDecline:
		err = h.machine.Decline(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	switch {
	case err == nil:
		// The state change arrives later via the bridge callback; accepted
		// means the command went out, nothing more.
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, call.ErrNotRinging), errors.Is(err, call.ErrNotInCall):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("call action failed", "action", req.Action, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *CallsHandler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.machine.Snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no active call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"callId":    rec.ID,
		"number":    rec.RawHandle,
		"name":      rec.DisplayName,
		"direction": rec.Direction,
		"status":    rec.Status,
		"startedAt": rec.StartedAt,
	})
}

func (h *CallsHandler) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.log.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("call log read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "call log unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
