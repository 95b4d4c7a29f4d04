package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qcall/internal/call"
	"qcall/internal/dispatch"
	"qcall/internal/screening"
)

// EventType is the kind of telephony callback the bridge delivers.
type EventType string

const (
	EventCallAdded    EventType = "call_added"
	EventStateChanged EventType = "state_changed"
	EventCallRemoved  EventType = "call_removed"
)

// TelephonyEvent is the bridge's callback payload. Headless marks events
// delivered while no UI is up, which triggers the background dispatch path.
type TelephonyEvent struct {
	Type      EventType      `json:"type"`
	Direction call.Direction `json:"direction,omitempty"`
	Number    string         `json:"number,omitempty"`
	Status    call.Status    `json:"status,omitempty"`
	Headless  bool           `json:"headless,omitempty"`
}

// ScreenRequest asks for a pre-ring verdict on a call.
type ScreenRequest struct {
	Direction call.Direction `json:"direction"`
	Number    string         `json:"number"`
}

// TelephonyHandler receives platform callbacks from the device bridge.
type TelephonyHandler struct {
	machine    *call.Machine
	engine     *screening.Engine
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// NewTelephonyHandler wires the telephony edge. The dispatcher is optional;
// without one, headless events are handled like foreground ones.
func NewTelephonyHandler(machine *call.Machine, engine *screening.Engine, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *TelephonyHandler {
	return &TelephonyHandler{
		machine:    machine,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Register mounts the telephony routes.
func (h *TelephonyHandler) Register(r chi.Router) {
	r.Post("/v1/telephony/events", h.handleEvent)
	r.Post("/v1/telephony/screen", h.handleScreen)
}

// handleEvent applies one platform callback to the machine. Screening is
// pre-ring: the bridge asks /v1/telephony/screen before the platform creates
// a call object, so a call_added here is by definition an allowed call.
func (h *TelephonyHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev TelephonyEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}

	switch ev.Type {
	case EventCallAdded:
		rec, err := h.machine.CallAdded(r.Context(), ev.Direction, ev.Number)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ev.Headless && h.dispatcher != nil {
			// The identify-and-handoff sequence runs on its own budget,
			// detached from this request.
			go h.dispatcher.Handle(context.WithoutCancel(r.Context()), ev.Direction, ev.Number)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"callId": rec.ID,
			"status": rec.Status,
			"name":   rec.DisplayName,
		})
	case EventStateChanged:
		if err := h.machine.StateChanged(r.Context(), ev.Status); err != nil {
			status := http.StatusConflict
			if !errors.Is(err, call.ErrNoActiveCall) && !errors.Is(err, call.ErrInvalidTransition) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case EventCallRemoved:
		if err := h.machine.CallRemoved(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusBadRequest, "unknown event type")
	}
}

func (h *TelephonyHandler) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid screen request")
		return
	}

	resp := h.engine.Screen(r.Context(), screening.Call{
		Direction: req.Direction,
		Handle:    req.Number,
	})
	writeJSON(w, http.StatusOK, resp)
}
