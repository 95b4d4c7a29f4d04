package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"qcall/internal/calllog"
	"qcall/internal/contacts"
	"qcall/internal/number"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qcall_call_transitions_total",
		Help: "Call state transitions applied by the machine",
	}, []string{"status"})

	commandFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qcall_call_command_faults_total",
		Help: "Telephony commands rejected by the platform",
	}, []string{"command"})
)

var (
	// ErrNoActiveCall reports a state change with no call to apply it to.
	ErrNoActiveCall = errors.New("no active call")

	// ErrNotRinging reports an accept outside the ringing state.
	ErrNotRinging = errors.New("call is not ringing")

	// ErrNotInCall reports a decline with nothing to hang up.
	ErrNotInCall = errors.New("no call to hang up")

	// ErrInvalidTransition reports a regression the state graph forbids,
	// e.g. active back to ringing.
	ErrInvalidTransition = errors.New("invalid call state transition")
)

// Machine owns the single current call record and is the only writer of it.
// All three trigger sources (platform callbacks, user actions, background
// dispatch) funnel through the mutex here, so exactly one mutation is in
// flight at a time and events go out in the order transitions were applied.
type Machine struct {
	mu           sync.Mutex
	record       *Record
	lookupCancel context.CancelFunc

	commands    Commands
	resolver    contacts.Resolver
	subscribers []Subscriber
	logger      *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithResolver sets the contact lookup collaborator. Without one every
// caller shows as Unknown.
func WithResolver(resolver contacts.Resolver) MachineOption {
	return func(m *Machine) {
		m.resolver = resolver
	}
}

// NewMachine constructs a call state machine around the telephony command
// port.
func NewMachine(commands Commands, opts ...MachineOption) (*Machine, error) {
	if commands == nil {
		return nil, fmt.Errorf("telephony commands port is required")
	}
	m := &Machine{
		commands: commands,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Subscribe registers an event subscriber. Call during wiring, before any
// call events flow; the subscriber list is not safe to grow afterwards.
func (m *Machine) Subscribe(sub Subscriber) {
	m.subscribers = append(m.subscribers, sub)
}

// CallAdded admits a new call. Incoming calls enter ringing, outgoing calls
// enter dialing. If a non-terminal call is still around (the platform can
// re-deliver or overlap on flaky radios) the old record is forced to
// disconnected first; this is a single-call device model.
func (m *Machine) CallAdded(ctx context.Context, direction Direction, rawHandle string) (Record, error) {
	var status Status
	switch direction {
	case DirectionIncoming:
		status = StatusRinging
	case DirectionOutgoing:
		status = StatusDialing
	default:
		return Record{}, fmt.Errorf("unknown call direction %q", direction)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record != nil && m.record.Status != StatusDisconnected {
		m.logger.Warn("call added while another call is live; forcing disconnect",
			"old_number", m.record.RawHandle, "old_status", m.record.Status)
		m.finishLocked()
	}

	name, unknown := m.resolveName(ctx, rawHandle)
	rec := &Record{
		ID:          uuid.New(),
		RawHandle:   rawHandle,
		Fingerprint: number.Fingerprint(rawHandle),
		Direction:   direction,
		DisplayName: name,
		IsUnknown:   unknown,
		Status:      status,
		StartedAt:   time.Now(),
	}
	m.record = rec
	m.publishLocked(Event{
		CallID:    rec.ID,
		Status:    rec.Status,
		Number:    rec.RawHandle,
		Name:      rec.DisplayName,
		Direction: rec.Direction,
		StartedAt: rec.StartedAt,
	})
	return *rec, nil
}

// StateChanged applies a platform state callback. A change into the state
// the machine already occupies is a no-op, which makes duplicate and
// out-of-order delivery from the platform harmless.
func (m *Machine) StateChanged(ctx context.Context, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		if status == StatusDisconnected {
			// Late disconnect for a call we already tore down.
			return nil
		}
		return ErrNoActiveCall
	}
	if m.record.Status == status {
		return nil
	}

	switch status {
	case StatusActive:
		if m.record.Status != StatusRinging && m.record.Status != StatusDialing {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.record.Status, status)
		}
		m.record.Status = StatusActive
		m.record.ConnectedAt = time.Now()
		m.publishLocked(Event{
			CallID:    m.record.ID,
			Status:    StatusActive,
			Number:    m.record.RawHandle,
			Name:      m.record.DisplayName,
			Direction: m.record.Direction,
			StartedAt: m.record.StartedAt,
		})
		return nil
	case StatusDisconnected:
		m.finishLocked()
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.record.Status, status)
	}
}

// CallRemoved handles the platform dropping the call object. Equivalent to a
// disconnect; harmless if the record is already gone.
func (m *Machine) CallRemoved(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil
	}
	m.finishLocked()
	return nil
}

// Accept issues the answer command for a ringing call. Local state does not
// change here; the platform's active callback drives the transition, so the
// UI must tolerate the gap between intent and state.
func (m *Machine) Accept(ctx context.Context) error {
	m.mu.Lock()
	if m.record == nil || m.record.Status != StatusRinging {
		m.mu.Unlock()
		return ErrNotRinging
	}
	ev := Event{
		CallID:    m.record.ID,
		Status:    m.record.Status,
		Number:    m.record.RawHandle,
		Name:      m.record.DisplayName,
		Direction: m.record.Direction,
	}
	m.mu.Unlock()

	if err := m.commands.Answer(ctx); err != nil {
		commandFaultsTotal.WithLabelValues("answer").Inc()
		m.logger.Error("answer command rejected", "error", err, "number", ev.Number)
		ev.Fault = "answer"
		m.publish(ev)
		return fmt.Errorf("answer call: %w", err)
	}
	return nil
}

// Decline issues the hangup command. Valid while ringing, dialing, or
// active; the terminal state still arrives via the platform callback. Any
// pending background identification for the call is cancelled best-effort.
func (m *Machine) Decline(ctx context.Context) error {
	m.mu.Lock()
	if m.record == nil || m.record.Status == StatusDisconnected {
		m.mu.Unlock()
		return ErrNotInCall
	}
	if m.record.Status == StatusRinging {
		m.record.declined = true
	}
	m.cancelLookupLocked()
	ev := Event{
		CallID:    m.record.ID,
		Status:    m.record.Status,
		Number:    m.record.RawHandle,
		Name:      m.record.DisplayName,
		Direction: m.record.Direction,
	}
	m.mu.Unlock()

	if err := m.commands.Hangup(ctx); err != nil {
		commandFaultsTotal.WithLabelValues("hangup").Inc()
		m.logger.Error("hangup command rejected", "error", err, "number", ev.Number)
		ev.Fault = "hangup"
		m.publish(ev)
		return fmt.Errorf("hang up call: %w", err)
	}
	return nil
}

// RegisterLookupCancel hands the machine the cancel function for a pending
// background identification. If the call is already gone the lookup is
// cancelled on the spot.
func (m *Machine) RegisterLookupCancel(cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil || m.record.Status == StatusDisconnected {
		cancel()
		return
	}
	m.lookupCancel = cancel
}

// Snapshot returns a copy of the current record, if any.
func (m *Machine) Snapshot() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return Record{}, false
	}
	return *m.record, true
}

// finishLocked moves the record to disconnected, emits the terminal event
// with its call-history outcome, and clears the slot so the machine can
// accept the next call. Callers hold m.mu.
func (m *Machine) finishLocked() {
	rec := m.record
	rec.Status = StatusDisconnected
	m.cancelLookupLocked()
	m.publishLocked(Event{
		CallID:    rec.ID,
		Status:    StatusDisconnected,
		Number:    rec.RawHandle,
		Name:      rec.DisplayName,
		Direction: rec.Direction,
		Outcome:   rec.outcome(),
		StartedAt: rec.StartedAt,
		EndedAt:   time.Now(),
	})
	m.record = nil
}

func (m *Machine) cancelLookupLocked() {
	if m.lookupCancel != nil {
		m.lookupCancel()
		m.lookupCancel = nil
	}
}

func (m *Machine) resolveName(ctx context.Context, rawHandle string) (string, bool) {
	if m.resolver == nil {
		return "Unknown", true
	}
	name, err := m.resolver.ResolveName(ctx, rawHandle)
	if err != nil || name == "" {
		if err != nil && !errors.Is(err, contacts.ErrNotFound) {
			// Lookup faults are never fatal to call handling.
			m.logger.Warn("contact lookup failed", "error", err)
		}
		return "Unknown", true
	}
	return name, false
}

func (m *Machine) publishLocked(ev Event) {
	transitionsTotal.WithLabelValues(string(ev.Status)).Inc()
	m.publish(ev)
}

func (m *Machine) publish(ev Event) {
	for _, sub := range m.subscribers {
		sub.OnCallEvent(ev)
	}
}

func (r *Record) outcome() calllog.Outcome {
	if !r.ConnectedAt.IsZero() {
		return calllog.OutcomeAnswered
	}
	if r.Direction == DirectionOutgoing {
		return calllog.OutcomeDialed
	}
	if r.declined {
		return calllog.OutcomeDeclined
	}
	return calllog.OutcomeMissed
}
