package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"qcall/internal/call"
	"qcall/internal/handoff"
	"qcall/internal/notify"
)

var dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qcall_dispatch_total",
	Help: "Background dispatch outcomes",
}, []string{"result"})

// CancelRegistrar receives the cancel function for an in-flight
// identification so call teardown can abort it.
type CancelRegistrar interface {
	RegisterLookupCancel(cancel context.CancelFunc)
}

// Dispatcher runs the headless path for a call that arrives with no UI in
// the foreground: identify the caller, deep link into the phone screen, and
// fall back to a full-screen notification when the launch does not land.
type Dispatcher struct {
	identifier Identifier
	launcher   handoff.Launcher
	sink       notify.Sink
	registrar  CancelRegistrar
	spamMark   func(rawNumber string)
	logger     *slog.Logger
	timeout    time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTimeout bounds the remote identification step.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithCancelRegistrar lets the call machine abort a dispatch in flight when
// the call ends first.
func WithCancelRegistrar(r CancelRegistrar) Option {
	return func(d *Dispatcher) {
		d.registrar = r
	}
}

// WithSpamMarker records spam verdicts locally so screening can auto-block
// the number next time.
func WithSpamMarker(mark func(rawNumber string)) Option {
	return func(d *Dispatcher) {
		d.spamMark = mark
	}
}

// NewDispatcher wires the headless dispatch path.
func NewDispatcher(identifier Identifier, launcher handoff.Launcher, sink notify.Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		identifier: identifier,
		launcher:   launcher,
		sink:       sink,
		logger:     slog.New(slog.DiscardHandler),
		timeout:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle runs the dispatch sequence for one call. It blocks until the UI is
// up, the fallback notification is posted, or the call went away underneath
// us, whichever comes first. Only call teardown abandons the dispatch; an
// identification timeout still surfaces the call, just without a name.
func (d *Dispatcher) Handle(ctx context.Context, direction call.Direction, rawNumber string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if d.registrar != nil {
		d.registrar.RegisterLookupCancel(cancel)
	}

	identity, err := d.identify(ctx, rawNumber)
	if ctx.Err() != nil {
		// The call ended while we were identifying. Nothing left to surface.
		dispatches.WithLabelValues("abandoned").Inc()
		return
	}

	link := handoff.DeepLink{
		Direction: direction,
		Number:    rawNumber,
		Name:      identity.Name,
		Status:    statusFor(direction),
		Spam:      identity.Spam,
	}

	if err != nil {
		// Identification timed out or failed. The user still gets told
		// about the call, with the raw number standing in for a name.
		d.fallbackNotify(ctx, link)
		return
	}
	if identity.Spam && d.spamMark != nil {
		d.spamMark(rawNumber)
	}

	shown, err := d.launcher.Launch(ctx, link)
	if err == nil && shown {
		dispatches.WithLabelValues("launched").Inc()
		return
	}
	if err != nil {
		d.logger.Warn("ui launch failed, falling back to notification", "error", err)
	}
	if ctx.Err() != nil {
		dispatches.WithLabelValues("abandoned").Inc()
		return
	}

	d.fallbackNotify(ctx, link)
}

// identify runs the remote lookup under its own slice of the budget so a
// slow service delays the hand-off, never swallows it.
func (d *Dispatcher) identify(ctx context.Context, rawNumber string) (Identity, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	identity, err := d.identifier.Identify(lookupCtx, rawNumber)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn("caller identification failed", "error", err)
		}
		return Identity{}, err
	}
	return identity, nil
}

func (d *Dispatcher) fallbackNotify(ctx context.Context, link handoff.DeepLink) {
	title := link.Name
	if title == "" {
		title = link.Number
	}
	body := "Incoming call..."
	if link.Spam {
		body = "Suspected spam call"
	}

	n := notify.Notification{
		ID:         notify.NotificationID,
		ChannelID:  notify.ChannelIncoming.ID,
		Title:      title,
		Body:       body,
		Actions:    []notify.Action{notify.ActionAccept, notify.ActionDecline},
		FullScreen: true,
		Ongoing:    true,
	}
	if err := d.sink.EnsureChannel(ctx, notify.ChannelIncoming); err != nil {
		d.logger.Error("fallback channel creation failed", "error", err)
	}
	if err := d.sink.Post(ctx, n); err != nil {
		dispatches.WithLabelValues("failed").Inc()
		d.logger.Error("fallback notification failed", "error", err)
		return
	}
	dispatches.WithLabelValues("notified").Inc()
}

func statusFor(direction call.Direction) call.Status {
	if direction == call.DirectionOutgoing {
		return call.StatusDialing
	}
	return call.StatusRinging
}
