// Package notify renders the one ongoing notification for the current call.
// It reacts to call machine events: ringing and dialing raise it, active
// updates it in place, disconnected cancels it exactly once. Blocked calls
// never reach this package; screening suppresses them upstream.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"qcall/internal/call"
)

var notificationOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qcall_notifications_total",
	Help: "Notification operations by kind",
}, []string{"op"})

// NotificationID is the single handle reused across a call's lifetime.
const NotificationID = "qcall-call"

// The two channels mirror the platform split between a heads-up incoming
// alert and a quiet ongoing-call notification.
var (
	ChannelIncoming = Channel{
		ID:             "qcall_incoming",
		Name:           "Incoming Calls",
		Description:    "Notifications for incoming calls",
		HighImportance: true,
	}
	ChannelOngoing = Channel{
		ID:          "qcall_ongoing",
		Name:        "Ongoing Calls",
		Description: "Notifications for active calls",
	}
)

// view is one row of the state -> presentation table.
type view struct {
	channel    Channel
	body       string
	actions    []Action
	fullScreen bool
}

var views = map[call.Status]view{
	call.StatusRinging: {
		channel:    ChannelIncoming,
		body:       "Incoming call...",
		actions:    []Action{ActionAccept, ActionDecline},
		fullScreen: true,
	},
	call.StatusDialing: {
		channel: ChannelOngoing,
		body:    "Dialing...",
		actions: []Action{ActionDecline},
	},
	call.StatusActive: {
		channel: ChannelOngoing,
		body:    "Call in progress",
		actions: []Action{ActionDecline},
	},
}

// Presenter drives the sink from call events. OnCallEvent only enqueues;
// all sink I/O happens on the single worker started by Run, which keeps
// per-call event order while never stalling a machine transition.
type Presenter struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
	ops     chan call.Event

	channelsOnce sync.Once

	mu        sync.Mutex
	cancelled uuid.UUID
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) PresenterOption {
	return func(p *Presenter) {
		p.logger = logger
	}
}

// NewPresenter constructs a presenter over a notification sink. Run must be
// started for notifications to render.
func NewPresenter(sink Sink, opts ...PresenterOption) *Presenter {
	p := &Presenter{
		sink:    sink,
		logger:  slog.New(slog.DiscardHandler),
		timeout: 2 * time.Second,
		ops:     make(chan call.Event, 32),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnCallEvent implements call.Subscriber. Never blocks; a full queue drops
// the event with a log line rather than stalling the transition that
// produced it.
func (p *Presenter) OnCallEvent(ev call.Event) {
	if ev.Fault != "" {
		// Command faults are the UI bridge's concern, not the notification's.
		return
	}
	select {
	case p.ops <- ev:
	default:
		notificationOps.WithLabelValues("dropped").Inc()
		p.logger.Warn("notification queue full, dropping event",
			"status", ev.Status, "number", ev.Number)
	}
}

// Run consumes the event queue until ctx is cancelled, then drains whatever
// is still pending so a disconnect never leaves a stale notification up.
func (p *Presenter) Run(ctx context.Context) {
	for {
		select {
		case ev := <-p.ops:
			p.apply(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.ops:
					p.apply(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *Presenter) apply(ev call.Event) {
	switch ev.Status {
	case call.StatusRinging, call.StatusDialing, call.StatusActive:
		p.render(ev)
	case call.StatusDisconnected:
		p.cancel(ev)
	}
}

func (p *Presenter) render(ev call.Event) {
	p.mu.Lock()
	alreadyCancelled := ev.CallID == p.cancelled
	p.mu.Unlock()
	if alreadyCancelled {
		// Late duplicate for a call we already tore down.
		return
	}

	v, ok := views[ev.Status]
	if !ok {
		return
	}

	ctx, stop := context.WithTimeout(context.Background(), p.timeout)
	defer stop()

	p.ensureChannels(ctx)

	n := Notification{
		ID:        NotificationID,
		ChannelID: v.channel.ID,
		Title:     title(ev),
		Body:      v.body,
		Actions:   v.actions,
		// Lock-screen presentation only for incoming calls.
		FullScreen: v.fullScreen && ev.Direction == call.DirectionIncoming,
		Ongoing:    true,
	}

	if err := p.sink.Post(ctx, n); err != nil {
		// One retry after explicitly recreating the channel, then give up;
		// the call proceeds whether or not its notification rendered.
		if cerr := p.sink.EnsureChannel(ctx, v.channel); cerr != nil {
			p.logger.Error("notification channel recreation failed", "error", cerr)
		}
		if err := p.sink.Post(ctx, n); err != nil {
			notificationOps.WithLabelValues("post_failed").Inc()
			p.logger.Error("notification post failed", "error", err, "status", ev.Status)
			return
		}
	}
	notificationOps.WithLabelValues("post").Inc()
}

func (p *Presenter) cancel(ev call.Event) {
	p.mu.Lock()
	if ev.CallID == p.cancelled {
		p.mu.Unlock()
		return
	}
	p.cancelled = ev.CallID
	p.mu.Unlock()

	ctx, stop := context.WithTimeout(context.Background(), p.timeout)
	defer stop()

	if err := p.sink.Cancel(ctx, NotificationID); err != nil {
		p.logger.Error("notification cancel failed", "error", err)
		return
	}
	notificationOps.WithLabelValues("cancel").Inc()
}

func (p *Presenter) ensureChannels(ctx context.Context) {
	p.channelsOnce.Do(func() {
		for _, ch := range []Channel{ChannelIncoming, ChannelOngoing} {
			if err := p.sink.EnsureChannel(ctx, ch); err != nil {
				p.logger.Error("notification channel creation failed", "error", err, "channel", ch.ID)
			}
		}
	})
}

func title(ev call.Event) string {
	if ev.Name != "" && ev.Name != "Unknown" {
		return ev.Name
	}
	if ev.Number != "" {
		return ev.Number
	}
	return "Unknown"
}
