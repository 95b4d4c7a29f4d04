package handoff

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

var launches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qcall_ui_launches_total",
	Help: "Foreground bring-up attempts by result",
}, []string{"result"})

// BringUp watches call events and opens the phone UI when a call starts.
// A call triggers at most one launch: the first ringing or dialing event
// wins, later events for the same call are ignored.
type BringUp struct {
	launcher Launcher
	logger   *slog.Logger
	timeout  time.Duration
	fallback func(DeepLink)
	spam     func(number string) bool

	mu       sync.Mutex
	launched uuid.UUID
}

// BringUpOption configures a BringUp.
type BringUpOption func(*BringUp)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) BringUpOption {
	return func(b *BringUp) {
		b.logger = logger
	}
}

// WithFallback installs a handler invoked when the launch fails or the
// device refuses it. Typically posts a full-screen notification instead.
func WithFallback(fn func(DeepLink)) BringUpOption {
	return func(b *BringUp) {
		b.fallback = fn
	}
}

// WithSpamFlag supplies the spam verdict included in the deep link.
func WithSpamFlag(fn func(number string) bool) BringUpOption {
	return func(b *BringUp) {
		b.spam = fn
	}
}

// NewBringUp constructs a bring-up subscriber over a launcher.
func NewBringUp(launcher Launcher, opts ...BringUpOption) *BringUp {
	b := &BringUp{
		launcher: launcher,
		logger:   slog.New(slog.DiscardHandler),
		timeout:  3 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnCallEvent implements call.Subscriber. The launch itself runs off the
// transition path; only the once-per-call bookkeeping happens inline.
func (b *BringUp) OnCallEvent(ev call.Event) {
	if ev.Fault != "" {
		return
	}
	if ev.Status != call.StatusRinging && ev.Status != call.StatusDialing {
		return
	}

	b.mu.Lock()
	if ev.CallID == b.launched {
		b.mu.Unlock()
		return
	}
	b.launched = ev.CallID
	b.mu.Unlock()

	link := DeepLink{
		Direction: ev.Direction,
		Number:    ev.Number,
		Name:      ev.Name,
		Status:    ev.Status,
	}
	if b.spam != nil {
		link.Spam = b.spam(ev.Number)
	}

	go b.launch(link)
}

func (b *BringUp) launch(link DeepLink) {
	ctx, stop := context.WithTimeout(context.Background(), b.timeout)
	defer stop()

	shown, err := b.launcher.Launch(ctx, link)
	switch {
	case err != nil:
		launches.WithLabelValues("error").Inc()
		b.logger.Error("ui launch failed", "error", err, "number", link.Number)
	case !shown:
		launches.WithLabelValues("refused").Inc()
		b.logger.Info("ui launch refused", "number", link.Number)
	default:
		launches.WithLabelValues("ok").Inc()
		return
	}
	if b.fallback != nil {
		b.fallback(link)
	}
}
