// Package screening makes the synchronous pre-ring decision for incoming
// calls. The platform gives us a short window to answer and treats silence
// as allow, so everything on this path is local: the block registry read is
// the only I/O, and a watchdog abandons it if it ever misses the budget.
package screening

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"qcall/internal/blocklist"
	"qcall/internal/call"
	"qcall/internal/calllog"
	"qcall/internal/number"
)

var (
	screenDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qcall_screening_duration_seconds",
		Help:    "Latency of screening decisions",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})

	screenDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qcall_screening_decisions_total",
		Help: "Screening decisions by outcome and reason",
	}, []string{"decision", "reason"})
)

// Decision is the screening verdict.
type Decision string

const (
	Allow Decision = "allow"
	Block Decision = "block"
)

// Call is the minimal view of an incoming call the engine needs.
type Call struct {
	Direction call.Direction
	Handle    string
}

// Response tells the platform what to do with the call. The zero value is a
// plain allow. On block we stop the ring, reject, and suppress the missed
// call alert, but keep the call-log entry so the user can see what happened.
type Response struct {
	Decision         Decision `json:"decision"`
	Reason           string   `json:"reason,omitempty"`
	Disallow         bool     `json:"disallow"`
	Reject           bool     `json:"reject"`
	SkipNotification bool     `json:"skipNotification"`
	SkipCallLog      bool     `json:"skipCallLog"`
}

// SpamChecker flags locally known spam fingerprints. Implementations must
// answer from local data only; this runs inside the screening budget.
type SpamChecker interface {
	IsSpam(ctx context.Context, fingerprint string) (bool, error)
}

// Journal accepts call-log entries without blocking. Blocked calls are
// journaled off the screening path.
type Journal interface {
	Enqueue(entry calllog.Entry)
}

// Engine is the screening decision engine. Reads the block registry, never
// the network; every fault fails open because silently losing a legitimate
// call is worse than letting one ring.
type Engine struct {
	registry blocklist.Store
	journal  Journal
	spam     SpamChecker
	budget   time.Duration
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithJournal records blocked calls into call history.
func WithJournal(journal Journal) Option {
	return func(e *Engine) {
		e.journal = journal
	}
}

// WithSpamChecker enables auto-blocking of locally flagged spam numbers.
func WithSpamChecker(spam SpamChecker) Option {
	return func(e *Engine) {
		e.spam = spam
	}
}

// WithBudget overrides the default 250ms decision budget.
func WithBudget(budget time.Duration) Option {
	return func(e *Engine) {
		if budget > 0 {
			e.budget = budget
		}
	}
}

// NewEngine constructs a screening engine over the block registry.
func NewEngine(registry blocklist.Store, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		budget:   250 * time.Millisecond,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type verdict struct {
	block  bool
	reason string
	err    error
}

// Screen decides allow or block for one call. Outgoing calls are never
// screened. The registry read runs under a watchdog; if it misses the
// budget the call is allowed and the read abandoned.
func (e *Engine) Screen(ctx context.Context, c Call) Response {
	start := time.Now()
	defer func() {
		screenDuration.Observe(time.Since(start).Seconds())
	}()

	if c.Direction != call.DirectionIncoming {
		return e.allow("unscreened_outgoing")
	}

	fp := number.Fingerprint(c.Handle)
	if fp == "" {
		return e.allow("empty_fingerprint")
	}

	results := make(chan verdict, 1)
	go func() {
		results <- e.evaluate(ctx, fp)
	}()

	timer := time.NewTimer(e.budget)
	defer timer.Stop()

	select {
	case v := <-results:
		if v.err != nil {
			e.logger.Error("screening fault; failing open", "error", v.err, "fingerprint", fp)
			return e.allow("fail_open")
		}
		if !v.block {
			return e.allow("not_blocked")
		}
		e.logger.Info("blocking incoming call", "fingerprint", fp, "reason", v.reason)
		e.journalBlocked(c, fp)
		screenDecisions.WithLabelValues(string(Block), v.reason).Inc()
		return Response{
			Decision:         Block,
			Reason:           v.reason,
			Disallow:         true,
			Reject:           true,
			SkipNotification: true,
			SkipCallLog:      false,
		}
	case <-timer.C:
		e.logger.Warn("screening budget exceeded; failing open", "fingerprint", fp, "budget", e.budget)
		return e.allow("budget_exceeded")
	}
}

func (e *Engine) evaluate(ctx context.Context, fp string) verdict {
	blocked, err := e.registry.IsBlocked(ctx, fp)
	if err != nil {
		return verdict{err: err}
	}
	if blocked {
		return verdict{block: true, reason: "registry"}
	}
	if e.spam != nil {
		isSpam, err := e.spam.IsSpam(ctx, fp)
		if err != nil {
			// Spam data is best-effort; a fault here never blocks.
			e.logger.Warn("spam check failed", "error", err, "fingerprint", fp)
			return verdict{}
		}
		if isSpam {
			return verdict{block: true, reason: "spam"}
		}
	}
	return verdict{}
}

func (e *Engine) allow(reason string) Response {
	screenDecisions.WithLabelValues(string(Allow), reason).Inc()
	return Response{Decision: Allow, Reason: reason}
}

func (e *Engine) journalBlocked(c Call, fp string) {
	if e.journal == nil {
		return
	}
	now := time.Now()
	e.journal.Enqueue(calllog.Entry{
		Number:      c.Handle,
		Fingerprint: fp,
		Direction:   string(call.DirectionIncoming),
		Outcome:     calllog.OutcomeBlocked,
		StartedAt:   now,
		EndedAt:     now,
	})
}
