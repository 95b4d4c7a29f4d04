// Package events moves call history off the hot paths. The call machine and
// the screening engine hand entries to the Recorder without blocking; a
// single worker goroutine persists them and forwards them to the optional
// event sink.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"qcall/internal/call"
	"qcall/internal/calllog"
	"qcall/internal/number"
)

var journalEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qcall_journal_entries_total",
	Help: "Call history entries by processing result",
}, []string{"result"})

// Sink receives a copy of every recorded entry, e.g. a Kafka producer.
type Sink interface {
	Publish(ctx context.Context, entry calllog.Entry) error
}

// Recorder buffers call history writes behind a channel. Enqueue never
// blocks; when the buffer is full the entry is dropped with a log line
// rather than stalling a call transition.
type Recorder struct {
	store  calllog.Store
	sink   Sink
	logger *slog.Logger
	ch     chan calllog.Entry
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithSink forwards every recorded entry to the given sink.
func WithSink(sink Sink) RecorderOption {
	return func(r *Recorder) {
		r.sink = sink
	}
}

// WithBuffer sizes the entry buffer.
func WithBuffer(n int) RecorderOption {
	return func(r *Recorder) {
		r.ch = make(chan calllog.Entry, n)
	}
}

// NewRecorder constructs a recorder over the call history store.
func NewRecorder(store calllog.Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		ch:     make(chan calllog.Entry, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue implements the screening journal port. Never blocks.
func (r *Recorder) Enqueue(entry calllog.Entry) {
	select {
	case r.ch <- entry:
	default:
		journalEntries.WithLabelValues("dropped").Inc()
		r.logger.Warn("call history buffer full, dropping entry",
			"number", entry.Number, "outcome", entry.Outcome)
	}
}

// OnCallEvent implements call.Subscriber. Only terminal events become
// history rows; everything else is presentation traffic.
func (r *Recorder) OnCallEvent(ev call.Event) {
	if ev.Fault != "" || ev.Status != call.StatusDisconnected || ev.Outcome == "" {
		return
	}
	name := ev.Name
	if name == "Unknown" {
		name = ""
	}
	r.Enqueue(calllog.Entry{
		ID:          ev.CallID,
		Number:      ev.Number,
		Fingerprint: number.Fingerprint(ev.Number),
		Direction:   string(ev.Direction),
		Outcome:     ev.Outcome,
		CallerName:  name,
		StartedAt:   ev.StartedAt,
		EndedAt:     ev.EndedAt,
	})
}

// Run drains the buffer until ctx is cancelled, then flushes whatever is
// still queued.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.record(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.record(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) record(entry calllog.Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.Append(ctx, entry); err != nil {
		journalEntries.WithLabelValues("failed").Inc()
		r.logger.Error("call history append failed", "error", err, "number", entry.Number)
		return
	}
	journalEntries.WithLabelValues("recorded").Inc()

	if r.sink != nil {
		if err := r.sink.Publish(ctx, entry); err != nil {
			r.logger.Warn("event sink publish failed", "error", err)
		}
	}
}
