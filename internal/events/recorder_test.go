package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"qcall/internal/call"
	"qcall/internal/calllog"
)

type capturingSink struct {
	mu      sync.Mutex
	entries []calllog.Entry
}

func (s *capturingSink) Publish(ctx context.Context, entry calllog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *capturingSink) published() []calllog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calllog.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, entry calllog.Entry) error {
	return errors.New("disk full")
}

func (failingStore) ListRecent(ctx context.Context, limit int) ([]calllog.Entry, error) {
	return nil, nil
}

type RecorderSuite struct {
	suite.Suite
	store *calllog.MemoryStore
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = calllog.NewMemoryStore()
}

func (s *RecorderSuite) runRecorder(r *Recorder) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	s.T().Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func (s *RecorderSuite) waitForEntries(n int) []calllog.Entry {
	deadline := time.After(2 * time.Second)
	for {
		entries, err := s.store.ListRecent(context.Background(), 50)
		s.Require().NoError(err)
		if len(entries) >= n {
			return entries
		}
		select {
		case <-deadline:
			s.FailNowf("timed out", "wanted %d entries, have %d", n, len(entries))
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *RecorderSuite) TestTerminalEventBecomesHistoryRow() {
	recorder := NewRecorder(s.store)
	s.runRecorder(recorder)

	id := uuid.New()
	started := time.Now().Add(-time.Minute)
	recorder.OnCallEvent(call.Event{
		CallID:    id,
		Status:    call.StatusDisconnected,
		Number:    "+91 98765 43210",
		Name:      "Asha Rao",
		Direction: call.DirectionIncoming,
		Outcome:   calllog.OutcomeAnswered,
		StartedAt: started,
		EndedAt:   time.Now(),
	})

	entries := s.waitForEntries(1)
	s.Equal(id, entries[0].ID)
	s.Equal("9876543210", entries[0].Fingerprint)
	s.Equal(calllog.OutcomeAnswered, entries[0].Outcome)
	s.Equal("Asha Rao", entries[0].CallerName)
}

func (s *RecorderSuite) TestNonTerminalEventsIgnored() {
	recorder := NewRecorder(s.store)
	s.runRecorder(recorder)

	recorder.OnCallEvent(call.Event{CallID: uuid.New(), Status: call.StatusRinging, Number: "+911"})
	recorder.OnCallEvent(call.Event{CallID: uuid.New(), Status: call.StatusActive, Number: "+911"})
	recorder.OnCallEvent(call.Event{
		CallID: uuid.New(), Status: call.StatusDisconnected, Number: "+911",
		Outcome: calllog.OutcomeMissed, Fault: "hangup",
	})

	time.Sleep(50 * time.Millisecond)
	entries, err := s.store.ListRecent(context.Background(), 50)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *RecorderSuite) TestUnknownCallerNameOmitted() {
	recorder := NewRecorder(s.store)
	s.runRecorder(recorder)

	recorder.OnCallEvent(call.Event{
		CallID:    uuid.New(),
		Status:    call.StatusDisconnected,
		Number:    "+911234567890",
		Name:      "Unknown",
		Direction: call.DirectionIncoming,
		Outcome:   calllog.OutcomeMissed,
	})

	entries := s.waitForEntries(1)
	s.Empty(entries[0].CallerName)
}

func (s *RecorderSuite) TestEnqueueAssignsID() {
	recorder := NewRecorder(s.store)
	s.runRecorder(recorder)

	recorder.Enqueue(calllog.Entry{
		Number:      "+919876543210",
		Fingerprint: "9876543210",
		Direction:   string(call.DirectionIncoming),
		Outcome:     calllog.OutcomeBlocked,
	})

	entries := s.waitForEntries(1)
	s.NotEqual(uuid.Nil, entries[0].ID)
	s.Equal(calllog.OutcomeBlocked, entries[0].Outcome)
}

func (s *RecorderSuite) TestEntriesForwardedToSink() {
	sink := &capturingSink{}
	recorder := NewRecorder(s.store, WithSink(sink))
	s.runRecorder(recorder)

	recorder.Enqueue(calllog.Entry{Number: "+911", Outcome: calllog.OutcomeMissed})

	s.waitForEntries(1)
	s.Require().Eventually(func() bool {
		return len(sink.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	s.Equal(calllog.OutcomeMissed, sink.published()[0].Outcome)
}

func (s *RecorderSuite) TestFullBufferDropsInsteadOfBlocking() {
	// No worker running, so the buffer fills and stays full.
	recorder := NewRecorder(s.store, WithBuffer(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Enqueue(calllog.Entry{Number: "+911"})
		recorder.Enqueue(calllog.Entry{Number: "+912"})
		recorder.Enqueue(calllog.Entry{Number: "+913"})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("Enqueue blocked on a full buffer")
	}
}

func (s *RecorderSuite) TestStoreFailureDoesNotStopWorker() {
	recorder := NewRecorder(failingStore{})
	s.runRecorder(recorder)

	recorder.Enqueue(calllog.Entry{Number: "+911", Outcome: calllog.OutcomeMissed})
	recorder.Enqueue(calllog.Entry{Number: "+912", Outcome: calllog.OutcomeMissed})

	// Both entries are consumed even though every append fails.
	s.Require().Eventually(func() bool {
		return len(recorder.ch) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *RecorderSuite) TestShutdownFlushesQueuedEntries() {
	recorder := NewRecorder(s.store)

	recorder.Enqueue(calllog.Entry{Number: "+911", Outcome: calllog.OutcomeMissed})
	recorder.Enqueue(calllog.Entry{Number: "+912", Outcome: calllog.OutcomeBlocked})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Run(ctx)

	entries, err := s.store.ListRecent(context.Background(), 50)
	s.Require().NoError(err)
	s.Len(entries, 2)
}
