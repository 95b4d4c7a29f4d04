package notify

import (
	"context"
	"errors"
	"sync"
)

var errMissingChannel = errors.New("notification channel missing")

// MemorySink records notification operations in memory. Used by tests and
// by bridge-less demo runs, where the log output is the notification.
type MemorySink struct {
	mu       sync.Mutex
	channels map[string]int
	posts    []Notification
	cancels  []string

	// FailPosts makes Post fail until a channel ensure happens, which the
	// presenter retry path exercises.
	FailPosts bool
}

// NewMemorySink creates an empty recording sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{channels: make(map[string]int)}
}

func (s *MemorySink) EnsureChannel(ctx context.Context, ch Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID]++
	s.FailPosts = false
	return nil
}

func (s *MemorySink) Post(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPosts {
		return errMissingChannel
	}
	s.posts = append(s.posts, n)
	return nil
}

func (s *MemorySink) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, id)
	return nil
}

// Posts returns a copy of every posted notification, oldest first.
func (s *MemorySink) Posts() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.posts))
	copy(out, s.posts)
	return out
}

// Cancels returns the IDs cancelled so far.
func (s *MemorySink) Cancels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cancels))
	copy(out, s.cancels)
	return out
}

// ChannelEnsures reports how many times a channel was ensured.
func (s *MemorySink) ChannelEnsures(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[id]
}
