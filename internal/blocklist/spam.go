package blocklist

import (
	"context"
	"sync"

	"qcall/internal/number"
)

// SpamMarks is the local record of numbers the identification service has
// flagged. It backs spam auto-blocking in screening and the spam badge on
// deep links. Purely in-memory: a restart forgets the marks and they get
// re-learned from the next identification.
type SpamMarks struct {
	mu    sync.RWMutex
	marks map[string]struct{}
}

// NewSpamMarks creates an empty mark set.
func NewSpamMarks() *SpamMarks {
	return &SpamMarks{marks: make(map[string]struct{})}
}

// Mark flags a raw number as spam.
func (m *SpamMarks) Mark(rawNumber string) {
	fp := number.Fingerprint(rawNumber)
	if fp == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[fp] = struct{}{}
}

// Seen reports whether a raw number has been flagged.
func (m *SpamMarks) Seen(rawNumber string) bool {
	fp := number.Fingerprint(rawNumber)
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.marks[fp]
	return ok
}

// IsSpam implements the screening spam port for an already-canonical
// fingerprint.
func (m *SpamMarks) IsSpam(ctx context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.marks[fingerprint]
	return ok, nil
}
