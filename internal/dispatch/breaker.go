package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen reports that the identification service is being skipped
// because recent calls to it kept failing.
var ErrBreakerOpen = errors.New("identification circuit open")

// BreakerIdentifier shields the dispatch path from a failing identification
// service. After failureThreshold consecutive errors it answers ErrBreakerOpen
// immediately, then lets a probe through once the cooldown passes.
type BreakerIdentifier struct {
	inner Identifier

	mu               sync.Mutex
	failures         int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
}

// BreakerOption configures a BreakerIdentifier.
type BreakerOption func(*BreakerIdentifier)

// WithFailureThreshold sets the consecutive failures that trip the breaker.
func WithFailureThreshold(n int) BreakerOption {
	return func(b *BreakerIdentifier) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before a probe call.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *BreakerIdentifier) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// NewBreakerIdentifier wraps inner with a circuit breaker.
func NewBreakerIdentifier(inner Identifier, opts ...BreakerOption) *BreakerIdentifier {
	b := &BreakerIdentifier{
		inner:            inner,
		failureThreshold: 3,
		cooldown:         30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BreakerIdentifier) Identify(ctx context.Context, rawNumber string) (Identity, error) {
	if !b.allow() {
		return Identity{}, ErrBreakerOpen
	}

	id, err := b.inner.Identify(ctx, rawNumber)
	b.record(err)
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Open reports whether the breaker is currently rejecting calls.
func (b *BreakerIdentifier) Open() bool {
	return !b.allow()
}

func (b *BreakerIdentifier) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.failureThreshold {
		return true
	}
	// Open. Allow one probe per cooldown window.
	if time.Since(b.openedAt) >= b.cooldown {
		b.openedAt = time.Now()
		return true
	}
	return false
}

func (b *BreakerIdentifier) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == b.failureThreshold {
		b.openedAt = time.Now()
	}
}
