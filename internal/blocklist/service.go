package blocklist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"qcall/internal/number"
)

var blockOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qcall_blocklist_operations_total",
	Help: "Block and unblock operations applied to the registry",
}, []string{"op"})

// Service is the user-facing side of the block registry. It canonicalizes
// raw numbers before touching the store; the screening engine reads the same
// store directly with an already-canonical fingerprint.
type Service struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs the blocklist service around a registry store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("blocklist store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Block adds the number's fingerprint to the registry. Idempotent; blocking
// an already-blocked number is a no-op.
func (s *Service) Block(ctx context.Context, rawNumber string) error {
	fp := number.Fingerprint(rawNumber)
	if fp == "" {
		return fmt.Errorf("number %q has no digits to block", rawNumber)
	}
	if err := s.store.SetBlocked(ctx, fp, true); err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	blockOps.WithLabelValues("block").Inc()
	s.logger.Info("number blocked", "fingerprint", fp)
	return nil
}

// Unblock removes the number's fingerprint from the registry entirely.
func (s *Service) Unblock(ctx context.Context, rawNumber string) error {
	fp := number.Fingerprint(rawNumber)
	if fp == "" {
		return nil
	}
	if err := s.store.SetBlocked(ctx, fp, false); err != nil {
		return fmt.Errorf("unblock number: %w", err)
	}
	blockOps.WithLabelValues("unblock").Inc()
	s.logger.Info("number unblocked", "fingerprint", fp)
	return nil
}

// List returns every blocked entry.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.store.List(ctx)
}
