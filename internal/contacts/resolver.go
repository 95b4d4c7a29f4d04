// Package contacts resolves caller numbers to display names. The state
// machine treats every failure here as "Unknown"; a contact lookup is never
// allowed to break call handling.
package contacts

import (
	"context"
	"errors"
)

// ErrNotFound reports that no contact matches the number.
var ErrNotFound = errors.New("contact not found")

// Resolver looks up a display name for a raw number.
type Resolver interface {
	ResolveName(ctx context.Context, rawNumber string) (string, error)
}

// StaticResolver serves names from a fixed fingerprint -> name map.
// Used in tests and registry-less demo runs.
type StaticResolver map[string]string

func (r StaticResolver) ResolveName(ctx context.Context, rawNumber string) (string, error) {
	name, ok := r[fingerprintOf(rawNumber)]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}
