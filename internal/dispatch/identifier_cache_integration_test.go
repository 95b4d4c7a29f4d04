//go:build integration

package dispatch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"qcall/pkg/testutil/containers"
)

type countingIdentifier struct {
	calls    atomic.Int64
	identity Identity
}

func (c *countingIdentifier) Identify(ctx context.Context, rawNumber string) (Identity, error) {
	c.calls.Add(1)
	return c.identity, nil
}

func TestCachedIdentifierHitsRedisBeforeService(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingIdentifier{identity: Identity{Name: "Pizza Palace", Spam: true}}
	cached := NewCachedIdentifier(inner, rc.Client, nil)

	first, err := cached.Identify(ctx, "+91 98765 43210")
	require.NoError(t, err)
	require.Equal(t, inner.identity, first)

	// Same fingerprint, different formatting: must come from the cache.
	second, err := cached.Identify(ctx, "9876543210")
	require.NoError(t, err)
	require.Equal(t, inner.identity, second)
	require.EqualValues(t, 1, inner.calls.Load())

	ttl, err := rc.Client.TTL(ctx, "qcall:identity:9876543210").Result()
	require.NoError(t, err)
	require.Greater(t, ttl.Hours(), 23.0)
}

func TestCachedIdentifierSurvivesCacheFlush(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingIdentifier{identity: Identity{Name: "Asha Rao"}}
	cached := NewCachedIdentifier(inner, rc.Client, nil)

	_, err := cached.Identify(ctx, "+911112223334")
	require.NoError(t, err)

	require.NoError(t, rc.FlushAll(ctx))

	id, err := cached.Identify(ctx, "+911112223334")
	require.NoError(t, err)
	require.Equal(t, "Asha Rao", id.Name)
	require.EqualValues(t, 2, inner.calls.Load())
}
