package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"qcall/internal/number"
)

const identityTTL = 24 * time.Hour

// CachedIdentifier fronts an Identifier with a Redis cache so repeat callers
// do not hit the remote service on every ring. Cache faults fall through to
// the inner identifier.
type CachedIdentifier struct {
	inner  Identifier
	client goredis.Cmdable
	logger *slog.Logger
}

// NewCachedIdentifier wraps inner with a 24 hour Redis cache.
func NewCachedIdentifier(inner Identifier, client goredis.Cmdable, logger *slog.Logger) *CachedIdentifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedIdentifier{inner: inner, client: client, logger: logger}
}

func (c *CachedIdentifier) Identify(ctx context.Context, rawNumber string) (Identity, error) {
	key := "qcall:identity:" + number.Fingerprint(rawNumber)

	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var id Identity
		if err := json.Unmarshal([]byte(raw), &id); err == nil {
			return id, nil
		}
		c.logger.Warn("discarding corrupt identity cache entry", "key", key)
	} else if !errors.Is(err, goredis.Nil) {
		c.logger.Warn("identity cache read failed", "error", err)
	}

	id, err := c.inner.Identify(ctx, rawNumber)
	if err != nil {
		return Identity{}, err
	}

	if raw, err := json.Marshal(id); err == nil {
		if err := c.client.Set(ctx, key, raw, identityTTL).Err(); err != nil {
			c.logger.Warn("identity cache write failed", "error", err)
		}
	}
	return id, nil
}
