package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Blacklist marks individual credentials revoked until their natural expiry.
// Entries are keyed by the raw token and carry only the remaining validity as
// TTL, so the set cleans itself up.
type Blacklist struct {
	client *redis.Client
	prefix string
	log    *logrus.Logger
}

// NewBlacklist wraps the shared redis client. client may be nil; revocation
// then becomes a no-op and only the token-version check protects logouts.
func NewBlacklist(client *redis.Client, log *logrus.Logger) *Blacklist {
	return &Blacklist{client: client, prefix: "blacklist:", log: log}
}

// Revoke marks the token unusable for the rest of its validity. Tokens that
// already expired need no entry.
func (b *Blacklist) Revoke(ctx context.Context, token string, remaining time.Duration) error {
	if b.client == nil || remaining <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.prefix+token, "1", remaining).Err()
}

// Revoked reports whether the token has been individually revoked. A store
// outage fails open with a warning; the token-version gate still revokes in
// bulk.
func (b *Blacklist) Revoked(ctx context.Context, token string) bool {
	if b.client == nil {
		return false
	}
	err := b.client.Get(ctx, b.prefix+token).Err()
	if err == nil {
		return true
	}
	if err != redis.Nil {
		b.log.WithError(err).Warn("token blacklist unavailable")
	}
	return false
}
