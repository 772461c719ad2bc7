// Package ratelimit throttles abuse-prone routes with fixed windows keyed by
// tenant and client address, or by account for credential guessing.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Window presets per route. Counters are scoped per window key, so hitting
// the login limit never blocks tenant registration from the same address.
var (
	Login              = limiter.Rate{Period: 15 * time.Minute, Limit: 10}
	TenantRegistration = limiter.Rate{Period: time.Hour, Limit: 5}
	PasswordReset      = limiter.Rate{Period: time.Hour, Limit: 3}
)

// Result is the outcome of one counted request.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Limiter counts requests against a shared redis store so the window holds
// across replicas. When redis is unreachable it degrades to a per-process
// in-memory window instead of refusing traffic.
type Limiter struct {
	name     string
	primary  *limiter.Limiter
	fallback *limiter.Limiter
	log      *logrus.Logger
}

// New builds a Limiter for one route. client may be nil, in which case only
// the in-memory window is used. A redis store that cannot be constructed,
// for instance because redis is down at startup, degrades the same way
// instead of blocking traffic.
func New(name string, rate limiter.Rate, client *redis.Client, log *logrus.Logger) *Limiter {
	l := &Limiter{
		name:     name,
		fallback: limiter.New(memorystore.NewStore(), rate),
		log:      log,
	}
	if client != nil {
		store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:   "ratelimit:" + name,
			MaxRetry: 3,
		})
		if err != nil {
			log.WithError(err).WithField("limiter", name).Warn("rate limit store unavailable at startup, using in-memory window")
		} else {
			l.primary = limiter.New(store, rate)
		}
	}
	return l
}

// Take counts one request for the key and reports whether it is within the
// window.
func (l *Limiter) Take(ctx context.Context, key string) Result {
	if l.primary != nil {
		lctx, err := l.primary.Get(ctx, key)
		if err == nil {
			return toResult(lctx)
		}
		l.log.WithError(err).WithField("limiter", l.name).Warn("rate limit store unavailable, using in-memory window")
	}
	lctx, err := l.fallback.Get(ctx, key)
	if err != nil {
		// The memory store does not fail in practice; allow rather than
		// lock out legitimate traffic.
		l.log.WithError(err).WithField("limiter", l.name).Error("in-memory rate limit failed")
		return Result{Allowed: true}
	}
	return toResult(lctx)
}

func toResult(lctx limiter.Context) Result {
	return Result{
		Allowed:   !lctx.Reached,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reset:     time.Unix(lctx.Reset, 0),
	}
}

// Key builds the per-client window key. Unresolved tenants share the "public"
// scope so anonymous traffic cannot exhaust a tenant's window.
func Key(tenantID, addr string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		tenantID = "public"
	}
	return tenantID + ":" + addr
}

// AccountKey scopes the window to a claimed account instead of the caller's
// address, so credential guessing from many addresses still hits one window.
func AccountKey(tenantID, account string) string {
	return Key(tenantID, "acct:"+strings.ToLower(strings.TrimSpace(account)))
}
