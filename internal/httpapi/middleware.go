package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"plannersuite.org/internal/ids"
	"plannersuite.org/internal/obs"
	"plannersuite.org/internal/ratelimit"
)

type requestIDKey struct{}

// RequestID tags every request with a fresh identifier, honoring one passed
// in by an upstream proxy.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = ids.New()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func requestFields(r *http.Request) logrus.Fields {
	return logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": requestID(r),
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging records method, path, status and duration for every request.
func Logging(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     sw.code,
				"duration":   time.Since(start).String(),
				"request_id": requestID(r),
			}).Info("request")
		})
	}
}

// SecurityHeaders sets the standard hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// MaxBodyBytes caps request body size.
func MaxBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// GlobalRateLimit is a coarse token bucket per client IP in front of the
// whole API, independent of the per-route windows. Idle buckets are swept
// inline at most once a minute; no background goroutine outlives the handler.
func GlobalRateLimit(perSecond, burst int, trustProxy bool) func(http.Handler) http.Handler {
	type bucket struct {
		lim *rate.Limiter
		ts  time.Time
	}
	const ttl = 5 * time.Minute
	var (
		mu        sync.Mutex
		buckets   = make(map[string]*bucket)
		lastSweep = time.Now()
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if ip == "" {
				ip = "unknown"
			}
			now := time.Now()
			mu.Lock()
			if now.Sub(lastSweep) > time.Minute {
				for k, b := range buckets {
					if now.Sub(b.ts) > ttl {
						delete(buckets, k)
					}
				}
				lastSweep = now
			}
			b, ok := buckets[ip]
			if !ok {
				b = &bucket{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
				buckets[ip] = b
			}
			b.ts = now
			allowed := b.lim.Allow()
			mu.Unlock()
			if !allowed {
				obs.ObserveRateLimited("global")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// perRouteLimit guards one abuse-prone route with its fixed window, keyed by
// tenant and client address.
func (a *API) perRouteLimit(l *ratelimit.Limiter, route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.Key(tenantIDFrom(r), clientIP(r, a.trustProxy))
		res := l.Take(r.Context(), key)
		setRateHeaders(w, res)
		if !res.Allowed {
			obs.ObserveRateLimited(route)
			writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
			return
		}
		next(w, r)
	}
}

func setRateHeaders(w http.ResponseWriter, res ratelimit.Result) {
	if res.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
}

// clientIP returns the address rate-limit keys are scoped by. The
// X-Forwarded-For header is only honored behind a trusted proxy; a direct
// caller must not be able to pick its own key.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
