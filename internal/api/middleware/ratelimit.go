package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/doclens/doclens/internal/api/response"
	"github.com/doclens/doclens/internal/cache"
	"github.com/doclens/doclens/internal/ratelimit"
)

// RateLimit applies per-owner fixed-window limits to a named route class.
// Separate classes (upload, trigger) count independently so heavy uploads
// cannot starve processing triggers.
type RateLimit struct {
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

func NewRateLimit(limiter *ratelimit.Limiter, log *slog.Logger) *RateLimit {
	if log == nil {
		log = slog.Default()
	}
	return &RateLimit{limiter: limiter, log: log}
}

// Limit returns middleware enforcing the policy for one route class. The
// window key combines owner and client address; unauthenticated routes fall
// back to the address alone. A store failure lets the request through.
func (rl *RateLimit) Limit(class string, p ratelimit.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := GetOwnerID(r)
			key := cache.RateKey(class, ownerID, clientAddr(r))

			d, err := rl.limiter.Allow(r.Context(), key, p)
			if err != nil {
				rl.log.Warn("rate limit store unavailable, allowing request",
					"class", class, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset",
				strconv.FormatInt(time.Now().Add(p.Window).Unix(), 10))

			if !d.Allowed {
				retryAfter := int(d.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				response.Error(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "Too many requests",
					map[string]any{"retry_after_ms": d.RetryAfter.Milliseconds()})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
