package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/normalflow/internal/ratelimit"
)

type RateLimiter interface {
	Allow(ctx context.Context, route, subject string) (ratelimit.Decision, error)
}

// withRateLimit guards provisioning only. Limiter errors let the request
// through.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/download-repo" {
			next.ServeHTTP(w, r)
			return
		}

		route := routeLabel(r.URL.Path)
		subject := s.rateLimitSubject(r)
		decision, err := s.rateLimiter.Allow(r.Context(), route, subject)
		if err != nil {
			s.logger.Printf("rate limiter unavailable route=%s subject=%s request_id=%s err=%v", route, subject, requestIDFromContext(r.Context()), err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := max(int(decision.RetryAfter.Round(time.Second).Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(route).Inc()
		writeJSON(w, http.StatusTooManyRequests, rateLimitedBody(retryAfter))
	})
}

// rateLimitSubject is the configured user header, falling back to the
// caller's address.
func (s *Server) rateLimitSubject(r *http.Request) string {
	if subject := strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader)); subject != "" {
		return subject
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		if addr == "" {
			return "anonymous"
		}
		return addr
	}
	return host
}

func rateLimitedBody(retryAfter int) map[string]any {
	return map[string]any{
		"success":    false,
		"error":      "rate limit exceeded",
		"retryAfter": retryAfter,
	}
}
