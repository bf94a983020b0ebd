package httpadapter

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// backpressureWait is how long a request may wait for an in-flight slot
// before the gate sheds it.
const backpressureWait = 100 * time.Millisecond

// Probes and scrapes must not be throttled: a saturated API still has to
// answer health checks and expose its metrics.
func isThrottleExempt(path string) bool {
	return path == "/healthz" || path == "/metrics"
}

func (rt *Router) rateLimitMiddleware(next http.Handler) http.Handler {
	if rt.cfg.RateLimitRPS <= 0 {
		return next
	}

	limiter := rate.NewLimiter(rate.Limit(rt.cfg.RateLimitRPS), rt.cfg.RateLimitBurst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isThrottleExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow() {
			if rt.metrics != nil {
				rt.metrics.RecordRateLimited(rt.cfg.ServiceName)
			}
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware bounds concurrent request handling. A request waits
// up to wait for a slot and is rejected with 503 when none frees up; onReject
// may be nil.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration, onReject func()) http.Handler {
	if maxInFlight <= 0 {
		return next
	}

	slots := make(chan struct{}, maxInFlight)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isThrottleExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		case <-timer.C:
			if onReject != nil {
				onReject()
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server overloaded, try again later"})
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request canceled while waiting for capacity"})
		}
	})
}
