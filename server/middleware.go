package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dimi-lab/trader/config"
	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/metrics"
	"github.com/juju/ratelimit"
)

// Token bucket settings per client IP.
const (
	bucketRate     = 3
	bucketCapacity = 1000

	defaultCost = 20
	// Each started MiB of upload adds this many tokens on top of the route cost.
	uploadTokensPerMiB = 10
)

// routeCosts prices each route by the work it triggers. Matching runs scan
// the whole backend database per patient.
var routeCosts = map[string]int64{
	"/metrics":                 0,
	"/health":                  5,
	"/v1/exclusion-categories": 5,
	"/v1/database/status":      10,
	"/v1/match/trials":         200,
	"/v1/match/drugs":          200,
	"/v1/compare":              100,
	"/v1/compare/reactor":      100,
}

// forwardedFor returns the client address reported by the reverse proxy:
// X-Real-IP, then the first X-Forwarded-For hop.
func forwardedFor(h http.Header) string {
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return ""
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// RealIPMiddleware replaces RemoteAddr with the proxy-reported client address.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := forwardedFor(r.Header); ip != "" {
			r.RemoteAddr = ip
		}
		next.ServeHTTP(w, r)
	})
}

// BlockDirectAccessMiddleware only lets through requests that came via the
// reverse proxy or from the loopback interface. It must run before
// RealIPMiddleware rewrites RemoteAddr.
func BlockDirectAccessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if forwardedFor(r.Header) != "" {
			next.ServeHTTP(w, r)
			return
		}

		host := hostOnly(r.RemoteAddr)
		if ip := net.ParseIP(host); (ip != nil && ip.IsLoopback()) || host == "localhost" {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RejectedRequestsTotal.WithLabelValues(metrics.RejectDirectAccess).Inc()
		logging.Warn("Direct access blocked", "remote_addr", r.RemoteAddr, "user_agent", r.UserAgent())
		respondWithError(w, http.StatusForbidden, "Direct access not allowed")
	})
}

func headerBytes(h http.Header) int64 {
	var n int64
	for key, values := range h {
		n += int64(len(key))
		for _, value := range values {
			n += int64(len(value))
		}
	}
	return n
}

// RequestSizeMiddleware refuses uploads whose declared length exceeds the
// limit before any multipart parsing starts. Bodies of unknown length are
// capped again by the handlers while reading.
func RequestSizeMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > cfg.MaxUploadSize {
				metrics.RejectedRequestsTotal.WithLabelValues(metrics.RejectBodyTooLarge).Inc()
				logging.Warn("Upload too large",
					"path", r.URL.Path,
					"content_length", r.ContentLength,
					"max_allowed", cfg.MaxUploadSize,
					"remote_addr", r.RemoteAddr)
				respondWithError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Upload too large. Maximum allowed size is %d bytes", cfg.MaxUploadSize))
				return
			}

			if size := headerBytes(r.Header); size > cfg.MaxHeaderSize {
				metrics.RejectedRequestsTotal.WithLabelValues(metrics.RejectHeadersTooLarge).Inc()
				logging.Warn("Request headers too large",
					"header_size", size,
					"max_allowed", cfg.MaxHeaderSize,
					"remote_addr", r.RemoteAddr)
				respondWithError(w, http.StatusRequestHeaderFieldsTooLarge,
					fmt.Sprintf("Request headers too large. Maximum allowed size is %d bytes", cfg.MaxHeaderSize))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	clients map[string]*ratelimit.Bucket
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*ratelimit.Bucket),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop(5 * time.Minute)
	return rl
}

func (rl *RateLimiter) getBucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[clientIP]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if bucket, exists = rl.clients[clientIP]; !exists {
		bucket = ratelimit.NewBucketWithRate(bucketRate, bucketCapacity)
		rl.clients[clientIP] = bucket
	}
	return bucket
}

// cleanup forgets clients whose bucket is full again.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, bucket := range rl.clients {
		if bucket.Available() == bucket.Capacity() {
			delete(rl.clients, ip)
		}
	}
	metrics.RateLimiterBucketsTotal.Set(float64(len(rl.clients)))
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// tokenCost is the route cost plus a share of the declared upload size.
func tokenCost(r *http.Request) int64 {
	cost, ok := routeCosts[r.URL.Path]
	if !ok {
		cost = defaultCost
	}
	if r.Method == http.MethodPost && r.ContentLength > 0 {
		mib := (r.ContentLength + 1<<20 - 1) >> 20
		cost += uploadTokensPerMiB * mib
	}
	return cost
}

// retryAfter is the number of whole seconds until the bucket holds cost tokens.
func retryAfter(bucket *ratelimit.Bucket, cost int64) int64 {
	missing := cost - bucket.Available()
	if missing <= 0 {
		return 1
	}
	return (missing + bucketRate - 1) / bucketRate
}

// Handler charges each request against its client's bucket.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket := rl.getBucket(hostOnly(r.RemoteAddr))
		cost := tokenCost(r)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(bucketCapacity))
		w.Header().Set("X-RateLimit-Rate", strconv.Itoa(bucketRate))

		// a refused request takes no tokens
		if _, ok := bucket.TakeMaxDuration(cost, 0); !ok {
			metrics.RejectedRequestsTotal.WithLabelValues(metrics.RejectRateLimited).Inc()
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter(bucket, cost), 10))
			respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}

// respondWithError writes the same JSON error shape as the handlers.
func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	payload := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error("Failed to encode JSON response", "error", err)
	}
}
