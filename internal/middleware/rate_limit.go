package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the default read budget per minute
	DefaultRateLimit = 120
	// DefaultBurstSize is the default read burst size
	DefaultBurstSize = 20
	// CleanupInterval is the interval for cleaning up stale limiters
	CleanupInterval = 5 * time.Minute
	// LimiterTTL is the time-to-live for inactive limiters
	LimiterTTL = 10 * time.Minute
)

// RequestClass groups routes that share one per-tenant budget
type RequestClass string

const (
	// ClassRead covers GET and HEAD
	ClassRead RequestClass = "read"
	// ClassWrite covers single-record postings and edits
	ClassWrite RequestClass = "write"
	// ClassBatch covers routes that fan out over a whole period: fee
	// generation, overdue sweeps, closings, report rendering, receipt uploads
	ClassBatch RequestClass = "batch"
)

// Budget is a token bucket size for one request class
type Budget struct {
	PerMinute int
	Burst     int
}

// DefaultBudgets derives the write and batch budgets from the read budget.
// Batch requests lock and rewrite many rows, so they get a small fixed share.
func DefaultBudgets(readPerMinute int) map[RequestClass]Budget {
	writePerMinute := readPerMinute / 2
	if writePerMinute < 1 {
		writePerMinute = 1
	}
	return map[RequestClass]Budget{
		ClassRead:  {PerMinute: readPerMinute, Burst: DefaultBurstSize},
		ClassWrite: {PerMinute: writePerMinute, Burst: DefaultBurstSize / 2},
		ClassBatch: {PerMinute: 6, Burst: 2},
	}
}

type limiterKey struct {
	tenantID int32
	class    RequestClass
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per tenant and request class
type RateLimiter struct {
	limiters map[limiterKey]*limiterEntry
	budgets  map[RequestClass]Budget
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter with DefaultBudgets(DefaultRateLimit)
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithBudgets(DefaultBudgets(DefaultRateLimit))
}

// NewRateLimiterWithBudgets creates a RateLimiter. A class missing from
// budgets falls back to the ClassRead budget.
func NewRateLimiterWithBudgets(budgets map[RequestClass]Budget) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[limiterKey]*limiterEntry),
		budgets:  budgets,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (r *RateLimiter) budget(class RequestClass) Budget {
	if b, ok := r.budgets[class]; ok {
		return b
	}
	return r.budgets[ClassRead]
}

// Allow takes one token from the tenant's bucket for class. It returns the
// tokens left and, when refused, how long until the next token.
func (r *RateLimiter) Allow(tenantID int32, class RequestClass) (allowed bool, remaining int, retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	key := limiterKey{tenantID, class}
	entry, ok := r.limiters[key]
	if !ok {
		b := r.budget(class)
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(float64(b.PerMinute)/60.0), b.Burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = now

	res := entry.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, delay
	}
	tokens := int(entry.limiter.TokensAt(now))
	if tokens < 0 {
		tokens = 0
	}
	return true, tokens, 0
}

// cleanup periodically removes stale limiters to prevent memory leaks
func (r *RateLimiter) cleanup() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			now := time.Now()
			for key, entry := range r.limiters {
				if now.Sub(entry.lastSeen) > LimiterTTL {
					delete(r.limiters, key)
					log.Debug().Int32("tenant_id", key.tenantID).Str("class", string(key.class)).Msg("Cleaned up stale rate limiter")
				}
			}
			r.mu.Unlock()
		case <-r.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// RouteClassifier maps a routed request to its RequestClass
type RouteClassifier func(c echo.Context) RequestClass

// ClassifyRoutes treats the listed "METHOD /route/pattern" entries as
// ClassBatch, other reads as ClassRead and everything else as ClassWrite.
// Patterns are matched against c.Path(), so the middleware must be attached
// to a group or route rather than with e.Pre.
func ClassifyRoutes(batch ...string) RouteClassifier {
	set := make(map[string]bool, len(batch))
	for _, route := range batch {
		set[route] = true
	}
	return func(c echo.Context) RequestClass {
		method := c.Request().Method
		if set[method+" "+c.Path()] {
			return ClassBatch
		}
		if method == http.MethodGet || method == http.MethodHead {
			return ClassRead
		}
		return ClassWrite
	}
}

// RateLimitMiddleware limits each tenant per request class.
// Must run after Authenticate.
func RateLimitMiddleware(rl *RateLimiter, classify RouteClassifier) echo.MiddlewareFunc {
	if classify == nil {
		classify = ClassifyRoutes()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := GetTenantID(c)
			if tenantID == 0 {
				return next(c)
			}

			class := classify(c)
			allowed, remaining, wait := rl.Allow(tenantID, class)

			h := c.Response().Header()
			h.Set("X-RateLimit-Class", string(class))
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.budget(class).PerMinute))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				retryAfter := int(wait.Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(wait).Unix(), 10))
				h.Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn().
					Int32("tenant_id", tenantID).
					Str("class", string(class)).
					Int("retry_after", retryAfter).
					Msg("Rate limit exceeded")

				return problem(c, http.StatusTooManyRequests, errorTypeRateLimit, "Rate Limit Exceeded",
					fmt.Sprintf("Too many %s requests. Please retry after %d seconds.", class, retryAfter))
			}

			return next(c)
		}
	}
}
