// Package ratelimit throttles API clients with a token bucket per client. Routes can
// cost more than one token so clustering and uploads drain the bucket faster than
// lookups.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/metrics"
)

type bucket struct {
	mu       sync.Mutex
	tokens   int
	refilled time.Time
}

type Config struct {
	MaxRequestsPerMinute int
	Window               time.Duration
	// Costs maps "METHOD /path" to the tokens a request spends. Unlisted routes cost 1.
	Costs  map[string]int
	Logger *zap.Logger
}

type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	interval time.Duration
	costs    map[string]int
	logger   *zap.Logger
	ticker   *time.Ticker
	done     chan struct{}
	now      func() time.Time
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: cfg.MaxRequestsPerMinute,
		interval: cfg.Window / time.Duration(cfg.MaxRequestsPerMinute),
		costs:    cfg.Costs,
		logger:   cfg.Logger,
		ticker:   time.NewTicker(5 * time.Minute),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := c.IP()
		if id := c.Get("X-Client-ID"); id != "" {
			client = id
		}
		route := c.Method() + " " + c.Path()
		cost := rl.cost(route)

		remaining, ok := rl.take(client, cost)
		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.capacity))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if ok {
			return c.Next()
		}

		metrics.RateLimited.WithLabelValues(route).Inc()
		rl.logger.Warn("Rate limit exceeded",
			zap.String("client", client),
			zap.String("route", route),
			zap.Int("cost", cost),
			zap.Int("remaining", remaining),
		)
		wait := time.Duration(cost-remaining) * rl.interval
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(wait.Seconds())+1))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Rate limit exceeded. Please try again later.",
		})
	}
}

func (rl *RateLimiter) cost(route string) int {
	if n, ok := rl.costs[route]; ok && n > 0 {
		return min(n, rl.capacity)
	}
	return 1
}

// take spends cost tokens from the client's bucket and reports what is left. A
// request that cannot be paid in full spends nothing.
func (rl *RateLimiter) take(client string, cost int) (int, bool) {
	rl.mu.Lock()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: rl.capacity, refilled: rl.now()}
		rl.buckets[client] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if n := int(rl.now().Sub(b.refilled) / rl.interval); n > 0 {
		b.tokens = min(rl.capacity, b.tokens+n)
		b.refilled = b.refilled.Add(time.Duration(n) * rl.interval)
	}
	if b.tokens < cost {
		return b.tokens, false
	}
	b.tokens -= cost
	return b.tokens, true
}

func (rl *RateLimiter) sweep() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.ticker.C:
			rl.evictIdle(10 * time.Minute)
		}
	}
}

func (rl *RateLimiter) evictIdle(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for client, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.refilled) > idle {
			delete(rl.buckets, client)
		}
		b.mu.Unlock()
	}
}

func (rl *RateLimiter) Stop() {
	rl.ticker.Stop()
	close(rl.done)
}
