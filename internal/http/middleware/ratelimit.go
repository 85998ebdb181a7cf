package middleware

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"docvault/internal/auth"
	"docvault/internal/logger"
	"docvault/internal/metrics"
)

// rateKey prefers the authenticated user over the client address, so users behind one
// NAT do not share a budget.
func rateKey(c *fiber.Ctx) string {
	if r, ok := auth.FromContext(c); ok && r.ID != "" {
		return "sub:" + r.ID
	}
	ip := c.IP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func tooManyRequests(c *fiber.Ctx, retryAfter int, limiter string) error {
	metrics.RateLimitRejected.WithLabelValues(limiter).Inc()
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
	return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
}

// RateLimit is an in-process token bucket per client. Buckets idle long enough to have
// refilled are dropped, so the table only holds recently active clients.
func RateLimit(rps float64, burst int) fiber.Handler {
	return newMemoryLimiter(rps, burst).handler()
}

// minIdle bounds how often the bucket table is swept.
const minIdle = time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type memoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newMemoryLimiter(rps float64, burst int) *memoryLimiter {
	// a bucket untouched for burst/rps is full again and equivalent to a fresh one
	idle := minIdle
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &memoryLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

func (l *memoryLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep must be called with mu held.
func (l *memoryLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *memoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *memoryLimiter) handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.allow(rateKey(c)) {
			return tooManyRequests(c, 1, "memory")
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		return c.Next()
	}
}

// RedisRateLimit is a fixed-window limiter shared by every replica: INCR a per-window
// key and compare against floor(rps*window)+burst. With a nil client it falls back
// to RateLimit. When Redis is unreachable requests are let through.
func RedisRateLimit(client *redis.Client, rps float64, burst int, window time.Duration) fiber.Handler {
	if client == nil {
		return RateLimit(rps, burst)
	}
	return newRedisLimiter(client, rps, burst, window).handler()
}

type redisLimiter struct {
	client  *redis.Client
	seconds int
	allowed int64
	now     func() time.Time
}

func newRedisLimiter(client *redis.Client, rps float64, burst int, window time.Duration) *redisLimiter {
	seconds := int(window.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return &redisLimiter{
		client:  client,
		seconds: seconds,
		allowed: int64(rps*float64(seconds)) + int64(burst),
		now:     time.Now,
	}
}

func (l *redisLimiter) handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		bucket := l.now().Unix() / int64(l.seconds)
		key := fmt.Sprintf("rl:%s:%d", rateKey(c), bucket)
		ctx := c.UserContext()

		cnt, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate_limit_unavailable", logger.Fields{"error": err})
			return c.Next()
		}
		if cnt == 1 {
			_ = l.client.Expire(ctx, key, time.Duration(l.seconds+1)*time.Second).Err()
		}
		if cnt > l.allowed {
			return tooManyRequests(c, l.seconds, "redis")
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		return c.Next()
	}
}
