package server

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	// CheckRateLimit records the request and returns a *RateLimitError or
	// *QuotaExceededError when it exceeds a limit. Other errors mean the
	// limiter itself failed.
	CheckRateLimit(ctx context.Context, clientID string, dataSize int64) error
}

// Limits are fixed-window limits per client. Zero disables a limit.
type Limits struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	DataPerDay        int64 // bytes
}

func (l Limits) enabled() bool {
	return l.RequestsPerMinute > 0 || l.RequestsPerHour > 0 || l.RequestsPerDay > 0 || l.DataPerDay > 0
}

type windowCounts struct {
	minute, hour, day int
	data              int64
}

// check compares counts that include the current request against l.
func (l Limits) check(c windowCounts, dataSize int64, now time.Time) error {
	if l.RequestsPerMinute > 0 && c.minute > l.RequestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: l.RequestsPerMinute, RetryAfter: until(now, time.Minute)}
	}
	if l.RequestsPerHour > 0 && c.hour > l.RequestsPerHour {
		return &RateLimitError{Type: "hour", Limit: l.RequestsPerHour, RetryAfter: until(now, time.Hour)}
	}
	resets := nextDay(now)
	if l.RequestsPerDay > 0 && c.day > l.RequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(l.RequestsPerDay), Used: int64(c.day - 1), Resets: resets}
	}
	if l.DataPerDay > 0 && c.data > l.DataPerDay {
		return &QuotaExceededError{Type: "data", Limit: l.DataPerDay, Used: c.data - dataSize, Resets: resets}
	}
	return nil
}

func until(now time.Time, window time.Duration) time.Duration {
	return now.Truncate(window).Add(window).Sub(now)
}

func nextDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// RateLimiter keeps the counters in process memory.
type RateLimiter struct {
	mu     sync.Mutex
	limits Limits
	now    func() time.Time
	usage  map[string]*UserUsage
}

// UserUsage tracks the current windows of one client.
type UserUsage struct {
	minuteStart time.Time
	hourStart   time.Time
	day         string
	counts      windowCounts
}

// NewRateLimiter creates an in-memory limiter.
func NewRateLimiter(limits Limits) *RateLimiter {
	return &RateLimiter{limits: limits, now: time.Now, usage: make(map[string]*UserUsage)}
}

func (rl *RateLimiter) CheckRateLimit(_ context.Context, clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.usage[clientID]
	if !ok {
		u = &UserUsage{}
		rl.usage[clientID] = u
	}
	if m := now.Truncate(time.Minute); !m.Equal(u.minuteStart) {
		u.minuteStart, u.counts.minute = m, 0
	}
	if h := now.Truncate(time.Hour); !h.Equal(u.hourStart) {
		u.hourStart, u.counts.hour = h, 0
	}
	if d := now.Format(time.DateOnly); d != u.day {
		u.day, u.counts.day, u.counts.data = d, 0, 0
	}

	next := u.counts
	next.minute++
	next.hour++
	next.day++
	next.data += dataSize
	if err := rl.limits.check(next, dataSize, now); err != nil {
		return err
	}
	u.counts = next
	return nil
}

// RedisRateLimiter shares fixed-window counters between server replicas.
// Rejected requests count against their window.
type RedisRateLimiter struct {
	client redis.UniversalClient
	limits Limits
	prefix string
	now    func() time.Time
}

// NewRedisRateLimiter wraps an existing client.
func NewRedisRateLimiter(client redis.UniversalClient, limits Limits) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limits: limits, prefix: "lipi:ratelimit", now: time.Now}
}

func (rl *RedisRateLimiter) key(clientID, window string, start time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", rl.prefix, clientID, window, strconv.FormatInt(start.Unix(), 10))
}

func (rl *RedisRateLimiter) CheckRateLimit(ctx context.Context, clientID string, dataSize int64) error {
	now := rl.now()
	minute := now.Truncate(time.Minute)
	hour := now.Truncate(time.Hour)
	day := nextDay(now).AddDate(0, 0, -1)

	pipe := rl.client.TxPipeline()
	m := pipe.Incr(ctx, rl.key(clientID, "m", minute))
	pipe.Expire(ctx, rl.key(clientID, "m", minute), 2*time.Minute)
	h := pipe.Incr(ctx, rl.key(clientID, "h", hour))
	pipe.Expire(ctx, rl.key(clientID, "h", hour), 2*time.Hour)
	d := pipe.Incr(ctx, rl.key(clientID, "d", day))
	pipe.Expire(ctx, rl.key(clientID, "d", day), 48*time.Hour)
	data := pipe.IncrBy(ctx, rl.key(clientID, "b", day), dataSize)
	pipe.Expire(ctx, rl.key(clientID, "b", day), 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate limit counters: %w", err)
	}

	return rl.limits.check(windowCounts{
		minute: int(m.Val()),
		hour:   int(h.Val()),
		day:    int(d.Val()),
		data:   data.Val(),
	}, dataSize, now)
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // usage before this request
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}

// NewLimiter picks the redis limiter when a client is given and the
// in-memory one otherwise. It returns nil when no limit is set.
func NewLimiter(limits Limits, client redis.UniversalClient) Limiter {
	if !limits.enabled() {
		return nil
	}
	if client != nil {
		return NewRedisRateLimiter(client, limits)
	}
	return NewRateLimiter(limits)
}
