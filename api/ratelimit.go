package main

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type rateLimiter interface {
	// allow reports whether the client identified by key may proceed and, if
	// not, roughly how long it should wait.
	allow(ctx context.Context, key string) (bool, time.Duration, error)
	name() string
}

type ipLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*limiterClient
	now     func() time.Time
}

type limiterClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	return &ipLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*limiterClient),
		now:     time.Now,
	}
}

func (l *ipLimiter) name() string { return "memory" }

func (l *ipLimiter) allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		c = &limiterClient{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 0, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// sweep forgets clients that have been idle for longer than maxIdle.
func (l *ipLimiter) sweep(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) >= maxIdle {
			delete(l.clients, ip)
		}
	}
}

func (l *ipLimiter) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep(3 * time.Minute)
		}
	}
}

// redisLimiter is a fixed-window limiter shared by every instance that
// points at the same Redis. Keys look like rl:<window seconds>:<client>.
type redisLimiter struct {
	client      *redis.Client
	maxRequests int64
	window      time.Duration
}

func newRedisLimiter(client *redis.Client, maxRequests int, window time.Duration) *redisLimiter {
	return &redisLimiter{
		client:      client,
		maxRequests: int64(maxRequests),
		window:      window,
	}
}

func (l *redisLimiter) name() string { return "redis" }

// allow uses INCR and, on the first hit of a window, EXPIRE. That avoids
// EXPIRE NX, which older Redis servers reject.
func (l *redisLimiter) allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := "rl:" + strconv.FormatInt(int64(l.window.Seconds()), 10) + ":" + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, 0, err
		}
	}
	if count <= l.maxRequests {
		return true, 0, nil
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, l.window, err
	}
	if ttl < 0 {
		// the key lost its expiry (EXPIRE failed after INCR); give it one
		// so the client is not locked out for good.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, l.window, err
		}
		ttl = l.window
	}
	return false, ttl, nil
}
