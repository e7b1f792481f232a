package ratelimit

import (
	"sync"
	"time"

	xhttp "TokenRank/pkg/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Keys idle longer than the idle TTL
// are swept on the next call after a TTL has passed.
type Limiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func New() *Limiter {
	return &Limiter{clients: make(map[string]*client), idleTTL: defaultIdleTTL, now: time.Now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	c, ok := l.clients[key]
	if !ok {
		burst := int(capacity)
		if burst < 1 {
			burst = 1
		}
		c = &client{limiter: rate.NewLimiter(rate.Limit(refillPerSec), burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) sweep(now time.Time) {
	if l.lastSweep.IsZero() {
		l.lastSweep = now
		return
	}
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idleTTL {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// Middleware limits requests per client IP. refill tokens are added every per.
func Middleware(l *Limiter, capacity, refill int, per time.Duration) echo.MiddlewareFunc {
	if per <= 0 {
		per = time.Second
	}
	perSec := float64(refill) / per.Seconds()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP(), float64(capacity), perSec) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
