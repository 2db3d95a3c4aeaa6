package invoke

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultBlockFor  = 2 * time.Minute
	defaultIdleAfter = 15 * time.Minute
	defaultSweep     = 30 * time.Minute
)

type client struct {
	limiter      *rate.Limiter
	lastAccess   time.Time
	blockedUntil time.Time
}

// RateLimiter allows each client IP perSecond requests with an equal burst.
// A client that exceeds it is refused for blockFor. Idle clients are dropped
// by Sweep, which Listen runs periodically so the limiter can sit alongside
// the servers as a startup.Listener.
type RateLimiter struct {
	log       Logger
	perSecond int
	blockFor  time.Duration
	idleAfter time.Duration
	sweep     time.Duration
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*client

	stop     chan struct{}
	stopOnce sync.Once
}

type RateLimiterOption func(*RateLimiter)

func WithBlockFor(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		r.blockFor = d
	}
}

func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.now = now
	}
}

func WithSweepInterval(every, idleAfter time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		r.sweep = every
		r.idleAfter = idleAfter
	}
}

func NewRateLimiter(log Logger, perSecond int, opts ...RateLimiterOption) *RateLimiter {
	if perSecond < 1 {
		perSecond = 1
	}
	r := &RateLimiter{
		log:       log.WithIndex("component", "ratelimit"),
		perSecond: perSecond,
		blockFor:  defaultBlockFor,
		idleAfter: defaultIdleAfter,
		sweep:     defaultSweep,
		now:       time.Now,
		clients:   map[string]*client{},
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RateLimiter) String() string {
	return "ratelimit"
}

// Allow reports whether ip may proceed, and if not, until when it is blocked.
func (r *RateLimiter) Allow(ip string) (bool, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c, ok := r.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(r.perSecond), r.perSecond)}
		r.clients[ip] = c
	}
	c.lastAccess = now

	if now.Before(c.blockedUntil) {
		return false, c.blockedUntil
	}
	if !c.limiter.AllowN(now, 1) {
		c.blockedUntil = now.Add(r.blockFor)
		r.log.Infof("rate limit exceeded for %s (%d/s), blocked until %s", ip, r.perSecond, c.blockedUntil.Format(time.RFC3339))
		return false, c.blockedUntil
	}
	return true, time.Time{}
}

// Middleware refuses rate limited clients with 429.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, until := r.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", fmt.Sprintf("%.0f", until.Sub(r.now()).Seconds()))
			failure(c, http.StatusTooManyRequests,
				"too many requests, please wait until "+until.Format(time.RFC3339), nil)
			return
		}
		c.Next()
	}
}

// Sweep forgets clients idle for longer than idleAfter and returns how many
// were dropped.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	dropped := 0
	for ip, c := range r.clients {
		if now.Sub(c.lastAccess) > r.idleAfter && !now.Before(c.blockedUntil) {
			delete(r.clients, ip)
			dropped++
		}
	}
	return dropped
}

func (r *RateLimiter) Listen() error {
	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debugf("dropped %d idle clients", n)
			}
		}
	}
}

func (r *RateLimiter) Shutdown(_ context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}
