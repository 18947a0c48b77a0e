package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"rentora_backend/internal/logger"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// IPRateLimiter ограничивает частоту запросов с одного IP.
// Используется на публичных эндпоинтах колбэков шлюзов.
type IPRateLimiter struct {
	limiters sync.Map // map[string]*ipLimiter
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := l.limiters.Load(ip); ok {
		entry := v.(*ipLimiter)
		entry.lastSeen.Store(l.now().UnixNano())
		return entry.limiter
	}

	entry := &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
	entry.lastSeen.Store(l.now().UnixNano())
	actual, _ := l.limiters.LoadOrStore(ip, entry)
	return actual.(*ipLimiter).limiter
}

// Allow сообщает, можно ли пропустить ещё один запрос с ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.limiterFor(ip).Allow()
}

// Middleware отвечает 429, когда лимит исчерпан.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			logger.CtxWarn(c.Request.Context(), "rate limit exceeded", "client_ip", ip, "path", c.Request.URL.Path)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

// Evict удаляет лимитеры IP, которые не появлялись дольше maxIdle.
func (l *IPRateLimiter) Evict(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle).UnixNano()
	evicted := 0
	l.limiters.Range(func(key, val any) bool {
		if val.(*ipLimiter).lastSeen.Load() < cutoff {
			l.limiters.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

// StartJanitor периодически чистит неактивные IP до отмены ctx.
func (l *IPRateLimiter) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Evict(maxIdle); n > 0 {
					logger.Debug("Evicted idle rate limiters", "count", n)
				}
			}
		}
	}()
}
