package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ringsight/ringsight/config"
	"github.com/ringsight/ringsight/utils"
)

// clientLimiter pairs a token bucket with an idle expiry so the per-IP map
// doesn't grow without bound.
type clientLimiter struct {
	bucket  *rate.Limiter
	expires time.Time
	mu      sync.Mutex
}

var (
	clients   = map[string]*clientLimiter{}
	clientsMu sync.Mutex
)

// RateLimitMiddleware sheds requests per client IP once the configured
// per-minute budget is spent. Over-limit requests get 429 with code 42901.
func RateLimitMiddleware() gin.HandlerFunc {
	cfg := config.Get()
	perMinute := max(cfg.RateLimitPerMinute, 1)
	every := rate.Every(time.Minute / time.Duration(perMinute))
	burst := max(perMinute/2, 1)

	return func(ctx *gin.Context) {
		limiter := limiterFor(ctx.ClientIP(), every, burst)

		limiter.mu.Lock()
		allowed := limiter.bucket.Allow()
		limiter.mu.Unlock()

		if !allowed {
			utils.Error(ctx, 429, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func limiterFor(ip string, limit rate.Limit, burst int) *clientLimiter {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	dropIdleLocked()

	if limiter, ok := clients[ip]; ok {
		limiter.expires = time.Now().Add(5 * time.Minute)
		return limiter
	}

	limiter := &clientLimiter{
		bucket:  rate.NewLimiter(limit, burst),
		expires: time.Now().Add(5 * time.Minute),
	}
	clients[ip] = limiter
	return limiter
}

func dropIdleLocked() {
	now := time.Now()
	for ip, limiter := range clients {
		if now.After(limiter.expires) {
			delete(clients, ip)
		}
	}
}
