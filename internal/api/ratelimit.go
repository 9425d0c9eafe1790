package api

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yourusername/async-resource/internal/resource"
)

const limiterTTL = 5 * time.Minute

// pollLimiter はクライアント IP ごとに状態・結果ルートへのポーリング頻度を制限します。
// limiterTTL のあいだリクエストが無いクライアントの limiter は破棄されます。
type pollLimiter struct {
	limit     rate.Limit
	burst     int
	limiters  sync.Map // client IP -> *cachedLimiter
	lastSweep atomic.Int64
	now       func() time.Time
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt atomic.Int64 // UnixNano
}

func (c *cachedLimiter) expired(now time.Time) bool {
	return now.UnixNano() >= c.expiresAt.Load()
}

func (c *cachedLimiter) touch(now time.Time) {
	c.expiresAt.Store(now.Add(limiterTTL).UnixNano())
}

// newPollLimiter は perSecond が 0 以下なら nil を返します。
func newPollLimiter(perSecond float64, burst int) *pollLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &pollLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		now:   time.Now,
	}
}

func (p *pollLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := p.get(c.ClientIP())
		if !limiter.Allow() {
			c.Header("Retry-After", strconv.Itoa(p.retryAfter()))
			resource.JSONError(c, http.StatusTooManyRequests, "RATE_LIMITED", "リクエストが多すぎます。しばらくしてから再度お試しください。")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (p *pollLimiter) get(key string) *rate.Limiter {
	now := p.now()
	p.sweep(now)

	if v, ok := p.limiters.Load(key); ok {
		cached := v.(*cachedLimiter)
		if !cached.expired(now) {
			cached.touch(now)
			return cached.limiter
		}
	}
	fresh := &cachedLimiter{limiter: rate.NewLimiter(p.limit, p.burst)}
	fresh.touch(now)
	actual, _ := p.limiters.LoadOrStore(key, fresh)
	cached := actual.(*cachedLimiter)
	if cached != fresh && cached.expired(now) {
		p.limiters.CompareAndSwap(key, cached, fresh)
		return fresh.limiter
	}
	cached.touch(now)
	return cached.limiter
}

// sweep は limiterTTL ごとに期限切れの limiter をまとめて削除します。
func (p *pollLimiter) sweep(now time.Time) {
	last := p.lastSweep.Load()
	if now.UnixNano()-last < int64(limiterTTL) {
		return
	}
	if !p.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	p.limiters.Range(func(key, value any) bool {
		if value.(*cachedLimiter).expired(now) {
			p.limiters.CompareAndDelete(key, value)
		}
		return true
	})
}

func (p *pollLimiter) retryAfter() int {
	seconds := int(1 / float64(p.limit))
	if seconds < 1 {
		return 1
	}
	return seconds
}
