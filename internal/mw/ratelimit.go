package mw

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/auth"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// Limiter 为每个 key 维护一个令牌桶，闲置超过 ttl 的桶会被回收。
type Limiter struct {
	mu   sync.Mutex
	m    map[string]*keyLimiter
	r    rate.Limit
	b    int
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

func NewLimiter(r rate.Limit, burst int, ttl time.Duration) *Limiter {
	l := &Limiter{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl, stop: make(chan struct{})}
	go l.gc()
	return l
}

// Allow 消耗 key 对应桶中的一个令牌。
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	kl, ok := l.m[key]
	if ok {
		kl.ts = time.Now()
	} else {
		kl = &keyLimiter{lim: rate.NewLimiter(l.r, l.b), ts: time.Now()}
		l.m[key] = kl
	}
	l.mu.Unlock()
	return kl.lim.Allow()
}

func (l *Limiter) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for k, v := range l.m {
				if now.Sub(v.ts) > l.ttl {
					delete(l.m, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop 停止 GC goroutine，用于优雅停服。
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// KeyFunc 从请求中提取限速维度。
type KeyFunc func(c *gin.Context) string

// ByIP 按客户端 IP 与路由模板限速。
func ByIP(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.ClientIP() + "|" + path
}

// ByUser 按登录用户限速，未登录时退回到 IP。必须挂在 AuthMiddleware 之后。
func ByUser(c *gin.Context) string {
	if id := auth.GetUserID(c); id != 0 {
		return "user:" + strconv.FormatUint(uint64(id), 10) + "|" + c.FullPath()
	}
	return ByIP(c)
}

// RateLimit 返回令牌桶限速中间件，超限时返回 429。
func RateLimit(l *Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(key(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
