package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/monitoring"
	"github.com/mezonai/simplewallet/ratelimit"
)

// Logger logs every request through logx
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// HTTP/2 connection preface
		if c.Request.Method == "PRI" {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path = path + "?" + query
		}

		c.Next()

		msg := fmt.Sprintf("%s %s %d %v %s", c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP())
		if c.Writer.Status() >= http.StatusInternalServerError {
			logx.Error("API", msg)
		} else {
			logx.Debug("API", msg)
		}
	}
}

// Recovery turns a handler panic into a 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("API", "Panic recovered:", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal_error", "Internal server error"))
			}
		}()
		c.Next()
	}
}

// RateLimit rejects a client IP with 429 once it exceeds the limiter's window
func RateLimit(limiter *ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, retryAfter := limiter.Reserve(ip)
		if !ok {
			err := &ratelimit.RateLimitError{Key: ip, RetryAfter: retryAfter}
			logx.Warn("API", err.Error())
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("rate_limited", err.Error()))
			return
		}
		c.Next()
	}
}
