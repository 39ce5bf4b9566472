// Package ratelimit implements connection-rate limiting for the WebSocket
// endpoint.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/nyxikitty/mpp-server-go/internal/v1/config"
	"github.com/nyxikitty/mpp-server-go/internal/v1/logging"
	"github.com/nyxikitty/mpp-server-go/internal/v1/metrics"
)

// Limiter guards the WebSocket upgrade path. State is process-local; the
// in-protocol note quota handles per-client throttling once a connection
// is established.
type Limiter struct {
	wsIP  *limiter.Limiter
	store limiter.Store
}

// New creates a Limiter from the configured per-IP connect rate.
func New(cfg *config.Config) (*Limiter, error) {
	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	store := memory.NewStore()

	return &Limiter{
		wsIP:  limiter.New(store, wsIPRate),
		store: store,
	}, nil
}

// CheckWebSocket checks whether a WebSocket connection attempt from this
// IP should be allowed. Returns false after writing a 429; fails open when
// the store errors.
func (rl *Limiter) CheckWebSocket(c *gin.Context) bool {
	ctx := c.Request.Context()

	ip := c.ClientIP()
	ipContext, err := rl.wsIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "WS rate limiter store failed", zap.Error(err))
		return true // Fail open
	}

	metrics.RateLimitRequests.WithLabelValues("websocket_connect").Inc()

	if ipContext.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		logging.Warn(ctx, "WS connect rate exceeded", zap.String("ip", logging.RedactIP(ip)))
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(ipContext.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}

	return true
}
