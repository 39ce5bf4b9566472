// Package middleware contains Gin middleware for the application.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nyxikitty/mpp-server-go/internal/v1/logging"
)

// HeaderXCorrelationID is the header key for the correlation ID.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID tags every request with a correlation id: the caller's, or
// a freshly minted one. The id is echoed in the response header and
// planted in the request context under logging.CorrelationIDKey, so
// everything downstream that logs through the logging package with the
// request context (the connect rate limiter) carries it without further
// plumbing.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderXCorrelationID)
		if id == "" {
			id = uuid.New().String()
		}

		c.Header(HeaderXCorrelationID, id)

		ctx := context.WithValue(c.Request.Context(), logging.CorrelationIDKey, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
