package errors

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleError writes err as an RFC 7807 response on c.
func HandleError(c *gin.Context, err error) {
	pd := FromError(err, c.Request.URL.Path)
	if traceID := c.GetHeader("X-Trace-ID"); traceID != "" {
		pd.WithTraceID(traceID)
	}
	c.Header("Content-Type", "application/problem+json")
	c.JSON(pd.Status, pd)
}

// Middleware converts errors attached to the gin context into RFC 7807
// responses after the handler chain runs.
func Middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		pd := FromError(err, c.Request.URL.Path)
		if pd.Status >= 500 {
			logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		}
		if traceID := c.GetHeader("X-Trace-ID"); traceID != "" {
			pd.WithTraceID(traceID)
		}
		c.Header("Content-Type", "application/problem+json")
		c.JSON(pd.Status, pd)
		c.Abort()
	}
}
