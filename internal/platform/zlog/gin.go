package zlog

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/louisbranch/groupgate/internal/platform/id"
	"github.com/louisbranch/groupgate/internal/platform/requestctx"
	"go.uber.org/zap"
)

// GinLogger attaches a request id and a request logger to each request
// context and writes one access line when the handler returns. A caller
// supplied X-Request-Id is kept; otherwise one is generated.
func GinLogger(base *zap.Logger) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(requestctx.HeaderRequestID))
		if requestID == "" {
			if generated, err := id.NewID(); err == nil {
				requestID = generated
			}
		}
		c.Header(requestctx.HeaderRequestID, requestID)

		l := base.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		ctx := requestctx.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(WithContext(ctx, l))
		c.Next()

		l.Info("access",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes_out", c.Writer.Size()),
		)
	}
}
