package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/remote"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// LoopGuard rejects requests that this same process sent, recognised by the
// X-Instance-ID header the remote invoker attaches. It catches self calls the
// address check misses, such as a route back in through a reverse proxy.
func LoopGuard(instanceID string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if instanceID == "" || c.GetHeader(remote.HeaderInstanceID) != instanceID {
			c.Next()
			return
		}

		logger.Warn("Rejected request originating from this instance",
			zap.String("path", c.Request.URL.Path),
			zap.String("instance_id", instanceID),
		)
		c.AbortWithStatusJSON(http.StatusLoopDetected, types.NewResponse(
			http.StatusLoopDetected,
			"request originated from this server; serving it would deadlock the caller",
			nil,
		))
	}
}
