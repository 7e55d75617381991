package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Status labels
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		// route templates keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(
			method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			reqSize,
			int64(c.Writer.Size()),
		)
	}
}

// Timer measures a dispatch
type Timer struct {
	start   time.Time
	metrics *Metrics
	backend string
}

// NewTimer starts a timer; a nil metrics collector makes Stop a no-op
func NewTimer(metrics *Metrics, backend string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		backend: backend,
	}
}

// Stop records the elapsed time under status
func (t *Timer) Stop(status string) time.Duration {
	elapsed := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.RecordDispatch(t.backend, status, elapsed)
	}
	return elapsed
}
