package monitoring

import (
	"errors"
	"strconv"
	"time"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
	"github.com/gin-gonic/gin"
)

// Collector call outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport_error"
	OutcomeProtocol  = "protocol_error"
	OutcomeRemote    = "remote_error"
	OutcomeNetwork   = "network_error"
)

// Middleware creates a Gin middleware for request metrics
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Outcome classifies a collector call error for metric labels
func Outcome(err error) string {
	var (
		transport *agenterr.TransportError
		protocol  *agenterr.ProtocolError
		remote    *agenterr.RemoteError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &transport):
		return OutcomeTransport
	case errors.As(err, &protocol):
		return OutcomeProtocol
	case errors.As(err, &remote):
		return OutcomeRemote
	default:
		return OutcomeNetwork
	}
}

// Timer measures a collector call
type Timer struct {
	start   time.Time
	metrics *Metrics
	method  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, method string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		method:  method,
	}
}

// Stop records the call duration with the outcome derived from err
func (t *Timer) Stop(err error) {
	t.metrics.RecordCollectorCall(t.method, Outcome(err), time.Since(t.start))
}
