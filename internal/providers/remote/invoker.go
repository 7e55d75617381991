package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// HeaderInstanceID carries the calling server's instance id
const HeaderInstanceID = "X-Instance-ID"

// maxErrorBody bounds how much of a failed response is quoted in errors
const maxErrorBody = 512

// Invoker calls remote service endpoints
type Invoker struct {
	client     *Client
	detector   *LoopbackDetector
	instanceID string
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewInvoker creates an invoker. detector may be nil to disable the address check.
func NewInvoker(client *Client, detector *LoopbackDetector, instanceID string, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		client:     client,
		detector:   detector,
		instanceID: instanceID,
		logger:     logger,
	}
}

// WithMetrics sets the metrics collector
func (i *Invoker) WithMetrics(metrics *monitoring.Metrics) *Invoker {
	i.metrics = metrics
	return i
}

// Client returns the underlying HTTP client
func (i *Invoker) Client() *Client {
	return i.client
}

// Invoke POSTs payload as a JSON object to rawURL and returns the decoded
// JSON object answer. An endpoint resolving to this server is refused
// without any network traffic.
func (i *Invoker) Invoke(ctx context.Context, rawURL string, payload types.Payload) (map[string]interface{}, error) {
	ep, err := ParseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}

	if i.detector != nil {
		loop, err := i.detector.IsLoopback(ctx, ep)
		if err != nil {
			i.logger.Warn("Loopback check failed", zap.String("endpoint", ep.Addr()), zap.Error(err))
		}
		if loop {
			i.metrics.IncLoopbackRejected()
			i.logger.Warn("Refusing self invocation", zap.String("endpoint", ep.String()), zap.String("self", i.detector.Self()))
			return nil, fmt.Errorf("%w: %s resolves to this server (%s); calling it would deadlock the request",
				ErrLoopbackDetected, ep.Addr(), i.detector.Self())
		}
	}

	if payload == nil {
		payload = types.Payload{}
	}
	body, err := payload.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", ErrRemoteTransport, err)
	}

	headers := http.Header{}
	if i.instanceID != "" {
		headers.Set(HeaderInstanceID, i.instanceID)
	}
	tracing.Inject(ctx, headers)

	start := time.Now()
	resp, err := i.client.PostJSON(ctx, ep, body, headers)
	if err != nil {
		i.metrics.RecordRemoteCall(ep.Addr(), "error", time.Since(start))
		return nil, err
	}
	i.metrics.RecordRemoteCall(ep.Addr(), strconv.Itoa(resp.StatusCode()), time.Since(start))

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s returned %s: %s", ErrRemoteStatus, ep.Addr(), resp.Status(), truncate(resp.Body()))
	}

	var out map[string]interface{}
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil || out == nil {
		return nil, fmt.Errorf("%w: %s returned a body that is not a JSON object: %s", ErrRemoteStatus, ep.Addr(), truncate(resp.Body()))
	}
	return out, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
