package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/artifact"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/remote"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// ErrNoBackend is reported for services declaring neither backend
var ErrNoBackend = errors.New("service has no executable backend configured")

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
	BackendNone   = "none"
)

// RemoteInvoker calls a remote endpoint with a JSON payload
type RemoteInvoker interface {
	Invoke(ctx context.Context, url string, payload types.Payload) (map[string]interface{}, error)
}

// ArtifactRunner predicts with a local artifact
type ArtifactRunner interface {
	Run(ctx context.Context, path string, x []float64) (map[string]interface{}, error)
}

// Dispatcher routes service calls to their backend
type Dispatcher struct {
	remote  RemoteInvoker
	local   ArtifactRunner
	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// New creates a dispatcher
func New(remote RemoteInvoker, local ArtifactRunner, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		remote: remote,
		local:  local,
		logger: logger,
	}
}

// WithMetrics sets the metrics collector
func (d *Dispatcher) WithMetrics(metrics *monitoring.Metrics) *Dispatcher {
	d.metrics = metrics
	return d
}

// WithTracer sets the tracer
func (d *Dispatcher) WithTracer(tracer *tracing.Tracer) *Dispatcher {
	d.tracer = tracer
	return d
}

// FilterPayload keeps the raw keys naming declared parameters, in declared
// order. Unknown keys are dropped and missing ones omitted.
func FilterPayload(params []types.ServiceParameter, raw map[string]interface{}) types.Payload {
	payload := make(types.Payload, 0, len(params))
	for _, p := range params {
		if value, ok := raw[p.Name]; ok {
			payload = append(payload, types.Feature{Name: p.Name, Value: value})
		}
	}
	return payload
}

// Dispatch runs svc against raw. Backend failures never escape: they come
// back as a ServiceOutput with one error and Cause set.
func (d *Dispatcher) Dispatch(ctx context.Context, svc types.Service, raw map[string]interface{}) (out types.ServiceOutput) {
	payload := FilterPayload(svc.Parameters, raw)
	backend := backendLabel(svc.Backend())

	var span *tracing.Span
	if d.tracer != nil {
		span, ctx = d.tracer.StartSpan(ctx, "dispatch")
		span.SetTag("service_id", svc.ID)
		span.SetTag("backend", backend)
	}
	timer := monitoring.NewTimer(d.metrics, backend)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatch panicked", zap.String("service_id", svc.ID), zap.Any("panic", r))
			out = types.FailedServiceOutput(payload, fmt.Errorf("internal error while dispatching: %v", r))
		}

		status := monitoring.StatusSuccess
		if !out.Succeeded() {
			status = monitoring.StatusFailure
			d.metrics.RecordDispatchError(backend, ErrorKind(out.Cause))
			if span != nil {
				span.SetError(out.Cause)
			}
		}
		timer.Stop(status)
		d.tracer.End(span)
	}()

	if err := svc.ValidateSchema(); err != nil {
		return types.FailedServiceOutput(payload, err)
	}

	var (
		result map[string]interface{}
		err    error
	)
	switch b := svc.Backend().(type) {
	case types.RemoteEndpoint:
		result, err = d.invokeRemote(ctx, b, payload)
	case types.LocalArtifact:
		result, err = d.runLocal(ctx, svc, b, payload)
	default:
		err = ErrNoBackend
	}

	if err != nil {
		d.logger.Warn("Dispatch failed",
			zap.String("service_id", svc.ID),
			zap.String("backend", backend),
			zap.Strings("features", payload.Names()),
			zap.Error(err),
		)
		return types.FailedServiceOutput(payload, err)
	}

	d.logger.Debug("Dispatch succeeded", zap.String("service_id", svc.ID), zap.String("backend", backend))
	return types.NewServiceOutput(payload, result)
}

func (d *Dispatcher) invokeRemote(ctx context.Context, b types.RemoteEndpoint, payload types.Payload) (map[string]interface{}, error) {
	if d.remote == nil {
		return nil, fmt.Errorf("%w: remote invocation is not available", ErrNoBackend)
	}
	return d.remote.Invoke(ctx, b.URL, payload)
}

func (d *Dispatcher) runLocal(ctx context.Context, svc types.Service, b types.LocalArtifact, payload types.Payload) (map[string]interface{}, error) {
	if d.local == nil {
		return nil, fmt.Errorf("%w: local artifacts are not available", ErrNoBackend)
	}
	x, err := artifact.Vectorize(svc.Parameters, payload)
	if err != nil {
		return nil, err
	}
	return d.local.Run(ctx, b.Path, x)
}

func backendLabel(b types.Backend) string {
	switch b.(type) {
	case types.RemoteEndpoint:
		return BackendRemote
	case types.LocalArtifact:
		return BackendLocal
	default:
		return BackendNone
	}
}

// ErrorKind names the failure class of a dispatch error
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, types.ErrInvalidService):
		return "invalid_service"
	case errors.Is(err, ErrNoBackend):
		return "no_backend"
	case errors.Is(err, remote.ErrInvalidEndpoint):
		return "invalid_endpoint"
	case errors.Is(err, remote.ErrLoopbackDetected):
		return "loopback"
	case errors.Is(err, remote.ErrRemoteTransport):
		return "remote_transport"
	case errors.Is(err, remote.ErrRemoteStatus):
		return "remote_status"
	case errors.Is(err, artifact.ErrArtifactLoad):
		return "artifact_load"
	case errors.Is(err, artifact.ErrPrediction):
		return "prediction"
	default:
		return "internal"
	}
}
