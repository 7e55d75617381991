package tracing

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/id"
)

const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"

	spanBufferSize = 1000
)

// TraceID identifies one request flow
type TraceID string

// SpanID identifies one operation within a trace
type SpanID string

// Span is a single timed operation
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	Err        error

	mu   sync.Mutex
	tags map[string]string
}

// SetTag attaches a key/value pair to the span
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	s.tags[key] = value
	s.mu.Unlock()
}

// Tags returns a copy of the span tags
func (s *Span) Tags() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// SetError records a failure
func (s *Span) SetError(err error) {
	s.Err = err
}

// SetStatus records an HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

func (s *Span) finish() {
	s.Duration = time.Since(s.StartTime)
}

// Tracer creates spans and logs them when they end
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}
	once    sync.Once
}

// New creates a tracer and starts its collector
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, spanBufferSize),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span, continuing the trace found in ctx if any
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewSpanID()),
		ParentID:  SpanIDFrom(ctx),
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		tags:      make(map[string]string),
	}

	return span, WithSpan(ctx, traceID, span.SpanID)
}

// End finishes the span and queues it for logging
func (t *Tracer) End(span *Span) {
	if t == nil || span == nil {
		return
	}
	span.finish()

	select {
	case <-t.done:
		return
	default:
	}

	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
		)
	}
}

// Close stops the collector after draining queued spans
func (t *Tracer) Close() {
	t.once.Do(func() {
		close(t.done)
	})
}

func (t *Tracer) collect() {
	for {
		select {
		case span := <-t.spans:
			t.log(span)
		case <-t.done:
			for {
				select {
				case span := <-t.spans:
					t.log(span)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracer) log(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.String("service", span.Service),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Tags() {
		fields = append(fields, zap.String(k, v))
	}

	if span.Err != nil {
		t.logger.Warn("span completed with error", append(fields, zap.Error(span.Err))...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// WithSpan stores trace and span ids in ctx
func WithSpan(ctx context.Context, traceID TraceID, spanID SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// TraceIDFrom returns the trace id carried by ctx
func TraceIDFrom(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}

// SpanIDFrom returns the current span id carried by ctx
func SpanIDFrom(ctx context.Context) SpanID {
	spanID, _ := ctx.Value(spanIDKey).(SpanID)
	return spanID
}

// Extract reads propagated ids from request headers
func Extract(h http.Header) (TraceID, SpanID) {
	return TraceID(h.Get(HeaderTraceID)), SpanID(h.Get(HeaderSpanID))
}

// Inject writes the ids carried by ctx onto outbound headers
func Inject(ctx context.Context, h http.Header) {
	if traceID := TraceIDFrom(ctx); traceID != "" {
		h.Set(HeaderTraceID, string(traceID))
	}
	if spanID := SpanIDFrom(ctx); spanID != "" {
		h.Set(HeaderSpanID, string(spanID))
	}
}
