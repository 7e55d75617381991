/*
Package tracing follows a request from the REST surface through dispatch and
out to remote model endpoints.

Spans are collected on a buffered channel and written to the structured log
by a single goroutine. A full buffer drops spans instead of blocking requests.

# Propagation

Incoming requests may carry X-Trace-ID and X-Span-ID. The HTTP middleware
adopts them, echoes the trace id on the response, and stores both in the
request context. Outbound calls copy them back onto request headers with
Inject.

# Usage

	tracer := tracing.New("servicehub", logger)
	defer tracer.Close()

	router.Use(tracing.Middleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "dispatch")
	defer tracer.End(span)
	span.SetTag("service_id", svc.ID)
*/
package tracing
