package metrics

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	httpRequestsName = "http.server.requests"
	httpDurationName = "http.server.duration"
	outcomeKey       = "outcome"
)

// HTTP records one counter increment and one latency sample per request,
// labelled by method and outcome.
type HTTP struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func NewHTTP(meter metric.Meter) (*HTTP, error) {
	requests, err := meter.Int64Counter(httpRequestsName,
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(httpDurationName,
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &HTTP{requests: requests, duration: duration}, nil
}

func (h *HTTP) Record(ctx context.Context, method string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String(outcomeKey, Outcome(status)),
	)
	h.requests.Add(ctx, 1, attrs)
	h.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// Outcome buckets a status code. Conflicts are kept apart from client
// errors since rejected stage submissions land there.
func Outcome(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return "rejected"
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "denied"
	case status == http.StatusTooManyRequests:
		return "throttled"
	case status >= http.StatusBadRequest:
		return "client_error"
	}
	return "ok"
}
