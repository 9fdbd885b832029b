package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	requestTime metric.Int64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	reqTime, err := meter.Int64Histogram("http_request_time", metric.WithDescription("http request time"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_time histogram: %w", err)
	}

	return &Metrics{
		requestTime: reqTime,
	}, nil
}

// Middleware records the handling time per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := r.Method + " " + r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = r.Method + " " + rctx.RoutePattern()
		}
		m.requestTime.Record(r.Context(), time.Since(start).Milliseconds(), metric.WithAttributes(attribute.String("route", route)))
	})
}
