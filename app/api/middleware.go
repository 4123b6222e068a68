package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	servertiming "github.com/mitchellh/go-server-timing"
	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/metrics"
)

// RequestLogger logs one line per request once the response is written.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Error("request failed", fields...)
				return
			}
			logger.Info("request", fields...)
		})
	}
}

// Metrics records request counts and latency by route pattern.
func Metrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			collector.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}

// ServerTiming adds a Server-Timing header to every response.
func ServerTiming(next http.Handler) http.Handler {
	return servertiming.Middleware(next, nil)
}

// StartTiming starts a Server-Timing metric on the request context. The
// returned func stops it and is safe to call when timing is not enabled.
func StartTiming(ctx context.Context, name string) func() {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return func() {}
	}
	metric := timing.NewMetric(name).Start()
	return func() { metric.Stop() }
}
