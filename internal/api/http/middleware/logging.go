package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	httpctx "github.com/klari-app/klari-server/internal/api/http/context"
	"github.com/klari-app/klari-server/internal/logger"
)

// HTTPObserver records request latency.
type HTTPObserver interface {
	ObserveHTTP(method, route, status string, d time.Duration)
}

// Logging logs every request and reports its latency by route pattern.
type Logging struct {
	logger   *logger.Logger
	observer HTTPObserver
}

func NewLogging(logger *logger.Logger, observer HTTPObserver) *Logging {
	return &Logging{logger: logger, observer: observer}
}

func (l *Logging) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		route := routePattern(r)

		if l.observer != nil {
			l.observer.ObserveHTTP(r.Method, route, strconv.Itoa(status), duration)
		}

		l.logger.Info("HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
			"request_id", httpctx.RequestID(r.Context()))
	})
}

// routePattern returns the matched chi pattern so metrics do not explode on ids.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
