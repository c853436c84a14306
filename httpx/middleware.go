package httpx

import (
	"context"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"log/slog"
	"net/http"
	"time"
)

// Middleware is a function that wraps another [http.Handler] to inject logic before or after the handler is run.
type Middleware func(next http.Handler) http.Handler

// Wrap will wrap the given [http.Handler], such that all given [Middleware] will be executed in the order provided.
//
// If no middleware are provided, then the handler will be returned unchanged.
func Wrap(next http.Handler, middlewares ...Middleware) http.Handler {
	if next == nil {
		panic("nil handler")
	}
	// Wrapped in reverse order, so they're executed in parameter order.
	for i := len(middlewares) - 1; i >= 0; i-- {
		next = middlewares[i](next)
	}
	return next
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.statusCode = statusCode
}

// LoggingMiddleware logs each request at level, including status code, method, path, and duration.
func LoggingMiddleware(log *slog.Logger, level slog.Level) Middleware {
	log = slogx.OrDiscard(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			defer func() {
				log.Log(context.Background(), level, "Handled request",
					"statusCode", sw.statusCode,
					"method", r.Method,
					"path", r.URL.Path,
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

// RecoveryMiddleware recovers a panicking handler, logs the panic value, and responds with a 500.
func RecoveryMiddleware(log *slog.Logger) Middleware {
	log = slogx.OrDiscard(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					log.Error("Recovered from handler panic", "path", r.URL.Path, "panic", v)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
