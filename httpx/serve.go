package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// DefaultShutdownTimeout is how long [Serve] waits for in-flight requests when ctx is done.
const DefaultShutdownTimeout = 5 * time.Second

// Serve will call [http.Server.Serve] with listener and respond to context cancellation to shut down the server.
// An optional shutdownTimeout may be passed to override [DefaultShutdownTimeout].
func Serve(ctx context.Context, srv *http.Server, listener net.Listener, shutdownTimeout ...time.Duration) error {
	return serveCtx(ctx, func() error {
		return srv.Serve(listener)
	}, srv.Shutdown, shutdownTimeout...)
}

func serveCtx(ctx context.Context, serveFn func() error, shutdownFn func(context.Context) error, shutdownTimeout ...time.Duration) error {
	srvErrs := make(chan error, 1)
	go func() {
		defer close(srvErrs)
		if err := serveFn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErrs <- err
		}
	}()

	select {
	case err := <-srvErrs:
		return err
	case <-ctx.Done():
		timeout := DefaultShutdownTimeout
		if len(shutdownTimeout) > 0 {
			timeout = shutdownTimeout[0]
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdownFn(shutdownCtx); err != nil {
			return err
		}
		return <-srvErrs
	}
}
