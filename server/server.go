package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/xerrors"

	"github.com/billybrichards/climate-parser/logging"
)

var log = logging.GetLogger()

const shutdownTimeout = 30 * time.Second

// Listen binds host:port. If the port is already taken it tries the next one, up to
// attempts ports in total. The returned port is the one actually bound.
func Listen(host string, port, attempts int) (net.Listener, int, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		p := port + i
		if p > 65535 {
			break
		}
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			return ln, p, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, xerrors.Errorf("listen on port %d: %w", p, err)
		}
		log.Warnf("Port %d is in use, trying %d", p, p+1)
		lastErr = err
	}
	return nil, 0, xerrors.Errorf("no free port in %d..%d: %w", port, port+attempts-1, lastErr)
}

// Serve runs h on ln until ctx is done, then shuts the server down gracefully.
func Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return xerrors.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return xerrors.Errorf("serve: %w", err)
	}
	return nil
}
