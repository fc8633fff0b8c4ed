package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

// CreateContextWithShutdown returns a context that will report done when SIGINT or SIGTERM is received
func CreateContextWithShutdown() context.Context {
	ctx, _ := WithShutdown(context.Background())
	return ctx
}

// WithShutdown derives a context that is cancelled on SIGINT or SIGTERM, or when the returned cancel func is
// called. Signal handling is released once the context is done.
func WithShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			logging.Infof("Received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
