package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ReqContext derives a context that is cancelled on SIGTERM, SIGINT or SIGHUP,
// or when the returned cancel func is called.
func ReqContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, done := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 2)
	go func() {
		select {
		case <-sigChan:
			done()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	return ctx, done
}
