package util

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filswan/go-swan-lib/logs"
)

type StopFunc func(context.Context) error

type ShutdownHandler struct {
	Component string
	StopFunc  StopFunc
}

func MonitorShutdown(triggerCh <-chan struct{}, handlers ...ShutdownHandler) <-chan struct{} {
	sigCh := make(chan os.Signal, 2)
	out := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logs.GetLogger().Warnf("received shutdown, signal: %s", sig)
		case <-triggerCh:
			logs.GetLogger().Warn("received shutdown")
		}

		logs.GetLogger().Warn("Shutting down...")

		// Call all the handlers, logging on failure and success.
		for _, h := range handlers {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := h.StopFunc(ctx)
			cancel()
			if err != nil {
				logs.GetLogger().Errorf("shutting down %s failed: %s", h.Component, err)
				continue
			}
			logs.GetLogger().Infof("%s shut down successfully ", h.Component)
		}

		logs.GetLogger().Warn("Graceful shutdown successful")

		close(out)
	}()

	signal.Reset(syscall.SIGTERM, syscall.SIGINT)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	return out
}

// ServeHttp starts h on addr. TLS is used when both certFile and keyFile are set.
func ServeHttp(h http.Handler, name string, addr string, certFile, keyFile string) (StopFunc, error) {
	tls := certFile != "" && keyFile != ""
	if tls {
		if _, err := os.Stat(certFile); err != nil {
			return nil, err
		}
		if _, err := os.Stat(keyFile); err != nil {
			return nil, err
		}
	}

	// Instantiate the server and start listening.
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		var err error
		if tls {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.GetLogger().Fatalf("service: %s, listen: %s\n", name, err)
		}
	}()

	logs.GetLogger().Infof("%s listening on %s, tls: %t", name, addr, tls)
	return srv.Shutdown, nil
}
