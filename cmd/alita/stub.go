package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/pipeline"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/pipeline/stub"
)

// StubCmd serves the in-process stub platform over HTTP. Useful for local
// development and for exercising suites without a real platform.
type StubCmd struct {
	Addr    string        `help:"Listen address." default:":8080"`
	Outcome string        `help:"Terminal status every execution reaches (succeeded, failed, cancelled)." default:"succeeded"`
	Latency time.Duration `help:"How long executions stay running before turning terminal." default:"0s"`
	Token   string        `help:"Require this bearer token on every request."`
}

func (c *StubCmd) Run() error {
	outcome := pipeline.Status(c.Outcome)
	if !outcome.IsTerminal() {
		return fmt.Errorf("invalid outcome %q: must be succeeded, failed, or cancelled", c.Outcome)
	}

	server := stub.NewServer(stub.Options{
		Outcome: outcome,
		Latency: c.Latency,
		Token:   c.Token,
	})

	httpServer := &http.Server{
		Addr:    c.Addr,
		Handler: server.Handler(),
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Stub platform listening", "addr", c.Addr, "outcome", outcome)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("stub server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
