package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/registry"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/scheduler"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/server"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/sink"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/token"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

// runner is a component that lives as long as the process.
type runner interface {
	Run(ctx context.Context) error
}

// Exporter owns the poll loop, the exposition server and the optional sinks.
type Exporter struct {
	manager   *token.Manager
	watcher   *token.Watcher
	scheduler *scheduler.Scheduler
	registry  *registry.Registry
	gatherer  prometheus.Gatherer
	server    *server.Server
	runners   []runner
	archive   *sink.S3Sink

	tokenPath   string
	waitTimeout time.Duration
}

// Run loads the credential and runs every component until ctx is done. A missing or
// unreadable credential stops startup; nothing after that ends the process.
func (e *Exporter) Run(ctx context.Context) error {
	if err := token.WaitForFile(ctx, e.tokenPath, e.waitTimeout); err != nil {
		return err
	}
	if err := e.manager.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load credential from %s (run tesla-token-setup first): %w", e.tokenPath, err)
	}

	if e.archive != nil {
		if err := e.archive.CheckBucket(ctx); err != nil {
			log.Warn("Payload archive bucket not ready", "error", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.server.Start(ctx)
	})
	g.Go(func() error {
		return e.scheduler.Run(ctx)
	})
	if e.watcher != nil {
		g.Go(func() error {
			return e.watcher.Run(ctx)
		})
	}
	for _, r := range e.runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	log.Info("Exporter started", "tokenFile", e.tokenPath)
	return g.Wait()
}
