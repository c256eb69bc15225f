package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/runnerr0/dwell/internal/bridge"
	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

// Execute implements the go-flags Commander interface for ServeCommand.
// It runs until SIGINT or SIGTERM.
func (c *ServeCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx)
}

// run serves until ctx is done.
func (c *ServeCommand) run(ctx context.Context) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.globals != nil && c.globals.Verbose {
		cfg.Logging.Level = "debug"
	}

	logDir := ""
	if cfg.Logging.File != "" {
		dbPath, err := c.dbPath(cfg)
		if err != nil {
			return err
		}
		logDir = filepath.Dir(dbPath)
	}
	logger, closer, err := logging.Open(cfg.Logging, logDir)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closer.Close()

	return c.withStore(func(store *storage.SQLiteStore, cfg *config.Config) error {
		return c.serve(ctx, store, cfg, logger)
	})
}

func (c *ServeCommand) serve(ctx context.Context, store *storage.SQLiteStore, cfg *config.Config, logger *slog.Logger) error {
	if err := applyDenylist(ctx, store, cfg.Capture); err != nil {
		return err
	}

	tabs := tracker.NewTabState()
	poller := tracker.NewPoller(tabs, store, store, tracker.PollerConfig{
		Interval:         cfg.Tracking.TickInterval(),
		Threshold:        cfg.Tracking.MinRecord(),
		UntrackedSchemes: cfg.Tracking.UntrackedSchemes,
	}, logger)
	sweeper := tracker.NewSweeper(store, tracker.SweeperConfig{
		Interval:      cfg.Retention.SweepInterval(),
		RetentionDays: cfg.Retention.Days,
	}, logger)

	srv := bridge.NewServer(bridge.Options{
		Addr:            cfg.Daemon.Addr(),
		AuthToken:       cfg.Daemon.AuthToken,
		MaxMessageBytes: int64(cfg.Daemon.MaxMessageBytes),
		Store:           store,
		Tabs:            tabs,
		Events:          poller,
		PollerStats:     poller.Stats,
		Logger:          logger,
	})

	if err := <-srv.StartAsync(); err != nil {
		return err
	}
	poller.Start()
	sweeper.Start()

	addr := srv.Addr()
	logger.Info("dwell serving", "addr", addr, "version", c.version,
		"threshold", cfg.Tracking.MinRecord(), "retention_days", cfg.Retention.Days)
	if !c.jsonOutput() {
		fmt.Printf("dwell %s listening on %s (Ctrl-C to stop)\n", c.version, addr)
	}
	if c.ready != nil {
		c.ready(addr)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	poller.Stop()
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
