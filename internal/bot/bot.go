// Package bot wires the bot's long-running components together and manages
// their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/clearskybot/internal/metrics"
	"github.com/edgard/clearskybot/internal/platform"
)

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger      *slog.Logger
	listener    platform.Runner
	scheduler   *Scheduler
	reactor     *Reactor
	metricsAddr string
}

// NewBot creates the orchestrator. listener receives platform updates,
// scheduler runs the daily post and maintenance, reactor answers mentions.
// metricsAddr may be empty to disable the metrics endpoint.
func NewBot(logger *slog.Logger, listener platform.Runner, scheduler *Scheduler, reactor *Reactor, metricsAddr string) *Bot {
	return &Bot{
		logger:      logger.With("component", "bot_orchestrator"),
		listener:    listener,
		scheduler:   scheduler,
		reactor:     reactor,
		metricsAddr: metricsAddr,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting platform listener...")
		if err := b.listener.Start(gCtx); err != nil {
			b.logger.Warn("Platform listener stopped unexpectedly", "error", err)
			return fmt.Errorf("platform listener failed: %w", err)
		}
		b.logger.Info("Platform listener stopped.")
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(gCtx); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting mention reactor...")
		if err := b.reactor.Run(gCtx); err != nil {
			return fmt.Errorf("mention reactor failed: %w", err)
		}
		b.logger.Info("Mention reactor stopped.")
		return nil
	})

	if b.metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gCtx, b.metricsAddr, b.logger)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
