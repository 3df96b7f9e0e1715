// Package main contains the entrypoint for the Clear Sky Chart bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/clearskybot/internal/bot"
	"github.com/edgard/clearskybot/internal/bot/handlers"
	"github.com/edgard/clearskybot/internal/bot/tasks"
	"github.com/edgard/clearskybot/internal/chart"
	"github.com/edgard/clearskybot/internal/config"
	"github.com/edgard/clearskybot/internal/cursor"
	"github.com/edgard/clearskybot/internal/database"
	"github.com/edgard/clearskybot/internal/geocode"
	"github.com/edgard/clearskybot/internal/logger"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
	"github.com/edgard/clearskybot/internal/resilience"
	"github.com/edgard/clearskybot/internal/resolver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// platformClient is what the bot needs from a platform adapter.
type platformClient interface {
	platform.Client
	platform.Runner
}

// newPlatform builds the configured platform adapter.
func newPlatform(ctx context.Context, cfg *config.Config, log *slog.Logger) (platformClient, error) {
	switch cfg.Platform.Kind {
	case "telegram":
		tg, err := platform.NewTelegram(ctx, platform.TelegramConfig{
			Token:     cfg.Platform.Telegram.Token,
			ChannelID: cfg.Platform.Telegram.ChannelID,
			ServerURL: cfg.Platform.Telegram.ServerURL,
		}, log)
		if err != nil {
			return nil, err
		}
		return tg, nil
	case "log":
		log.Warn("Using the log platform: posts are only logged and no mentions are received")
		return platform.NewLogClient(log), nil
	default:
		return nil, fmt.Errorf("unknown platform kind %q", cfg.Platform.Kind)
	}
}

// run initializes and starts all application components and returns an exit
// code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db) // Ensure DB is closed on function exit
	store := database.NewStore(db, log)

	cursors := cursor.NewFileStore(cfg.Files.Cursor, log)
	locations := registry.NewFileRegistry(cfg.Files.Registry, log)
	charts := chart.NewClient(cfg.Chart.BaseURL, cfg.HTTP.Timeout, log)
	geocoder := geocode.NewNominatim(cfg.Geocoder.BaseURL, chart.UserAgent, cfg.HTTP.Timeout, log)
	locationResolver := resolver.New(geocoder, charts, resilience.RetryPolicy{
		MaxAttempts: cfg.Resolver.MaxAttempts,
		Delay:       cfg.Resolver.RetryDelay,
	}, log)

	renderer, err := message.New(message.Templates{
		Greetings:        cfg.Poster.Greetings,
		Post:             cfg.Poster.Template,
		Added:            cfg.Messages.Added,
		AlreadyPublished: cfg.Messages.AlreadyPublished,
		Show:             cfg.Messages.Show,
		ShowFailed:       cfg.Messages.ShowFailed,
	}, nil)
	if err != nil {
		log.Error("Failed to parse message templates", "error", err)
		return 1
	}

	client, err := newPlatform(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize platform", "kind", cfg.Platform.Kind, "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Resolver: locationResolver,
		Registry: locations,
		Charts:   charts,
		Platform: client,
		Store:    store,
		Messages: renderer,
	}
	tDeps := tasks.TaskDeps{
		Logger:   log,
		Registry: locations,
		Charts:   charts,
		Platform: client,
		Store:    store,
		Messages: renderer,
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, bot.DailySchedule{
		Hour:     cfg.Poster.Hour,
		Location: cfg.Poster.Location,
	}, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	reactor := bot.NewReactor(log, client, cursors, store, handlers.RegisterAllCommands(hDeps), cfg.Reactor.PollInterval)
	app := bot.NewBot(log, client, sched, reactor, cfg.Metrics.Addr)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
