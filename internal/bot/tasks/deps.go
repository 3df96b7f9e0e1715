// Package tasks implements the bot's scheduled tasks.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/clearskybot/internal/chart"
	"github.com/edgard/clearskybot/internal/database"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
)

// ChartSource downloads chart images.
type ChartSource interface {
	Fetch(ctx context.Context, key string) (*chart.Artifact, error)
	InfoURL(key string) string
}

// Publisher sends unthreaded posts.
type Publisher interface {
	PostWithMedia(ctx context.Context, text string, media *platform.Media) (platform.PostID, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Registry registry.Registry
	Charts   ChartSource
	Platform Publisher
	Store    database.Store
	Messages *message.Renderer
}
