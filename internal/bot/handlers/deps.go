// Package handlers implements the bot's mention commands.
package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/clearskybot/internal/chart"
	"github.com/edgard/clearskybot/internal/database"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
)

// LocationResolver turns a free-text place into a chart location.
type LocationResolver interface {
	Resolve(ctx context.Context, query string) (registry.Location, error)
}

// ChartSource downloads chart images.
type ChartSource interface {
	Fetch(ctx context.Context, key string) (*chart.Artifact, error)
	InfoURL(key string) string
}

// Replier answers mentions on the platform.
type Replier interface {
	Reply(ctx context.Context, to platform.Mention, text string, media *platform.Media) (platform.PostID, error)
}

// HandlerDeps provides dependencies for command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Resolver LocationResolver
	Registry registry.Registry
	Charts   ChartSource
	Platform Replier
	Store    database.Store
	Messages *message.Renderer
}
