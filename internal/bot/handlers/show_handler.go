package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/clearskybot/internal/command"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/metrics"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/resolver"
)

// NewShowHandler resolves the query and replies with its chart. When the chart
// cannot be downloaded it replies with a short apology instead.
func NewShowHandler(deps HandlerDeps) CommandFunc {
	log := deps.Logger.With("handler", command.Show.String())

	return func(ctx context.Context, mention platform.Mention, query string) error {
		loc, err := deps.Resolver.Resolve(ctx, query)
		if errors.Is(err, resolver.ErrEmptyQuery) {
			log.WarnContext(ctx, "Ignoring show without a location", "mention_id", mention.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", query, err)
		}

		data := messageData(deps, loc)

		artifact, err := deps.Charts.Fetch(ctx, loc.Key)
		if err != nil {
			metrics.ChartFetchFailures.Inc()
			log.WarnContext(ctx, "Failed to fetch chart", "key", loc.Key, "error", err)

			text, err := deps.Messages.Render(message.ShowFailed, data)
			if err != nil {
				return fmt.Errorf("failed to render %s reply: %w", message.ShowFailed, err)
			}
			reply(ctx, deps, log, mention, command.Show.String(), loc, text, nil)
			return nil
		}

		text, err := deps.Messages.Render(message.Show, data)
		if err != nil {
			return fmt.Errorf("failed to render %s reply: %w", message.Show, err)
		}
		media := &platform.Media{Filename: artifact.Filename, Data: artifact.Data}
		reply(ctx, deps, log, mention, command.Show.String(), loc, text, media)
		return nil
	}
}
