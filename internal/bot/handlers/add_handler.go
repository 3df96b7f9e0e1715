package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/clearskybot/internal/command"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
	"github.com/edgard/clearskybot/internal/resolver"
)

// NewAddHandler resolves the query, appends it to the registry and confirms
// whether it was added or already published.
func NewAddHandler(deps HandlerDeps) CommandFunc {
	log := deps.Logger.With("handler", command.Add.String())

	return func(ctx context.Context, mention platform.Mention, query string) error {
		loc, err := deps.Resolver.Resolve(ctx, query)
		if errors.Is(err, resolver.ErrEmptyQuery) {
			log.WarnContext(ctx, "Ignoring add without a location", "mention_id", mention.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", query, err)
		}

		tmpl := message.Added
		switch err := deps.Registry.Append(ctx, loc); {
		case errors.Is(err, registry.ErrAlreadyExists):
			tmpl = message.AlreadyPublished
			log.InfoContext(ctx, "Location already published", "title", loc.Title, "key", loc.Key)
		case err != nil:
			return fmt.Errorf("failed to add %s: %w", loc.Key, err)
		default:
			log.InfoContext(ctx, "Location added", "title", loc.Title, "key", loc.Key)
		}

		text, err := deps.Messages.Render(tmpl, messageData(deps, loc))
		if err != nil {
			return fmt.Errorf("failed to render %s reply: %w", tmpl, err)
		}

		reply(ctx, deps, log, mention, command.Add.String(), loc, text, nil)
		return nil
	}
}
