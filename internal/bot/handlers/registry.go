package handlers

import (
	"context"

	"github.com/edgard/clearskybot/internal/command"
	"github.com/edgard/clearskybot/internal/platform"
)

// CommandFunc handles one parsed mention. Returned errors are logged by the
// caller; the mention is not retried.
type CommandFunc func(ctx context.Context, mention platform.Mention, query string) error

// RegisterAllCommands returns the handler for every recognised command kind.
func RegisterAllCommands(deps HandlerDeps) map[command.Kind]CommandFunc {
	handlers := make(map[command.Kind]CommandFunc)

	handlers[command.Add] = NewAddHandler(deps)
	handlers[command.Show] = NewShowHandler(deps)

	deps.Logger.Info("Initialized command handlers", "count", len(handlers))
	return handlers
}
