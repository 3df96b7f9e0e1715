package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/clearskybot/internal/bot/handlers"
	"github.com/edgard/clearskybot/internal/command"
	"github.com/edgard/clearskybot/internal/cursor"
	"github.com/edgard/clearskybot/internal/metrics"
	"github.com/edgard/clearskybot/internal/platform"
)

// DefaultPollInterval is the pause between mention polls.
const DefaultPollInterval = 10 * time.Second

// MentionSource yields mentions newer than a cursor.
type MentionSource interface {
	MentionsSince(ctx context.Context, since int64) ([]platform.Mention, error)
}

// ReplyJournal reports mentions already answered.
type ReplyJournal interface {
	HasReplied(ctx context.Context, mentionID int64) (bool, error)
}

// Reactor polls for mentions and dispatches them to command handlers.
// Mentions are handled one at a time, in id order.
type Reactor struct {
	logger   *slog.Logger
	source   MentionSource
	cursors  cursor.Store
	journal  ReplyJournal
	commands map[command.Kind]handlers.CommandFunc
	interval time.Duration

	cursor    int64
	persisted int64
}

// NewReactor creates a Reactor. journal may be nil.
func NewReactor(logger *slog.Logger, source MentionSource, cursors cursor.Store, journal ReplyJournal, commands map[command.Kind]handlers.CommandFunc, interval time.Duration) *Reactor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Reactor{
		logger:   logger.With("component", "reactor"),
		source:   source,
		cursors:  cursors,
		journal:  journal,
		commands: commands,
		interval: interval,
	}
}

// Cursor returns the id of the last mention taken for processing.
func (r *Reactor) Cursor() int64 {
	return r.cursor
}

// Load reads the persisted cursor.
func (r *Reactor) Load(ctx context.Context) {
	r.cursor = r.cursors.Load(ctx)
	r.persisted = r.cursor
	metrics.Cursor.Set(float64(r.cursor))
	r.logger.InfoContext(ctx, "Loaded mention cursor", "cursor", r.cursor)
}

// Run loads the cursor and processes batches until ctx is cancelled, saving
// the cursor once more on the way out.
func (r *Reactor) Run(ctx context.Context) error {
	r.Load(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.ProcessBatch(ctx)

		select {
		case <-ctx.Done():
			r.logger.Info("Shutdown signal received, saving mention cursor", "cursor", r.cursor)
			r.persist(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch polls once, handles every returned mention and persists the
// cursor if it moved. Poll errors are logged and leave the cursor unchanged.
//
// Polling with a cursor lets the source forget everything at or below it, so
// a cursor that failed to save is saved again first and the poll is skipped
// while that keeps failing.
func (r *Reactor) ProcessBatch(ctx context.Context) {
	if !r.persist(ctx) {
		r.logger.WarnContext(ctx, "Skipping mention poll until the cursor is saved", "cursor", r.cursor, "saved", r.persisted)
		return
	}

	mentions, err := r.source.MentionsSince(ctx, r.cursor)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.WarnContext(ctx, "Failed to poll mentions", "cursor", r.cursor, "error", err)
		}
		return
	}

	for _, m := range mentions {
		if ctx.Err() != nil {
			break
		}
		if m.ID <= r.cursor {
			continue
		}
		if m.Ignored {
			r.cursor = m.ID
			continue
		}
		// Advance before dispatch: a mention that fails is not retried.
		r.cursor = m.ID
		r.dispatch(ctx, m)
	}

	r.persist(ctx)
}

func (r *Reactor) dispatch(ctx context.Context, m platform.Mention) {
	log := r.logger.With("mention_id", m.ID)

	if r.journal != nil {
		replied, err := r.journal.HasReplied(ctx, m.ID)
		if err != nil {
			log.WarnContext(ctx, "Reply journal unavailable, handling mention anyway", "error", err)
		} else if replied {
			log.InfoContext(ctx, "Mention already answered, skipping")
			return
		}
	}

	cmd := command.Parse(m.Text)
	metrics.Mentions.WithLabelValues(cmd.Kind.String()).Inc()

	handler, ok := r.commands[cmd.Kind]
	if !ok {
		log.DebugContext(ctx, "Ignoring mention without a command")
		return
	}

	log.InfoContext(ctx, "Dispatching mention", "command", cmd.Kind.String(), "query", cmd.Query)
	if err := handler(ctx, m, cmd.Query); err != nil {
		log.ErrorContext(ctx, "Command failed", "command", cmd.Kind.String(), "error", err)
	}
}

// persist saves the cursor if it moved and reports whether the saved value
// is current.
func (r *Reactor) persist(ctx context.Context) bool {
	if r.cursor == r.persisted {
		return true
	}
	if err := r.cursors.Save(ctx, r.cursor); err != nil {
		r.logger.ErrorContext(ctx, "Failed to save mention cursor", "cursor", r.cursor, "error", err)
		return false
	}
	r.persisted = r.cursor
	metrics.Cursor.Set(float64(r.cursor))
	r.logger.DebugContext(ctx, "Saved mention cursor", "cursor", r.cursor)
	return true
}
