package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/clearskybot/internal/database"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/metrics"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
)

// NextStart returns the first daily post time: today at hour:00 in now's
// location, or tomorrow if now is already past it.
func NextStart(now time.Time, hour int) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if now.After(target) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// CycleResult summarises one posting cycle.
type CycleResult struct {
	Posted int
	Failed int
}

// DailyPoster posts the chart of every registered location.
type DailyPoster struct {
	deps TaskDeps
	log  *slog.Logger
}

// NewDailyPoster creates a DailyPoster.
func NewDailyPoster(deps TaskDeps) *DailyPoster {
	return &DailyPoster{
		deps: deps,
		log:  deps.Logger.With("task", DailyPostTaskName),
	}
}

// RunCycle posts every location in a fresh registry snapshot, in file order.
// A location that fails is logged and skipped.
func (p *DailyPoster) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	locs, err := p.deps.Registry.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read registry: %w", err)
	}
	if len(locs) == 0 {
		p.log.InfoContext(ctx, "Registry is empty, nothing to post")
		return res, nil
	}

	for _, loc := range locs {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("posting cycle interrupted: %w", err)
		}
		if err := p.post(ctx, loc); err != nil {
			res.Failed++
			metrics.Posts.WithLabelValues("daily", "error").Inc()
			p.log.WarnContext(ctx, "Skipping location", "title", loc.Title, "key", loc.Key, "error", err)
			continue
		}
		res.Posted++
		metrics.Posts.WithLabelValues("daily", "ok").Inc()
	}
	return res, nil
}

func (p *DailyPoster) post(ctx context.Context, loc registry.Location) error {
	text, err := p.deps.Messages.Render(message.Post, message.Data{
		Title:   loc.Title,
		Key:     loc.Key,
		InfoURL: p.deps.Charts.InfoURL(loc.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to render post: %w", err)
	}

	artifact, err := p.deps.Charts.Fetch(ctx, loc.Key)
	if err != nil {
		metrics.ChartFetchFailures.Inc()
		return err
	}

	postID, err := p.deps.Platform.PostWithMedia(ctx, text, &platform.Media{Filename: artifact.Filename, Data: artifact.Data})
	if err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}
	p.log.InfoContext(ctx, "Posted chart", "title", loc.Title, "key", loc.Key, "post_id", postID)

	if p.deps.Store != nil {
		if err := p.deps.Store.RecordPost(ctx, &database.Post{LocationKey: loc.Key, PostID: string(postID)}); err != nil {
			p.log.WarnContext(ctx, "Failed to journal post", "key", loc.Key, "error", err)
		}
	}
	return nil
}

// newDailyPostTask creates the scheduled task function for the daily post.
func newDailyPostTask(deps TaskDeps) ScheduledTaskFunc {
	poster := NewDailyPoster(deps)

	return func(ctx context.Context) error {
		poster.log.InfoContext(ctx, "Starting daily posting cycle...")
		startTime := time.Now()

		res, err := poster.RunCycle(ctx)
		duration := time.Since(startTime)
		if err != nil {
			poster.log.ErrorContext(ctx, "Daily posting cycle failed", "error", err, "posted", res.Posted, "failed", res.Failed, "duration", duration)
			return fmt.Errorf("daily post failed: %w", err)
		}

		poster.log.InfoContext(ctx, "Daily posting cycle completed", "posted", res.Posted, "failed", res.Failed, "duration", duration)
		return nil
	}
}
