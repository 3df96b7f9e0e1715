package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/clearskybot/internal/database"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/metrics"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
)

func messageData(deps HandlerDeps, loc registry.Location) message.Data {
	return message.Data{
		Title:   loc.Title,
		Key:     loc.Key,
		InfoURL: deps.Charts.InfoURL(loc.Key),
	}
}

// reply sends the answer and journals it. A failed send is logged and dropped.
func reply(ctx context.Context, deps HandlerDeps, log *slog.Logger, mention platform.Mention, cmd string, loc registry.Location, text string, media *platform.Media) {
	postID, err := deps.Platform.Reply(ctx, mention, text, media)
	if err != nil {
		metrics.Posts.WithLabelValues("reply", "error").Inc()
		log.ErrorContext(ctx, "Failed to send reply", "mention_id", mention.ID, "location_key", loc.Key, "error", err)
		return
	}
	metrics.Posts.WithLabelValues("reply", "ok").Inc()
	log.InfoContext(ctx, "Replied to mention", "mention_id", mention.ID, "location_key", loc.Key, "post_id", postID)

	if deps.Store == nil {
		return
	}
	if err := deps.Store.RecordReply(ctx, &database.Reply{
		MentionID:   mention.ID,
		Command:     cmd,
		LocationKey: loc.Key,
		PostID:      string(postID),
	}); err != nil {
		log.WarnContext(ctx, "Failed to journal reply", "mention_id", mention.ID, "error", err)
	}
}
