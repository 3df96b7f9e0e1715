package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// LogClient is a dry-run Client: posts and replies are written to the log and
// no mentions are ever received.
type LogClient struct {
	logger *slog.Logger
	seq    atomic.Int64
}

// NewLogClient returns a LogClient writing to logger.
func NewLogClient(logger *slog.Logger) *LogClient {
	return &LogClient{logger: logger.With("component", "platform_log")}
}

// PostWithMedia logs the post.
func (c *LogClient) PostWithMedia(ctx context.Context, text string, media *Media) (PostID, error) {
	id := PostID(fmt.Sprintf("log-%d", c.seq.Add(1)))
	c.logger.InfoContext(ctx, "Post", "post_id", id, "text", text, "media", mediaName(media))
	return id, nil
}

// Reply logs the reply.
func (c *LogClient) Reply(ctx context.Context, to Mention, text string, media *Media) (PostID, error) {
	id := PostID(fmt.Sprintf("log-%d", c.seq.Add(1)))
	c.logger.InfoContext(ctx, "Reply", "post_id", id, "in_reply_to", to.ID, "text", text, "media", mediaName(media))
	return id, nil
}

// MentionsSince never returns mentions.
func (c *LogClient) MentionsSince(context.Context, int64) ([]Mention, error) {
	return nil, nil
}

// Start blocks until ctx is done.
func (c *LogClient) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func mediaName(m *Media) string {
	if m == nil {
		return ""
	}
	return m.Filename
}
