// Package platform abstracts the social platform the bot publishes to and
// receives mentions from.
package platform

import (
	"context"
)

// PostID identifies a published post on the platform.
type PostID string

// Media is a file attached to a post.
type Media struct {
	Filename string
	Data     []byte
}

// Mention is an inbound message addressed to the bot.
type Mention struct {
	ID        int64  // Monotonically increasing across mentions.
	Text      string // Message text with the bot's handle removed.
	ChatID    int64  // Conversation the mention belongs to.
	MessageID int    // Message to thread the reply under.
	// Ignored marks an update that is not addressed to the bot. It carries
	// no command and only moves the cursor past its id.
	Ignored bool
}

// Client is the platform surface used by the bot.
type Client interface {
	// PostWithMedia publishes an unthreaded post.
	PostWithMedia(ctx context.Context, text string, media *Media) (PostID, error)
	// Reply publishes text, optionally with media, threaded under the mention.
	Reply(ctx context.Context, to Mention, text string, media *Media) (PostID, error)
	// MentionsSince returns mentions with an id greater than since, oldest first.
	// Fetching acknowledges nothing beyond since, so a mention stays available
	// until the caller asks for a later cursor.
	MentionsSince(ctx context.Context, since int64) ([]Mention, error)
}

// Runner is implemented by clients that need a long-running receive loop.
type Runner interface {
	// Start blocks until ctx is cancelled.
	Start(ctx context.Context) error
}
