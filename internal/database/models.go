package database

import "time"

// Reply records that the bot answered a mention. Its presence marks the
// mention as handled even if the cursor was not persisted before a crash.
type Reply struct {
	MentionID   int64     `db:"mention_id"`
	Command     string    `db:"command"`
	LocationKey string    `db:"location_key"`
	PostID      string    `db:"post_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// Post records a daily chart post.
type Post struct {
	ID          int64     `db:"id"`
	LocationKey string    `db:"location_key"`
	PostID      string    `db:"post_id"`
	CreatedAt   time.Time `db:"created_at"`
}
