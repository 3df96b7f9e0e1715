// Package cursor persists the id of the last platform mention the bot has handled.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/edgard/clearskybot/internal/fileutil"
)

// Store loads and saves the mention cursor.
type Store interface {
	// Load returns the persisted cursor, or 0 when none can be read.
	Load(ctx context.Context) int64
	// Save durably replaces the persisted cursor.
	Save(ctx context.Context, value int64) error
}

// FileStore keeps the cursor as a single decimal integer in a plain text file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore returns a Store backed by the file at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStore{
		path:   path,
		logger: logger.With("component", "cursor_store", "path", path),
	}
}

// Load reads the cursor. A missing, unreadable or corrupt file yields 0.
func (s *FileStore) Load(ctx context.Context) int64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.WarnContext(ctx, "Cursor file not found, starting with no history")
		} else {
			s.logger.WarnContext(ctx, "Failed to read cursor file, starting with no history", "error", err)
		}
		return 0
	}

	raw := strings.TrimSpace(string(data))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		s.logger.WarnContext(ctx, "Cursor file is corrupt, starting with no history", "content", raw)
		return 0
	}

	s.logger.DebugContext(ctx, "Loaded cursor", "cursor", value)
	return value
}

// Save atomically replaces the cursor file with value.
func (s *FileStore) Save(ctx context.Context, value int64) error {
	if value < 0 {
		return fmt.Errorf("cursor must not be negative: %d", value)
	}
	if err := fileutil.WriteFileAtomic(s.path, []byte(strconv.FormatInt(value, 10)+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	s.logger.DebugContext(ctx, "Saved cursor", "cursor", value)
	return nil
}
