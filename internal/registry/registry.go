// Package registry stores the locations whose charts are published every day.
//
// The registry is an append-only CSV file of "title,key" rows. It is meant to be
// read and edited by hand, so the file is never rewritten in another format:
// appends keep the existing bytes and add one row.
package registry

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/edgard/clearskybot/internal/fileutil"
)

// ErrAlreadyExists is returned by Append when the location is already registered.
var ErrAlreadyExists = errors.New("location already registered")

// Location is a published chart location.
type Location struct {
	Title string // Human readable name shown in posts.
	Key   string // Chart identifier used in every chart host URL.
}

// Registry is the set of published locations.
type Registry interface {
	List(ctx context.Context) ([]Location, error)
	Contains(ctx context.Context, loc Location) (bool, error)
	Append(ctx context.Context, loc Location) error
}

// FileRegistry implements Registry on top of a CSV file.
type FileRegistry struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex // serialises appends
}

// NewFileRegistry returns a registry backed by the CSV file at path.
// The file is created on the first append.
func NewFileRegistry(path string, logger *slog.Logger) *FileRegistry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileRegistry{
		path:   path,
		logger: logger.With("component", "registry", "path", path),
	}
}

// List returns every registered location in file order.
func (r *FileRegistry) List(ctx context.Context) ([]Location, error) {
	data, err := r.read()
	if err != nil {
		return nil, err
	}
	return r.parse(ctx, data)
}

// Contains reports whether loc is registered with exactly this title and key.
func (r *FileRegistry) Contains(ctx context.Context, loc Location) (bool, error) {
	locations, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range locations {
		if l == loc {
			return true, nil
		}
	}
	return false, nil
}

// Append registers loc. It returns ErrAlreadyExists, leaving the file untouched,
// if the exact entry or another entry with the same key is already present.
func (r *FileRegistry) Append(ctx context.Context, loc Location) error {
	loc = Location{Title: strings.TrimSpace(loc.Title), Key: strings.TrimSpace(loc.Key)}
	if loc.Key == "" || loc.Title == "" {
		return fmt.Errorf("location title and key are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.read()
	if err != nil {
		return err
	}
	existing, err := r.parse(ctx, data)
	if err != nil {
		return err
	}
	for _, l := range existing {
		if l.Key == loc.Key {
			if l.Title != loc.Title {
				r.logger.InfoContext(ctx, "Key already registered under another title",
					"key", loc.Key, "registered_title", l.Title, "requested_title", loc.Title)
			}
			return ErrAlreadyExists
		}
	}

	var row bytes.Buffer
	w := csv.NewWriter(&row)
	if err := w.Write([]string{loc.Title, loc.Key}); err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	out := make([]byte, 0, len(data)+row.Len()+1)
	out = append(out, data...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, row.Bytes()...)

	if err := fileutil.WriteFileAtomic(r.path, out, 0o644); err != nil {
		return fmt.Errorf("failed to append location: %w", err)
	}

	r.logger.InfoContext(ctx, "Location registered", "title", loc.Title, "key", loc.Key, "count", len(existing)+1)
	return nil
}

func (r *FileRegistry) read() ([]byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	return data, nil
}

func (r *FileRegistry) parse(ctx context.Context, data []byte) ([]Location, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var locations []Location
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse registry: %w", err)
		}
		if len(record) < 2 || strings.TrimSpace(record[1]) == "" {
			r.logger.WarnContext(ctx, "Skipping malformed registry row", "row", strings.Join(record, ","))
			continue
		}
		locations = append(locations, Location{
			Title: strings.TrimSpace(record[0]),
			Key:   strings.TrimSpace(record[1]),
		})
	}
	return locations, nil
}
