package database

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (Store, func(query string) int) {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	count := func(query string) int {
		var n int
		if err := db.Get(&n, query); err != nil {
			t.Fatalf("count query %q: %v", query, err)
		}
		return n
	}
	return NewStore(db, nil), count
}

func TestReplyJournal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, count := newTestStore(t)

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	replied, err := store.HasReplied(ctx, 42)
	if err != nil {
		t.Fatalf("HasReplied: %v", err)
	}
	if replied {
		t.Fatal("HasReplied(42) = true before recording")
	}

	reply := &Reply{MentionID: 42, Command: "show", LocationKey: "denver1", PostID: "7"}
	if err := store.RecordReply(ctx, reply); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}
	if err := store.RecordReply(ctx, reply); err != nil {
		t.Fatalf("RecordReply (again): %v", err)
	}

	replied, err = store.HasReplied(ctx, 42)
	if err != nil {
		t.Fatalf("HasReplied: %v", err)
	}
	if !replied {
		t.Error("HasReplied(42) = false after recording")
	}
	if n := count(`SELECT COUNT(*) FROM replies`); n != 1 {
		t.Errorf("replies rows = %d, want 1", n)
	}
}

func TestRecordReplyValidation(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	if err := store.RecordReply(context.Background(), nil); err == nil {
		t.Error("RecordReply(nil) returned nil error")
	}
	if err := store.RecordReply(context.Background(), &Reply{Command: "add"}); err == nil {
		t.Error("RecordReply without mention id returned nil error")
	}
}

func TestRecordPost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, count := newTestStore(t)

	first := &Post{LocationKey: "denver1", PostID: "100"}
	if err := store.RecordPost(ctx, first); err != nil {
		t.Fatalf("RecordPost: %v", err)
	}
	if err := store.RecordPost(ctx, &Post{LocationKey: "denver1", PostID: "101"}); err != nil {
		t.Fatalf("RecordPost: %v", err)
	}
	if first.ID == 0 {
		t.Error("RecordPost did not set the row id")
	}
	if n := count(`SELECT COUNT(*) FROM posts WHERE location_key = 'denver1'`); n != 2 {
		t.Errorf("posts rows = %d, want 2", n)
	}
	if err := store.RecordPost(ctx, &Post{}); err == nil {
		t.Error("RecordPost without key returned nil error")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	for i := range 2 {
		db, err := NewDB(path)
		if err != nil {
			t.Fatalf("NewDB #%d: %v", i+1, err)
		}
		CloseDB(db)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Errorf("RunSQLMaintenance: %v", err)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"storage.db":                     "storage.db",
		"file:storage.db?_pragma=foo(1)": "storage.db",
		"file:my%20journal.db":           "my journal.db",
	}
	for in, want := range tests {
		if got := ExtractDBNameFromPath(in); got != want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
