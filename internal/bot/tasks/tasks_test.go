package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/edgard/clearskybot/internal/bot/tasks"
	"github.com/edgard/clearskybot/internal/chart"
	"github.com/edgard/clearskybot/internal/database"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
)

func TestNextStart(t *testing.T) {
	t.Parallel()

	denver, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "after the hour posts tomorrow",
			now:  time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 2, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "before the hour posts today",
			now:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly on the hour posts now",
			now:  time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "one second past the hour posts tomorrow",
			now:  time.Date(2024, 3, 1, 17, 0, 1, 0, time.UTC),
			want: time.Date(2024, 3, 2, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "month rollover",
			now:  time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC),
			want: time.Date(2024, 2, 1, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "keeps wall clock across a DST change",
			now:  time.Date(2024, 3, 9, 20, 0, 0, 0, denver),
			want: time.Date(2024, 3, 10, 17, 0, 0, 0, denver),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tasks.NextStart(tt.now, 17); !got.Equal(tt.want) {
				t.Errorf("NextStart(%v, 17) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

type fakeCharts struct {
	failing map[string]bool
}

func (f *fakeCharts) Fetch(_ context.Context, key string) (*chart.Artifact, error) {
	if f.failing[key] {
		return nil, errors.New("status 503")
	}
	return &chart.Artifact{Filename: chart.Filename(key), Data: []byte(key)}, nil
}

func (f *fakeCharts) InfoURL(key string) string { return "https://charts.test/c/" + key + "key.html" }

type published struct {
	Text  string
	Media string
}

type fakePublisher struct {
	posts []published
}

func (f *fakePublisher) PostWithMedia(_ context.Context, text string, media *platform.Media) (platform.PostID, error) {
	f.posts = append(f.posts, published{Text: text, Media: media.Filename})
	return platform.PostID(media.Filename), nil
}

type fakeStore struct {
	database.Store
	posts       []string
	maintenance int
	err         error
}

func (f *fakeStore) RecordPost(_ context.Context, p *database.Post) error {
	f.posts = append(f.posts, p.LocationKey)
	return nil
}

func (f *fakeStore) RunSQLMaintenance(context.Context) error {
	f.maintenance++
	return f.err
}

func newDeps(t *testing.T, csv string) (tasks.TaskDeps, *fakeCharts, *fakePublisher, *fakeStore) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "locations.csv")
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	renderer, err := message.New(message.Templates{
		Greetings:        []string{"Clear skies!"},
		Post:             "{{.Greeting}} {{.Title}} {{.InfoURL}}",
		Added:            "added",
		AlreadyPublished: "exists",
		Show:             "show",
		ShowFailed:       "failed",
	}, nil)
	if err != nil {
		t.Fatalf("message.New: %v", err)
	}

	charts := &fakeCharts{failing: map[string]bool{}}
	pub := &fakePublisher{}
	store := &fakeStore{}
	return tasks.TaskDeps{
		Logger:   log,
		Registry: registry.NewFileRegistry(path, log),
		Charts:   charts,
		Platform: pub,
		Store:    store,
		Messages: renderer,
	}, charts, pub, store
}

func TestRunCycleSkipsFailures(t *testing.T) {
	t.Parallel()

	deps, charts, pub, store := newDeps(t, "Alpha,alpha1\nBravo,bravo1\nCharlie,charlie1\n")
	charts.failing["bravo1"] = true

	res, err := tasks.NewDailyPoster(deps).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if diff := cmp.Diff(tasks.CycleResult{Posted: 2, Failed: 1}, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	want := []published{
		{Text: "Clear skies! Alpha https://charts.test/c/alpha1key.html", Media: "alpha1csk.gif"},
		{Text: "Clear skies! Charlie https://charts.test/c/charlie1key.html", Media: "charlie1csk.gif"},
	}
	if diff := cmp.Diff(want, pub.posts); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"alpha1", "charlie1"}, store.posts); diff != "" {
		t.Errorf("journaled posts mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleEmptyRegistry(t *testing.T) {
	t.Parallel()

	deps, _, pub, _ := newDeps(t, "")
	res, err := tasks.NewDailyPoster(deps).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Posted != 0 || len(pub.posts) != 0 {
		t.Errorf("posted %d (%d sent) from empty registry", res.Posted, len(pub.posts))
	}
}

func TestRunCycleSeesAppendsBetweenCycles(t *testing.T) {
	t.Parallel()

	deps, _, pub, _ := newDeps(t, "Alpha,alpha1\n")
	poster := tasks.NewDailyPoster(deps)

	if _, err := poster.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if err := deps.Registry.Append(context.Background(), registry.Location{Title: "Bravo", Key: "bravo1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	res, err := poster.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if res.Posted != 2 || len(pub.posts) != 3 {
		t.Errorf("second cycle posted %d, total %d; want 2 and 3", res.Posted, len(pub.posts))
	}
}

func TestRunCycleStopsOnCancel(t *testing.T) {
	t.Parallel()

	deps, _, pub, _ := newDeps(t, "Alpha,alpha1\nBravo,bravo1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tasks.NewDailyPoster(deps).RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("RunCycle error = %v, want context.Canceled", err)
	}
	if len(pub.posts) != 0 {
		t.Errorf("posted %d after cancellation", len(pub.posts))
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	deps, _, _, store := newDeps(t, "")
	all := tasks.RegisterAllTasks(deps)
	if all[tasks.DailyPostTaskName] == nil {
		t.Fatal("daily post task not registered")
	}
	maintenance := all[tasks.SQLMaintenanceTaskName]
	if maintenance == nil {
		t.Fatal("sql maintenance task not registered")
	}

	if err := maintenance(context.Background()); err != nil {
		t.Errorf("maintenance: %v", err)
	}
	store.err = errors.New("disk full")
	if err := maintenance(context.Background()); err == nil {
		t.Error("maintenance error not propagated")
	}
	if store.maintenance != 2 {
		t.Errorf("RunSQLMaintenance called %d times, want 2", store.maintenance)
	}

	deps.Store = nil
	if _, ok := tasks.RegisterAllTasks(deps)[tasks.SQLMaintenanceTaskName]; ok {
		t.Error("sql maintenance registered without a store")
	}
}
