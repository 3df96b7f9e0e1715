package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/edgard/clearskybot/internal/bot/handlers"
	"github.com/edgard/clearskybot/internal/chart"
	"github.com/edgard/clearskybot/internal/command"
	"github.com/edgard/clearskybot/internal/config"
	"github.com/edgard/clearskybot/internal/database"
	"github.com/edgard/clearskybot/internal/message"
	"github.com/edgard/clearskybot/internal/platform"
	"github.com/edgard/clearskybot/internal/registry"
	"github.com/edgard/clearskybot/internal/resolver"
)

type fakeResolver struct {
	loc     registry.Location
	err     error
	queries []string
}

func (f *fakeResolver) Resolve(_ context.Context, query string) (registry.Location, error) {
	f.queries = append(f.queries, query)
	if strings.TrimSpace(query) == "" {
		return registry.Location{}, resolver.ErrEmptyQuery
	}
	return f.loc, f.err
}

type fakeCharts struct {
	err error
}

func (f *fakeCharts) Fetch(_ context.Context, key string) (*chart.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &chart.Artifact{Filename: chart.Filename(key), Data: []byte("GIF89a")}, nil
}

func (f *fakeCharts) InfoURL(key string) string {
	return "https://charts.test/c/" + key + "key.html"
}

type sentReply struct {
	To    platform.Mention
	Text  string
	Media *platform.Media
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, to platform.Mention, text string, media *platform.Media) (platform.PostID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.replies = append(f.replies, sentReply{To: to, Text: text, Media: media})
	return "reply-1", nil
}

type fakeStore struct {
	database.Store
	replies []database.Reply
}

func (f *fakeStore) RecordReply(_ context.Context, r *database.Reply) error {
	f.replies = append(f.replies, *r)
	return nil
}

type fixture struct {
	deps     handlers.HandlerDeps
	resolver *fakeResolver
	charts   *fakeCharts
	replier  *fakeReplier
	store    *fakeStore
	registry *registry.FileRegistry
}

func newFixture(t *testing.T, loc registry.Location) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer, err := message.New(message.Templates{
		Greetings:        []string{"Hello"},
		Post:             config.DefaultPostTemplate,
		Added:            config.DefaultMessages.Added,
		AlreadyPublished: config.DefaultMessages.AlreadyPublished,
		Show:             config.DefaultMessages.Show,
		ShowFailed:       config.DefaultMessages.ShowFailed,
	}, nil)
	if err != nil {
		t.Fatalf("message.New: %v", err)
	}

	f := &fixture{
		resolver: &fakeResolver{loc: loc},
		charts:   &fakeCharts{},
		replier:  &fakeReplier{},
		store:    &fakeStore{},
		registry: registry.NewFileRegistry(filepath.Join(t.TempDir(), "locations.csv"), log),
	}
	f.deps = handlers.HandlerDeps{
		Logger:   log,
		Resolver: f.resolver,
		Registry: f.registry,
		Charts:   f.charts,
		Platform: f.replier,
		Store:    f.store,
		Messages: renderer,
	}
	return f
}

var denver = registry.Location{Title: "Denver Mountain Park", Key: "denver1"}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	cmds := handlers.RegisterAllCommands(newFixture(t, denver).deps)
	for _, kind := range []command.Kind{command.Add, command.Show} {
		if cmds[kind] == nil {
			t.Errorf("no handler registered for %v", kind)
		}
	}
	if _, ok := cmds[command.Unrecognized]; ok {
		t.Error("handler registered for unrecognized commands")
	}
}

func TestAddHandler(t *testing.T) {
	t.Parallel()

	f := newFixture(t, denver)
	add := handlers.NewAddHandler(f.deps)
	mention := platform.Mention{ID: 10, ChatID: 1, MessageID: 5}

	if err := add(context.Background(), mention, "denver"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := add(context.Background(), platform.Mention{ID: 11, ChatID: 1, MessageID: 6}, "denver"); err != nil {
		t.Fatalf("second add: %v", err)
	}

	locs, err := f.registry.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]registry.Location{denver}, locs); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}

	want := []string{
		"Denver Mountain Park has been added to the list!",
		"Denver Mountain Park was the closest found location with Clear Sky Charts available, and it is already being published.",
	}
	var got []string
	for _, r := range f.replier.replies {
		got = append(got, r.Text)
		if r.Media != nil {
			t.Errorf("add reply carried media %q", r.Media.Filename)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reply texts mismatch (-want +got):\n%s", diff)
	}
	if got := f.replier.replies[0].To.MessageID; got != 5 {
		t.Errorf("reply threaded under message %d, want 5", got)
	}
	if len(f.store.replies) != 2 || f.store.replies[0].Command != "add" || f.store.replies[0].LocationKey != "denver1" {
		t.Errorf("journal = %+v", f.store.replies)
	}
}

func TestShowHandler(t *testing.T) {
	t.Parallel()

	f := newFixture(t, denver)
	show := handlers.NewShowHandler(f.deps)
	mention := platform.Mention{ID: 42, ChatID: 1, MessageID: 9}

	if err := show(context.Background(), mention, "me denver"); err != nil {
		t.Fatalf("show: %v", err)
	}

	if len(f.replier.replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(f.replier.replies))
	}
	r := f.replier.replies[0]
	if r.Media == nil || r.Media.Filename != "denver1csk.gif" {
		t.Fatalf("reply media = %+v, want denver1csk.gif", r.Media)
	}
	wantText := "Here is the Clear Sky Chart for Denver Mountain Park.\n\nHow to read this chart: https://charts.test/c/denver1key.html"
	if r.Text != wantText {
		t.Errorf("reply text = %q, want %q", r.Text, wantText)
	}
	if diff := cmp.Diff([]string{"me denver"}, f.resolver.queries); diff != "" {
		t.Errorf("resolver queries mismatch (-want +got):\n%s", diff)
	}
	if len(f.store.replies) != 1 || f.store.replies[0].MentionID != 42 || f.store.replies[0].PostID != "reply-1" {
		t.Errorf("journal = %+v", f.store.replies)
	}
}

func TestShowHandlerFetchFailureApologises(t *testing.T) {
	t.Parallel()

	f := newFixture(t, denver)
	f.charts.err = errors.New("chart host down")

	if err := handlers.NewShowHandler(f.deps)(context.Background(), platform.Mention{ID: 3}, "denver"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if len(f.replier.replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(f.replier.replies))
	}
	r := f.replier.replies[0]
	if r.Media != nil {
		t.Error("apology reply carried media")
	}
	if r.Text != "Sorry, I couldn't fetch the Clear Sky Chart for Denver Mountain Park right now." {
		t.Errorf("reply text = %q", r.Text)
	}
}

func TestHandlersDropEmptyQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, denver)
	for name, h := range map[string]handlers.CommandFunc{
		"add":  handlers.NewAddHandler(f.deps),
		"show": handlers.NewShowHandler(f.deps),
	} {
		if err := h(context.Background(), platform.Mention{ID: 1}, ""); err != nil {
			t.Errorf("%s with empty query returned %v, want nil", name, err)
		}
	}
	if len(f.replier.replies) != 0 {
		t.Errorf("got %d replies for empty queries, want 0", len(f.replier.replies))
	}
}

func TestHandlersResolverFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, denver)
	f.resolver.err = context.Canceled

	err := handlers.NewAddHandler(f.deps)(context.Background(), platform.Mention{ID: 1}, "denver")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("add error = %v, want context.Canceled", err)
	}
	if locs, _ := f.registry.List(context.Background()); len(locs) != 0 {
		t.Errorf("registry has %d entries after failed resolve", len(locs))
	}
}

func TestReplyFailureIsNotJournaled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, denver)
	f.replier.err = errors.New("rate limited")

	if err := handlers.NewShowHandler(f.deps)(context.Background(), platform.Mention{ID: 8}, "denver"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if len(f.store.replies) != 0 {
		t.Errorf("journal = %+v, want empty", f.store.replies)
	}
}
