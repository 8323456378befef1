package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mtavish/conclave/internal/agent"
	"github.com/mtavish/conclave/internal/roster"
	"github.com/mtavish/conclave/internal/session"
)

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	handle := session.NewHandle(t.TempDir(), "apollo")
	store := session.NewStore(handle, session.WithClock(func() time.Time {
		return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	}))
	meta := session.Session{
		Name:       "apollo",
		RunID:      "run-1",
		Config:     "default",
		RepoPath:   t.TempDir(),
		AgentCount: 2,
		Status:     session.StatusInitialized,
	}
	if err := store.Create(meta); err != nil {
		t.Fatalf("create session: %v", err)
	}
	r := &roster.Roster{Agents: []roster.AgentDefinition{
		{ID: 1, Name: "builder", Role: "Implementation"},
		{ID: 2, Name: "reviewer", Role: "Code review"},
	}}
	if err := store.WriteRoster(r); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	if err := store.SeedStates(r.Agents); err != nil {
		t.Fatalf("seed states: %v", err)
	}
	return store
}

func TestNewAppReadsSessionMetadata(t *testing.T) {
	store := newTestStore(t)
	app, err := NewApp(store)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if app.meta.Name != "apollo" {
		t.Fatalf("expected session name apollo, got %q", app.meta.Name)
	}
	if app.interval <= 0 {
		t.Fatalf("expected a positive refresh interval")
	}
}

func TestSnapshotPopulatesBoard(t *testing.T) {
	store := newTestStore(t)
	state, err := store.ReadAgentState(1)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	state.Status = agent.StatusRunning
	state.SetTask("wiring the parser")
	if err := store.WriteAgentState(state); err != nil {
		t.Fatalf("write state: %v", err)
	}

	app, err := NewApp(store)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	model, _ := app.Update(app.buildSnapshot())
	app = model.(*App)

	view := app.View()
	for _, want := range []string{"apollo", "builder", "reviewer", "wiring the parser", "Implementation"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSnapshotErrorBecomesBanner(t *testing.T) {
	store := newTestStore(t)
	app, err := NewApp(store)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	model, _ := app.Update(snapshotMsg{err: errFake})
	app = model.(*App)
	if !strings.Contains(app.View(), errFake.Error()) {
		t.Fatalf("expected error banner in view")
	}

	// A later clean snapshot clears the banner.
	model, _ = app.Update(app.buildSnapshot())
	app = model.(*App)
	if strings.Contains(app.View(), errFake.Error()) {
		t.Fatalf("expected error banner to clear after a clean snapshot")
	}
}

func TestQuitKeys(t *testing.T) {
	store := newTestStore(t)
	app, err := NewApp(store)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	for _, key := range []string{"q", "ctrl+c"} {
		_, cmd := app.Update(keyMsg(key))
		if cmd == nil {
			t.Fatalf("key %q should produce a quit command", key)
		}
		if msg := cmd(); msg != tea.Quit() {
			t.Fatalf("key %q should quit, got %#v", key, msg)
		}
	}
}

var errFake = fakeError("state listing failed")

type fakeError string

func (e fakeError) Error() string { return string(e) }

func keyMsg(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}
