package tools

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mtavish/conclave/internal/agent"
	"github.com/mtavish/conclave/internal/mailbox"
	"github.com/mtavish/conclave/internal/roster"
	"github.com/mtavish/conclave/internal/session"
)

func testClock() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

type fixture struct {
	store *session.Store
	box   *mailbox.Mailbox
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	handle := session.NewHandle(t.TempDir(), "apollo")
	store := session.NewStore(handle, session.WithClock(testClock))
	if err := store.Create(session.Session{Name: "apollo", AgentCount: 2}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	r := &roster.Roster{Agents: []roster.AgentDefinition{
		{ID: 1, Name: "builder", Role: "impl"},
		{ID: 2, Name: "reviewer", Role: "review"},
	}}
	if err := store.WriteRoster(r); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	if err := store.SeedStates(r.Agents); err != nil {
		t.Fatalf("seed states: %v", err)
	}
	return fixture{store: store, box: mailbox.New(handle, mailbox.WithClock(testClock))}
}

func (f fixture) server(t *testing.T, agentID int, agentName string) *Server {
	t.Helper()
	return NewServer(f.store, f.box, agentID, agentName, WithClock(testClock))
}

func TestSendAndCheckQueries(t *testing.T) {
	f := newFixture(t)
	sender := f.server(t, 1, "builder")
	receiver := f.server(t, 2, "reviewer")

	result := sender.SendQuery("reviewer", "the parser API changed", "high")
	if !result.OK {
		t.Fatalf("send failed: %+v", result)
	}
	if !strings.Contains(result.Message, "reviewer") {
		t.Fatalf("send confirmation should name the recipient: %q", result.Message)
	}

	result = receiver.CheckQueries()
	if !result.OK {
		t.Fatalf("check failed: %+v", result)
	}
	for _, want := range []string{"builder", "high", "the parser API changed"} {
		if !strings.Contains(result.Message, want) {
			t.Fatalf("query rendering missing %q: %q", want, result.Message)
		}
	}

	// The slot was consumed.
	result = receiver.CheckQueries()
	if !result.OK || result.Message != "No pending queries." {
		t.Fatalf("expected empty mailbox, got %+v", result)
	}
}

func TestSendQueryUnknownRecipient(t *testing.T) {
	f := newFixture(t)
	result := f.server(t, 1, "builder").SendQuery("ghost", "hello", "")
	if result.OK || result.Kind != KindRecipientNotFound {
		t.Fatalf("expected recipient_not_found, got %+v", result)
	}
}

func TestSendQueryInvalidPriority(t *testing.T) {
	f := newFixture(t)
	result := f.server(t, 1, "builder").SendQuery("reviewer", "hello", "urgent")
	if result.OK || result.Kind != KindInvalidPriority {
		t.Fatalf("expected invalid_priority, got %+v", result)
	}
	// Nothing may have been delivered.
	if msg, err := f.box.Check(2); err != nil || msg != nil {
		t.Fatalf("failed send must not deliver: msg=%v err=%v", msg, err)
	}
}

func TestUpdateStatusFromPending(t *testing.T) {
	f := newFixture(t)
	// A fresh (pending) agent reporting blocked is legal: the tool call
	// itself proves the process is running.
	result := f.server(t, 1, "builder").UpdateStatus("blocked", "waiting on reviewer")
	if !result.OK {
		t.Fatalf("update failed: %+v", result)
	}
	state, err := f.store.ReadAgentState(1)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state.Status != agent.StatusBlocked || state.Task() != "waiting on reviewer" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if !state.EverActive() {
		t.Fatalf("status update must touch the activity timestamp")
	}
}

func TestUpdateStatusVisibleInListAgents(t *testing.T) {
	f := newFixture(t)
	if result := f.server(t, 1, "builder").UpdateStatus("blocked", "stuck on schema"); !result.OK {
		t.Fatalf("update failed: %+v", result)
	}
	result := f.server(t, 2, "reviewer").ListAgents()
	if !result.OK {
		t.Fatalf("list failed: %+v", result)
	}
	for _, want := range []string{"[1] builder: blocked", "stuck on schema", "[2] reviewer: pending"} {
		if !strings.Contains(result.Message, want) {
			t.Fatalf("listing missing %q:\n%s", want, result.Message)
		}
	}
}

func TestUpdateStatusRejectsReservedStatuses(t *testing.T) {
	f := newFixture(t)
	server := f.server(t, 1, "builder")
	for _, status := range []string{"pending", "stopped", "on-fire", ""} {
		result := server.UpdateStatus(status, "")
		if result.OK || result.Kind != KindInvalidStatus {
			t.Fatalf("status %q: expected invalid_status, got %+v", status, result)
		}
	}
}

func TestMarkCompleteWritesStateAndResponse(t *testing.T) {
	f := newFixture(t)
	result := f.server(t, 1, "builder").MarkComplete("ported the lexer and its tests")
	if !result.OK {
		t.Fatalf("mark complete failed: %+v", result)
	}

	state, err := f.store.ReadAgentState(1)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state.Status != agent.StatusComplete {
		t.Fatalf("expected complete, got %s", state.Status)
	}

	record, err := f.box.ReadResponse(1)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if record == nil || record.Summary != "ported the lexer and its tests" {
		t.Fatalf("completion record missing or wrong: %+v", record)
	}
	if record.From != "builder" || record.Status != string(agent.StatusComplete) {
		t.Fatalf("completion record header: %+v", record)
	}
}

func TestMarkCompleteSeedsMissingState(t *testing.T) {
	f := newFixture(t)
	// Agent 2's record disappears (operator cleanup, crash mid-write).
	if err := os.Remove(f.store.Handle().StatePath(2)); err != nil {
		t.Fatalf("remove state: %v", err)
	}
	server := f.server(t, 2, "reviewer")

	result := server.MarkComplete("review done")
	if !result.OK {
		t.Fatalf("mark complete failed: %+v", result)
	}
	state, err := f.store.ReadAgentState(2)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state.Status != agent.StatusComplete {
		t.Fatalf("expected complete, got %s", state.Status)
	}
}

func TestMarkCompleteFromStoppedRejected(t *testing.T) {
	f := newFixture(t)
	state, err := f.store.ReadAgentState(1)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	state.Status = agent.StatusStopped
	if err := f.store.WriteAgentState(state); err != nil {
		t.Fatalf("write state: %v", err)
	}

	// mark_complete follows the same transition table as update_status:
	// a stopped agent cannot report completion.
	result := f.server(t, 1, "builder").MarkComplete("posthumous summary")
	if result.OK || result.Kind != KindInvalidTransition {
		t.Fatalf("expected invalid_transition, got %+v", result)
	}
	after, err := f.store.ReadAgentState(1)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if after.Status != agent.StatusStopped {
		t.Fatalf("rejected completion must not change state, got %s", after.Status)
	}
	if record, err := f.box.ReadResponse(1); err != nil || record != nil {
		t.Fatalf("rejected completion must not leave a record: %+v %v", record, err)
	}
}

func TestCompleteThenRunningAgain(t *testing.T) {
	f := newFixture(t)
	server := f.server(t, 1, "builder")
	if result := server.MarkComplete("first pass done"); !result.OK {
		t.Fatalf("mark complete failed: %+v", result)
	}
	// Work states stay mutually reachable: a completed agent may pick
	// up follow-up work.
	result := server.UpdateStatus("running", "follow-up fixes")
	if !result.OK {
		t.Fatalf("complete -> running should be legal: %+v", result)
	}
}
