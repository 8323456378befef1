package agent

import (
	"testing"
	"time"
)

func TestParseStatusClosedSet(t *testing.T) {
	for _, raw := range []string{"pending", "running", "idle", "blocked", "complete", "stopped", "  RUNNING  "} {
		if _, err := ParseStatus(raw); err != nil {
			t.Fatalf("ParseStatus(%q) returned error: %v", raw, err)
		}
	}
	for _, raw := range []string{"", "done", "error", "paused"} {
		if _, err := ParseStatus(raw); err == nil {
			t.Fatalf("ParseStatus(%q) should fail", raw)
		}
	}
}

func TestTransitionTableIsTotal(t *testing.T) {
	all := []Status{StatusPending, StatusRunning, StatusIdle, StatusBlocked, StatusComplete, StatusStopped}
	for _, from := range all {
		if _, ok := transitions[from]; !ok {
			t.Fatalf("transition table missing row for %s", from)
		}
		for _, to := range all {
			// Every pair must produce a definite answer without panicking.
			_ = CanTransition(from, to)
		}
	}
}

func TestTransitionRules(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusStopped, true},
		{StatusPending, StatusBlocked, false},
		{StatusRunning, StatusIdle, true},
		{StatusRunning, StatusRunning, true},
		{StatusIdle, StatusBlocked, true},
		{StatusBlocked, StatusComplete, true},
		{StatusComplete, StatusRunning, true},
		{StatusRunning, StatusStopped, true},
		{StatusStopped, StatusRunning, true},
		{StatusStopped, StatusStopped, false},
		{StatusStopped, StatusComplete, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAgentDrivenStatuses(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusRunning:  true,
		StatusIdle:     true,
		StatusBlocked:  true,
		StatusComplete: true,
		StatusPending:  false,
		StatusStopped:  false,
	} {
		if got := status.AgentDriven(); got != want {
			t.Fatalf("%s.AgentDriven() = %v, want %v", status, got, want)
		}
	}
}

func TestStateTouchAndTask(t *testing.T) {
	s := NewState(3, "Networking")
	if s.Status != StatusPending {
		t.Fatalf("new state should be pending, got %s", s.Status)
	}
	if s.EverActive() {
		t.Fatal("new state should never have been active")
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Touch(now)
	if !s.EverActive() {
		t.Fatal("expected EverActive after Touch")
	}
	if *s.LastActive != "2025-06-01T12:00:00Z" {
		t.Fatalf("unexpected lastActive: %s", *s.LastActive)
	}

	s.SetTask("configuring VPC")
	if s.Task() != "configuring VPC" {
		t.Fatalf("unexpected task: %q", s.Task())
	}
	s.SetTask("")
	if s.CurrentTask != nil {
		t.Fatal("empty task should clear the field")
	}
}

func TestCloneDetachesPointers(t *testing.T) {
	s := NewState(1, "Infra")
	s.Touch(time.Now())
	s.SetTask("initial")

	c := s.Clone()
	c.SetTask("changed")
	c.Touch(time.Now().Add(time.Hour))

	if s.Task() != "initial" {
		t.Fatalf("clone mutation leaked into source: %q", s.Task())
	}
}
