package layout

import (
	"fmt"
	"testing"
)

func TestPackRejectsNegativeCount(t *testing.T) {
	if _, err := Pack(-1); err == nil {
		t.Fatalf("expected error for negative agent count")
	}
}

func TestPackZeroAgents(t *testing.T) {
	plan, err := Pack(0)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(plan.Tabs) != 2 {
		t.Fatalf("expected orchestrator + monitor only, got %d tabs", len(plan.Tabs))
	}
	if plan.Tabs[0].Kind != TabOrchestrator || plan.Tabs[1].Kind != TabMonitor {
		t.Fatalf("unexpected tab kinds: %+v", plan.Tabs)
	}
	if len(plan.WorkerTabs()) != 0 {
		t.Fatalf("no worker tabs expected")
	}
}

func TestPackTabCounts(t *testing.T) {
	cases := map[int]int{1: 1, 2: 1, 4: 1, 5: 2, 8: 2, 9: 3, 12: 3, 13: 4}
	for agents, workerTabs := range cases {
		plan, err := Pack(agents)
		if err != nil {
			t.Fatalf("pack(%d): %v", agents, err)
		}
		if got := len(plan.WorkerTabs()); got != workerTabs {
			t.Fatalf("pack(%d): %d worker tabs, want %d", agents, got, workerTabs)
		}
		if len(plan.Tabs) != workerTabs+2 {
			t.Fatalf("pack(%d): %d tabs total, want %d", agents, len(plan.Tabs), workerTabs+2)
		}
	}
}

func TestPackAssignsEveryAgentExactlyOnce(t *testing.T) {
	for _, agents := range []int{1, 3, 4, 5, 7, 11} {
		plan, err := Pack(agents)
		if err != nil {
			t.Fatalf("pack(%d): %v", agents, err)
		}
		ids := plan.AgentIDs()
		if len(ids) != agents {
			t.Fatalf("pack(%d): %d panes, want %d", agents, len(ids), agents)
		}
		for i, id := range ids {
			if id != i+1 {
				t.Fatalf("pack(%d): ids out of order or gapped: %v", agents, ids)
			}
		}
	}
}

func TestPackGridPositions(t *testing.T) {
	plan, err := Pack(4)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	tab := plan.WorkerTabs()[0]
	want := []struct{ row, col int }{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	for i, pane := range tab.Panes {
		if pane.Row != want[i].row || pane.Col != want[i].col {
			t.Fatalf("pane %d at (%d,%d), want (%d,%d)", i, pane.Row, pane.Col, want[i].row, want[i].col)
		}
	}
}

func TestPackTabNames(t *testing.T) {
	plan, err := Pack(5)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	tabs := plan.WorkerTabs()
	if tabs[0].Name != "Agents 1-4" {
		t.Fatalf("first worker tab named %q", tabs[0].Name)
	}
	if tabs[1].Name != "Agent 5" {
		t.Fatalf("second worker tab named %q", tabs[1].Name)
	}
}

func TestPackPaneCommands(t *testing.T) {
	plan, err := Pack(2)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if got := plan.Tabs[0].Panes[0].Command; got != "conclave-agent 0" {
		t.Fatalf("orchestrator command %q", got)
	}
	for i, pane := range plan.WorkerTabs()[0].Panes {
		want := fmt.Sprintf("conclave-agent %d", i+1)
		if pane.Command != want {
			t.Fatalf("pane command %q, want %q", pane.Command, want)
		}
	}
	last := plan.Tabs[len(plan.Tabs)-1]
	if last.Panes[0].Command != "conclave monitor" || last.Panes[0].AgentID != MonitorPaneID {
		t.Fatalf("monitor pane wrong: %+v", last.Panes[0])
	}
}
