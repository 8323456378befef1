// Pure layout planning: agent count in, tab/pane/command plan out.
// The plan is computed once at session creation, persisted with the
// session, and consumed by the terminal-multiplexer integration. It is
// never mutated afterwards.

package layout

import (
	"fmt"
)

// MaxAgentsPerTab bounds each worker tab to an up-to-2x2 grid.
const MaxAgentsPerTab = 4

// MonitorPaneID marks the monitor pane, which is bound to the monitor
// component rather than an agent.
const MonitorPaneID = -1

// OrchestratorID is the reserved agent id for the human/orchestrator role.
const OrchestratorID = 0

// Startup commands per pane. The shim takes the agent id as its sole
// argument; session directory and project root travel as environment.
const (
	shimCommand    = "conclave-agent"
	monitorCommand = "conclave monitor"
)

// TabKind distinguishes the three tab roles in a plan.
type TabKind string

const (
	TabOrchestrator TabKind = "orchestrator"
	TabWorkers      TabKind = "workers"
	TabMonitor      TabKind = "monitor"
)

// Pane binds one terminal pane to an agent id and a startup command.
// Row and Col locate the pane in its tab's grid: the first two agents
// fill the top row, the third and fourth the bottom row.
type Pane struct {
	AgentID int    `json:"agentId"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Command string `json:"command"`
}

// Tab is one ordered group of panes.
type Tab struct {
	Name  string  `json:"name"`
	Kind  TabKind `json:"kind"`
	Panes []Pane  `json:"panes"`
}

// Plan is the deterministic tab/pane/agent assignment for one session.
type Plan struct {
	AgentCount int   `json:"agentCount"`
	Tabs       []Tab `json:"tabs"`
}

// Pack lays out agentCount worker agents into a bounded grid of tabs:
// one orchestrator tab first, ceil(n/4) worker tabs of at most four
// panes each (exactly one when 0 < n <= 4, none when n == 0), and one
// trailing monitor tab. Agent ids fill tabs in ascending order,
// left-to-right, top-to-bottom.
func Pack(agentCount int) (Plan, error) {
	if agentCount < 0 {
		return Plan{}, fmt.Errorf("layout: agent count must be >= 0, got %d", agentCount)
	}

	plan := Plan{AgentCount: agentCount}
	plan.Tabs = append(plan.Tabs, Tab{
		Name: "Orchestrator",
		Kind: TabOrchestrator,
		Panes: []Pane{{
			AgentID: OrchestratorID,
			Command: fmt.Sprintf("%s %d", shimCommand, OrchestratorID),
		}},
	})

	for first := 1; first <= agentCount; first += MaxAgentsPerTab {
		last := first + MaxAgentsPerTab - 1
		if last > agentCount {
			last = agentCount
		}
		tab := Tab{
			Name: workerTabName(first, last),
			Kind: TabWorkers,
		}
		for id := first; id <= last; id++ {
			slot := id - first
			tab.Panes = append(tab.Panes, Pane{
				AgentID: id,
				Row:     slot / 2,
				Col:     slot % 2,
				Command: fmt.Sprintf("%s %d", shimCommand, id),
			})
		}
		plan.Tabs = append(plan.Tabs, tab)
	}

	plan.Tabs = append(plan.Tabs, Tab{
		Name: "Monitor",
		Kind: TabMonitor,
		Panes: []Pane{{
			AgentID: MonitorPaneID,
			Command: monitorCommand,
		}},
	})

	return plan, nil
}

// WorkerTabs returns the worker tabs in order.
func (p Plan) WorkerTabs() []Tab {
	var tabs []Tab
	for _, tab := range p.Tabs {
		if tab.Kind == TabWorkers {
			tabs = append(tabs, tab)
		}
	}
	return tabs
}

// AgentIDs returns every worker agent id assigned to a pane, in plan order.
func (p Plan) AgentIDs() []int {
	var ids []int
	for _, tab := range p.Tabs {
		if tab.Kind != TabWorkers {
			continue
		}
		for _, pane := range tab.Panes {
			ids = append(ids, pane.AgentID)
		}
	}
	return ids
}

func workerTabName(first, last int) string {
	if first == last {
		return fmt.Sprintf("Agent %d", first)
	}
	return fmt.Sprintf("Agents %d-%d", first, last)
}
