package agent

import (
	"fmt"
	"strings"
)

// Status enumerates the lifecycle states of one worker agent. The set is
// closed: anything outside it is rejected at the boundary, never coerced.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusIdle     Status = "idle"
	StatusBlocked  Status = "blocked"
	StatusComplete Status = "complete"
	StatusStopped  Status = "stopped"
)

// ParseStatus maps a raw string onto the closed status set.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusRunning:
		return StatusRunning, nil
	case StatusIdle:
		return StatusIdle, nil
	case StatusBlocked:
		return StatusBlocked, nil
	case StatusComplete:
		return StatusComplete, nil
	case StatusStopped:
		return StatusStopped, nil
	default:
		return "", fmt.Errorf("agent: unknown status %q", raw)
	}
}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Terminal reports whether the runtime considers the state final.
// Stopped is the only state assigned automatically on process exit;
// the work states cycle back to running on resume.
func (s Status) Terminal() bool {
	return s == StatusStopped
}

// workStates are the agent-driven states reachable through the
// coordination tool surface.
var workStates = map[Status]struct{}{
	StatusRunning:  {},
	StatusIdle:     {},
	StatusBlocked:  {},
	StatusComplete: {},
}

// AgentDriven reports whether an agent may request this status through
// update_status. Pending and stopped are runtime-shim territory.
func (s Status) AgentDriven() bool {
	_, ok := workStates[s]
	return ok
}

// transitions is the total transition table. Every (from, to) pair not
// listed here is illegal. Work states cycle freely among themselves,
// pending only begins a run, stopped only ends one, and a stopped agent
// may be relaunched.
var transitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusRunning: {},
		StatusStopped: {},
	},
	StatusRunning: {
		StatusRunning:  {},
		StatusIdle:     {},
		StatusBlocked:  {},
		StatusComplete: {},
		StatusStopped:  {},
	},
	StatusIdle: {
		StatusRunning:  {},
		StatusIdle:     {},
		StatusBlocked:  {},
		StatusComplete: {},
		StatusStopped:  {},
	},
	StatusBlocked: {
		StatusRunning:  {},
		StatusIdle:     {},
		StatusBlocked:  {},
		StatusComplete: {},
		StatusStopped:  {},
	},
	StatusComplete: {
		StatusRunning:  {},
		StatusIdle:     {},
		StatusBlocked:  {},
		StatusComplete: {},
		StatusStopped:  {},
	},
	StatusStopped: {
		StatusRunning: {},
	},
}

// CanTransition consults the transition table.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Icon returns the single-character marker used by list_agents and the
// monitor board.
func (s Status) Icon() string {
	switch s {
	case StatusPending:
		return "○"
	case StatusRunning:
		return "●"
	case StatusIdle:
		return "◌"
	case StatusBlocked:
		return "◼"
	case StatusComplete:
		return "✓"
	case StatusStopped:
		return "✗"
	default:
		return "?"
	}
}
