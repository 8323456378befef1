package agent

import (
	"time"
)

// State is the persisted, mutable status record for one agent. Exactly
// one record exists per worker id for the lifetime of a session; only
// that agent's own shim and tool calls mutate it, everyone else reads.
type State struct {
	AgentID     int     `json:"agentId"`
	AgentName   string  `json:"agentName"`
	Status      Status  `json:"status"`
	LastActive  *string `json:"lastActive"`
	CurrentTask *string `json:"currentTask"`
	Restarts    int     `json:"restarts"`
}

// timeLayout matches the lastActive wire format.
const timeLayout = time.RFC3339

// NewState seeds the record written at session initialization.
func NewState(id int, name string) State {
	return State{
		AgentID:   id,
		AgentName: name,
		Status:    StatusPending,
	}
}

// Touch stamps LastActive with the supplied clock reading.
func (s *State) Touch(now time.Time) {
	stamp := now.UTC().Format(timeLayout)
	s.LastActive = &stamp
}

// SetTask replaces the free-text current task. Empty input clears it.
func (s *State) SetTask(task string) {
	if task == "" {
		s.CurrentTask = nil
		return
	}
	s.CurrentTask = &task
}

// Task returns the current task text, empty when unset.
func (s State) Task() string {
	if s.CurrentTask == nil {
		return ""
	}
	return *s.CurrentTask
}

// EverActive reports whether the agent has stamped LastActive at least once.
func (s State) EverActive() bool {
	return s.LastActive != nil && *s.LastActive != ""
}

// Clone returns an independent copy, detaching the pointer fields.
func (s State) Clone() State {
	out := s
	if s.LastActive != nil {
		v := *s.LastActive
		out.LastActive = &v
	}
	if s.CurrentTask != nil {
		v := *s.CurrentTask
		out.CurrentTask = &v
	}
	return out
}
