// Read-only polling view of one session. The monitor re-reads session
// metadata once at startup, then on every tick re-reads all agent
// state records plus the roster and renders a table. A record that
// fails to read this tick is simply absent from this tick's table;
// the loop itself only ends with its context.

package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mtavish/conclave/internal/agent"
	"github.com/mtavish/conclave/internal/roster"
	"github.com/mtavish/conclave/internal/session"
)

// DefaultInterval is the fixed poll interval.
const DefaultInterval = 5 * time.Second

// Monitor renders the live state of one session's agents.
type Monitor struct {
	Store    *session.Store
	Interval time.Duration
	Out      io.Writer
}

// New builds a monitor over one session store.
func New(store *session.Store) *Monitor {
	return &Monitor{
		Store:    store,
		Interval: DefaultInterval,
		Out:      os.Stdout,
	}
}

// Run polls until the context is cancelled. Only a missing session is
// fatal; every later read error is transient by definition.
func (m *Monitor) Run(ctx context.Context) error {
	meta, err := m.Store.ReadSession()
	if err != nil {
		return err
	}
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fmt.Fprintln(out, m.Render(meta))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Render produces one tick's board. Roster and state reads are both
// allowed to fail without taking the board down.
func (m *Monitor) Render(meta session.Session) string {
	states, err := m.Store.ListAgentStates()
	if err != nil {
		states = nil
	}
	r, err := m.Store.ReadRoster()
	if err != nil {
		r = nil
	}
	return RenderBoard(meta, r, states)
}

// RenderBoard formats the agent table for one snapshot.
func RenderBoard(meta session.Session, r *roster.Roster, states []agent.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s — %d agent(s)\n", meta.Name, meta.AgentCount)
	if len(states) == 0 {
		b.WriteString("  (no agent state records yet)")
		return b.String()
	}
	for _, state := range states {
		activity := "never"
		if state.EverActive() {
			activity = "active"
		}
		role := ""
		if r != nil {
			if def, ok := r.FindByID(state.AgentID); ok {
				role = def.Role
			}
		}
		fmt.Fprintf(&b, "  %s %-14s %-24s %-9s %s", state.Status.Icon(), state.AgentName, role, state.Status, activity)
		if task := state.Task(); task != "" {
			fmt.Fprintf(&b, "  %s", task)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
