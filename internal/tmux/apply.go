package tmux

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mtavish/conclave/internal/layout"
)

// Apply creates tmux session sessionName from plan. env travels to
// every pane both as a session-scoped tmux environment (for panes an
// operator opens later) and as a prefix on each startup command (so
// the planned panes see it regardless of tmux inheritance rules).
func (c *Client) Apply(sessionName string, plan layout.Plan, env map[string]string) error {
	if len(plan.Tabs) == 0 {
		return fmt.Errorf("tmux: layout plan has no tabs")
	}
	if exists, err := c.HasSession(sessionName); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("tmux: session %q already exists", sessionName)
	}

	first := plan.Tabs[0]
	if err := c.NewSession(sessionName, first.Name, paneCommand(env, first.Panes[0].Command)); err != nil {
		return err
	}
	for key, value := range env {
		if err := c.SetEnvironment(sessionName, key, value); err != nil {
			return err
		}
	}
	if err := c.fillTab(sessionName, first, env); err != nil {
		return err
	}
	for _, tab := range plan.Tabs[1:] {
		if len(tab.Panes) == 0 {
			continue
		}
		if err := c.NewWindow(sessionName, tab.Name, paneCommand(env, tab.Panes[0].Command)); err != nil {
			return err
		}
		if err := c.fillTab(sessionName, tab, env); err != nil {
			return err
		}
	}
	return c.SelectWindow(fmt.Sprintf("%s:%s", sessionName, first.Name))
}

// fillTab splits the already-created first pane of a tab into the
// plan's grid. The split order is fixed: top row left-to-right, then
// each column downwards, matching the packer's row/col assignment.
func (c *Client) fillTab(sessionName string, tab layout.Tab, env map[string]string) error {
	window := fmt.Sprintf("%s:%s", sessionName, tab.Name)
	panes := tab.Panes
	if len(panes) >= 2 {
		if err := c.SplitPane(window+".0", true, paneCommand(env, panes[1].Command)); err != nil {
			return err
		}
	}
	if len(panes) >= 3 {
		if err := c.SplitPane(window+".0", false, paneCommand(env, panes[2].Command)); err != nil {
			return err
		}
	}
	if len(panes) >= 4 {
		// After the third split the top-right pane has shifted to index 2.
		if err := c.SplitPane(window+".2", false, paneCommand(env, panes[3].Command)); err != nil {
			return err
		}
	}
	return nil
}

// paneCommand prefixes the startup command with its environment so the
// launched process sees the session context even when tmux session
// environment inheritance is unavailable.
func paneCommand(env map[string]string, command string) string {
	if len(env) == 0 {
		return command
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%s ", key, shellQuote(env[key]))
	}
	b.WriteString(command)
	return b.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
