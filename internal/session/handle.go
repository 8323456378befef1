package session

import (
	"fmt"
	"path/filepath"

	"github.com/mtavish/conclave/internal/logbook"
)

// Record subdirectories inside a session store.
const (
	stateDir    = "state"
	mailDir     = "mail"
	responseDir = "responses"
	briefingDir = "briefings"
	worktreeDir = "worktrees"
)

// Handle locates one session store on disk.
type Handle struct {
	Name string
	Dir  string
}

// NewHandle builds a handle for a named session under sessionsDir.
func NewHandle(sessionsDir, name string) Handle {
	return Handle{Name: name, Dir: filepath.Join(sessionsDir, name)}
}

// MetadataPath returns the session metadata record.
func (h Handle) MetadataPath() string {
	return filepath.Join(h.Dir, "session.json")
}

// RosterPath returns the roster snapshot copied at initialization.
func (h Handle) RosterPath() string {
	return filepath.Join(h.Dir, "roster.yaml")
}

// LayoutPath returns the persisted layout plan.
func (h Handle) LayoutPath() string {
	return filepath.Join(h.Dir, "layout.json")
}

// WorkspacesPath returns the agent-id to working-directory map.
func (h Handle) WorkspacesPath() string {
	return filepath.Join(h.Dir, "workspaces.json")
}

// StatePath returns one agent's mutable state record.
func (h Handle) StatePath(agentID int) string {
	return filepath.Join(h.Dir, stateDir, fmt.Sprintf("agent-%d.json", agentID))
}

// StateDir returns the directory holding all agent state records.
func (h Handle) StateDir() string {
	return filepath.Join(h.Dir, stateDir)
}

// MailboxPath returns one agent's single-slot mailbox file.
func (h Handle) MailboxPath(agentID int) string {
	return filepath.Join(h.Dir, mailDir, fmt.Sprintf("agent-%d.msg", agentID))
}

// MailDir returns the directory holding all mailbox slots.
func (h Handle) MailDir() string {
	return filepath.Join(h.Dir, mailDir)
}

// ResponsePath returns one agent's durable completion record.
func (h Handle) ResponsePath(agentID int) string {
	return filepath.Join(h.Dir, responseDir, fmt.Sprintf("agent-%d.md", agentID))
}

// ResponseDir returns the directory holding completion records.
func (h Handle) ResponseDir() string {
	return filepath.Join(h.Dir, responseDir)
}

// BriefingPath returns one agent's rendered instruction document.
func (h Handle) BriefingPath(agentID int) string {
	return filepath.Join(h.Dir, briefingDir, fmt.Sprintf("agent-%d.md", agentID))
}

// BriefingDir returns the directory holding instruction documents.
func (h Handle) BriefingDir() string {
	return filepath.Join(h.Dir, briefingDir)
}

// WorktreePath returns the isolated checkout directory allocated for one
// agent when the session runs in worktree mode.
func (h Handle) WorktreePath(agentID int) string {
	return filepath.Join(h.Dir, worktreeDir, fmt.Sprintf("agent-%d", agentID))
}

// LogPath returns the session logbook file.
func (h Handle) LogPath() string {
	return filepath.Join(h.Dir, logbook.FileName)
}
