// File-per-record persistence for one orchestration run. Every record
// is plain JSON (or YAML for the roster snapshot) inside the session
// directory, so any process with filesystem access can read live state.
// Only an agent's own shim and tool calls write its state record; the
// store itself takes no locks.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mtavish/conclave/internal/agent"
	"github.com/mtavish/conclave/internal/layout"
	"github.com/mtavish/conclave/internal/roster"
)

var (
	// ErrSessionExists indicates a session of the same name is already on disk.
	ErrSessionExists = errors.New("session: already exists")
	// ErrSessionNotFound indicates no session store exists for the name.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrStateNotFound indicates the agent has no persisted state record.
	ErrStateNotFound = errors.New("session: agent state not found")
)

// StatusInitialized is the only lifecycle status this layer assigns.
// External tooling may move a session to further states.
const StatusInitialized = "initialized"

// Session is the immutable metadata record for one orchestration run.
type Session struct {
	Name       string `json:"name"`
	RunID      string `json:"runId"`
	Config     string `json:"config"`
	RepoPath   string `json:"repoPath"`
	Worktrees  bool   `json:"worktrees"`
	AgentCount int    `json:"agentCount"`
	CreatedAt  string `json:"createdAt"`
	Status     string `json:"status"`
}

// Store reads and writes the records of one session.
type Store struct {
	handle Handle
	clock  func() time.Time
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithClock lets tests control timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore binds a store to one session handle.
func NewStore(handle Handle, opts ...StoreOption) *Store {
	s := &Store{
		handle: handle,
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handle returns the session handle the store is bound to.
func (s *Store) Handle() Handle {
	return s.handle
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.clock().UTC()
}

// Create claims the session directory and persists the metadata record.
// The directory creation is the idempotency guard: when a concurrent
// initializer wins the race, os.Mkdir fails and the loser sees
// ErrSessionExists without touching the winner's files.
func (s *Store) Create(meta Session) error {
	if err := os.MkdirAll(filepath.Dir(s.handle.Dir), 0o755); err != nil {
		return fmt.Errorf("session: ensure sessions dir: %w", err)
	}
	if err := os.Mkdir(s.handle.Dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrSessionExists, s.handle.Name)
		}
		return fmt.Errorf("session: create %s: %w", s.handle.Dir, err)
	}
	for _, dir := range []string{
		s.handle.StateDir(),
		s.handle.MailDir(),
		s.handle.ResponseDir(),
		s.handle.BriefingDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("session: create %s: %w", dir, err)
		}
	}
	return s.writeJSON(s.handle.MetadataPath(), meta)
}

// ReadSession loads the metadata record.
func (s *Store) ReadSession() (Session, error) {
	var meta Session
	if err := s.readJSON(s.handle.MetadataPath(), &meta); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, s.handle.Name)
		}
		return Session{}, err
	}
	return meta, nil
}

// Exists reports whether the session store is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.handle.MetadataPath())
	return err == nil
}

// SeedStates writes one pending state record per declared agent.
func (s *Store) SeedStates(defs []roster.AgentDefinition) error {
	for _, def := range defs {
		if err := s.WriteAgentState(agent.NewState(def.ID, def.Name)); err != nil {
			return err
		}
	}
	return nil
}

// ReadAgentState loads one agent's state record.
func (s *Store) ReadAgentState(agentID int) (agent.State, error) {
	var state agent.State
	if err := s.readJSON(s.handle.StatePath(agentID), &state); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return agent.State{}, fmt.Errorf("%w: agent %d", ErrStateNotFound, agentID)
		}
		return agent.State{}, err
	}
	return state, nil
}

// WriteAgentState overwrites one agent's state record in full. Callers
// own the read-modify-write cycle; by contract only the agent's own
// process writes its record, so there is no cross-writer race.
func (s *Store) WriteAgentState(state agent.State) error {
	return s.writeJSON(s.handle.StatePath(state.AgentID), state)
}

// ListAgentStates returns every readable state record ordered by agent
// id. Transiently malformed or mid-write records are skipped rather
// than failing the listing: the monitor must keep rendering.
func (s *Store) ListAgentStates() ([]agent.State, error) {
	entries, err := os.ReadDir(s.handle.StateDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: list states: %w", err)
	}
	var states []agent.State
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := agentIDFromStateFile(entry.Name())
		if !ok {
			continue
		}
		state, err := s.ReadAgentState(id)
		if err != nil {
			continue
		}
		states = append(states, state)
	}
	sortStates(states)
	return states, nil
}

// ReadRoster loads the roster snapshot taken at initialization.
func (s *Store) ReadRoster() (*roster.Roster, error) {
	return roster.Load(s.handle.RosterPath())
}

// WriteRoster snapshots the configuration the session was created from.
func (s *Store) WriteRoster(r *roster.Roster) error {
	return r.Save(s.handle.RosterPath())
}

// WriteLayout persists the packed layout plan.
func (s *Store) WriteLayout(plan layout.Plan) error {
	return s.writeJSON(s.handle.LayoutPath(), plan)
}

// ReadLayout loads the persisted layout plan.
func (s *Store) ReadLayout() (layout.Plan, error) {
	var plan layout.Plan
	if err := s.readJSON(s.handle.LayoutPath(), &plan); err != nil {
		return layout.Plan{}, err
	}
	return plan, nil
}

// WriteWorkspaces persists the agent-id to working-directory map.
func (s *Store) WriteWorkspaces(workspaces map[int]string) error {
	return s.writeJSON(s.handle.WorkspacesPath(), workspaces)
}

// ReadWorkspaces loads the agent-id to working-directory map.
func (s *Store) ReadWorkspaces() (map[int]string, error) {
	workspaces := map[int]string{}
	if err := s.readJSON(s.handle.WorkspacesPath(), &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

// Destroy removes the whole session store.
func (s *Store) Destroy() error {
	return os.RemoveAll(s.handle.Dir)
}

func (s *Store) writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("session: ensure dir for %s: %w", path, err)
	}
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("session: write %s: %w", path, err)
	}
	return nil
}

func (s *Store) readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("session: parse %s: %w", path, err)
	}
	return nil
}

func agentIDFromStateFile(name string) (int, bool) {
	if !strings.HasPrefix(name, "agent-") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "agent-"), ".json"))
	if err != nil {
		return 0, false
	}
	return id, true
}

func sortStates(states []agent.State) {
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].AgentID < states[j].AgentID
	})
}
