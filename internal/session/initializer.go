package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtavish/conclave/internal/briefing"
	"github.com/mtavish/conclave/internal/config"
	"github.com/mtavish/conclave/internal/layout"
	"github.com/mtavish/conclave/internal/logbook"
	"github.com/mtavish/conclave/internal/roster"
)

// GitRunner executes a git command inside a repository directory and
// returns its combined output. Injected so tests never shell out.
type GitRunner func(repoDir string, args ...string) (string, error)

// Initializer builds session stores.
type Initializer struct {
	Config *config.Config
	Git    GitRunner
	Clock  func() time.Time
}

// NewInitializer wires an initializer with the default git runner.
func NewInitializer(cfg *config.Config) *Initializer {
	return &Initializer{
		Config: cfg,
		Git:    runGit,
		Clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Initialize creates the full session store for a named configuration:
// metadata, one pending state per agent, workspace allocation, rendered
// briefings, the roster snapshot, and the packed layout plan.
func (in *Initializer) Initialize(configName, sessionName, repoPath string, useWorktrees bool) (meta Session, retErr error) {
	sessionName = strings.TrimSpace(sessionName)
	if sessionName == "" {
		return Session{}, fmt.Errorf("session: name is required")
	}
	// The name becomes a directory under sessions/; anything that could
	// escape that directory is rejected outright.
	if sessionName != filepath.Base(sessionName) || strings.ContainsAny(sessionName, `/\`) ||
		sessionName == "." || sessionName == ".." {
		return Session{}, fmt.Errorf("session: name %q must not contain path separators", sessionName)
	}

	r, err := roster.LoadNamed(in.Config.ConfigsDir(), configName)
	if err != nil {
		return Session{}, err
	}
	if errs := r.Validate(); len(errs) > 0 {
		return Session{}, fmt.Errorf("session: configuration %q is invalid: %v", configName, errs[0])
	}

	repoPath, err = filepath.Abs(repoPath)
	if err != nil {
		return Session{}, fmt.Errorf("session: resolve repo path: %w", err)
	}

	handle := NewHandle(in.Config.SessionsDir(), sessionName)
	store := NewStore(handle, WithClock(in.now))
	meta = Session{
		Name:       sessionName,
		RunID:      uuid.NewString(),
		Config:     configName,
		RepoPath:   repoPath,
		Worktrees:  useWorktrees,
		AgentCount: len(r.Agents),
		CreatedAt:  in.now().Format(time.RFC3339),
		Status:     StatusInitialized,
	}
	if err := store.Create(meta); err != nil {
		return Session{}, err
	}
	// From here on the directory is ours; tear it down on any failure.
	defer func() {
		if retErr != nil {
			_ = store.Destroy()
		}
	}()

	log, err := logbook.ForSession(handle.Dir)
	if err != nil {
		return Session{}, fmt.Errorf("session: open logbook: %w", err)
	}
	log.Info("session %s initialized from %s (%d agents, worktrees=%t)",
		sessionName, configName, len(r.Agents), useWorktrees)

	workspaces := make(map[int]string, len(r.Agents))
	for _, def := range r.Agents {
		workspaces[def.ID] = in.allocateWorkspace(handle, log, def, repoPath, useWorktrees)
	}
	if err := store.WriteWorkspaces(workspaces); err != nil {
		return Session{}, err
	}

	for _, def := range r.Agents {
		ctx := briefing.NewContext(def, r)
		ctx.SessionName = sessionName
		ctx.RepoPath = repoPath
		ctx.WorkDir = workspaces[def.ID]
		ctx.Briefing = handle.BriefingPath(def.ID)
		ctx.Mailbox = handle.MailboxPath(def.ID)
		ctx.Response = handle.ResponsePath(def.ID)
		ctx.State = handle.StatePath(def.ID)
		doc, err := briefing.Render(in.Config.TemplatesDir(), ctx)
		if err != nil {
			return Session{}, err
		}
		if err := writeFile(handle.BriefingPath(def.ID), doc); err != nil {
			return Session{}, err
		}
	}

	plan, err := layout.Pack(len(r.Agents))
	if err != nil {
		return Session{}, err
	}
	if err := store.WriteLayout(plan); err != nil {
		return Session{}, err
	}
	if err := store.WriteRoster(r); err != nil {
		return Session{}, err
	}
	if err := store.SeedStates(r.Agents); err != nil {
		return Session{}, err
	}
	return meta, nil
}

// allocateWorkspace resolves one agent's working directory. Worktree
// mode tries an isolated checkout of the agent's branch; when git
// cannot provide one (branch checked out elsewhere, no such repo) the
// agent falls back to the shared repository. The fallback is logged,
// never fatal.
func (in *Initializer) allocateWorkspace(handle Handle, log *logbook.Logbook, def roster.AgentDefinition, repoPath string, useWorktrees bool) string {
	if !useWorktrees || def.Branch == "" {
		return repoPath
	}
	dir := handle.WorktreePath(def.ID)
	if _, err := in.git(repoPath, "worktree", "add", dir, def.Branch); err == nil {
		log.Info("agent %d: worktree checkout of %s at %s", def.ID, def.Branch, dir)
		return dir
	}
	if _, err := in.git(repoPath, "worktree", "add", "-b", def.Branch, dir); err == nil {
		log.Info("agent %d: created branch %s in worktree %s", def.ID, def.Branch, dir)
		return dir
	}
	log.Warn("agent %d: worktree for branch %s unavailable, using shared repository", def.ID, def.Branch)
	return repoPath
}

func (in *Initializer) git(repoDir string, args ...string) (string, error) {
	if in.Git == nil {
		return "", fmt.Errorf("session: git runner unavailable")
	}
	return in.Git(repoDir, args...)
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

func (in *Initializer) now() time.Time {
	if in.Clock == nil {
		return time.Now().UTC()
	}
	return in.Clock().UTC()
}
