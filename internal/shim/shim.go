// Per-agent bootstrap. The shim validates its preconditions without
// touching any state, moves the agent's record to running, hands the
// terminal to the interactive agent process, and marks the record
// stopped when that process exits. Precondition failures are loud;
// the exit-time bookkeeping is best-effort because the process is
// already gone and there is nothing left to roll back.

package shim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/mtavish/conclave/internal/agent"
	"github.com/mtavish/conclave/internal/bridge"
	"github.com/mtavish/conclave/internal/config"
	"github.com/mtavish/conclave/internal/logbook"
	"github.com/mtavish/conclave/internal/mailbox"
	"github.com/mtavish/conclave/internal/session"
	"github.com/mtavish/conclave/internal/tmux"
	"github.com/mtavish/conclave/internal/tools"
)

// Environment keys supplied to the launched agent process.
const (
	EnvSessionName = "CONCLAVE_SESSION"
	EnvSessionDir  = "CONCLAVE_SESSION_DIR"
	EnvAgentID     = "CONCLAVE_AGENT_ID"
	EnvBriefing    = "CONCLAVE_BRIEFING"
	EnvMailbox     = "CONCLAVE_MAILBOX"
	EnvResponse    = "CONCLAVE_RESPONSE"
	EnvBridgeURL   = "CONCLAVE_BRIDGE_URL"
)

// Launcher runs the interactive agent process to completion inside
// workDir with extra environment entries appended. Injected so tests
// never spawn a real agent.
type Launcher func(workDir, command string, extraEnv []string) error

// Shim bootstraps one agent pane.
type Shim struct {
	Config *config.Config
	Launch Launcher
	Clock  func() time.Time
	Tmux   *tmux.Client
	Out    io.Writer
}

// New wires a shim with the default process launcher.
func New(cfg *config.Config) *Shim {
	return &Shim{
		Config: cfg,
		Launch: launchProcess,
		Clock:  func() time.Time { return time.Now().UTC() },
		Out:    os.Stdout,
	}
}

// Run executes the full shim lifecycle for one agent id. Id 0 is the
// orchestrator: it bypasses worker validation, reports the session,
// and drops straight into its own interactive session.
func (s *Shim) Run(handle session.Handle, agentID int) error {
	store := session.NewStore(handle, session.WithClock(s.now))
	meta, err := store.ReadSession()
	if err != nil {
		return err
	}
	if agentID == 0 {
		return s.runOrchestrator(handle, meta)
	}
	if agentID < 0 || agentID > meta.AgentCount {
		return fmt.Errorf("shim: agent id %d outside 1..%d", agentID, meta.AgentCount)
	}

	// Preconditions, checked before any state mutation.
	workDir, err := store.ResolveWorkDir(agentID)
	if err != nil {
		return err
	}
	briefingPath := handle.BriefingPath(agentID)
	if _, err := os.Stat(briefingPath); err != nil {
		return fmt.Errorf("shim: instruction document for agent %d: %w", agentID, err)
	}

	log, err := logbook.ForSession(handle.Dir)
	if err != nil {
		return fmt.Errorf("shim: open logbook: %w", err)
	}

	state, err := store.ReadAgentState(agentID)
	if err != nil {
		if !errors.Is(err, session.ErrStateNotFound) {
			return err
		}
		state = agent.NewState(agentID, s.agentName(store, agentID))
	}
	if state.Status == agent.StatusStopped {
		state.Restarts++
	}
	state.Status = agent.StatusRunning
	state.Touch(s.now())
	if err := store.WriteAgentState(state); err != nil {
		return fmt.Errorf("shim: mark agent %d running: %w", agentID, err)
	}
	log.Info("agent %d (%s) running in %s", agentID, state.AgentName, workDir)

	extraEnv := []string{
		EnvSessionName + "=" + meta.Name,
		EnvSessionDir + "=" + handle.Dir,
		EnvAgentID + "=" + strconv.Itoa(agentID),
		EnvBriefing + "=" + briefingPath,
		EnvMailbox + "=" + handle.MailboxPath(agentID),
		EnvResponse + "=" + handle.ResponsePath(agentID),
	}

	// Optional localhost tool façade for the agent's automation layer.
	settings := bridge.SettingsFromConfig(s.Config)
	if settings.Enabled {
		box := mailbox.New(handle)
		toolServer := tools.NewServer(store, box, agentID, state.AgentName, tools.WithLogbook(log))
		b := bridge.NewServer(settings, toolServer, bridge.WithLogger(log))
		if err := b.Start(context.Background()); err != nil {
			log.Warn("agent %d: bridge unavailable: %v", agentID, err)
		} else {
			extraEnv = append(extraEnv, EnvBridgeURL+"="+b.BaseURL())
			defer func() { _ = b.Shutdown(context.Background()) }()
		}
	}

	s.deliverKickoff(briefingPath)

	launchErr := s.launch(workDir, s.Config.AgentCommand(), extraEnv)

	// The process is gone; record stopped on a best-effort basis.
	if final, err := store.ReadAgentState(agentID); err == nil {
		state = final
	}
	state.Status = agent.StatusStopped
	state.Touch(s.now())
	if err := store.WriteAgentState(state); err != nil {
		log.Warn("agent %d: stopped transition lost: %v", agentID, err)
	} else {
		log.Info("agent %d stopped", agentID)
	}
	return launchErr
}

func (s *Shim) runOrchestrator(handle session.Handle, meta session.Session) error {
	fmt.Fprintf(s.out(), "Session %s (%s): %d agents, repo %s, worktrees=%t\n",
		meta.Name, meta.Config, meta.AgentCount, meta.RepoPath, meta.Worktrees)
	extraEnv := []string{
		EnvSessionName + "=" + meta.Name,
		EnvSessionDir + "=" + handle.Dir,
		EnvAgentID + "=0",
	}
	return s.launch(meta.RepoPath, s.Config.AgentCommand(), extraEnv)
}

// deliverKickoff tells the agent where to start. With tmux available
// the instruction is typed into the pane for the agent process to pick
// up; otherwise it is printed for a human operator to paste.
func (s *Shim) deliverKickoff(briefingPath string) {
	instruction := fmt.Sprintf("Read your instruction document at %s, then check your mailbox.", briefingPath)
	if tmux.InsideTmux() && tmux.Available() {
		client := s.Tmux
		if client == nil {
			client = tmux.NewClient()
		}
		if pane, err := client.CurrentPane(); err == nil {
			if err := client.SendKeys(pane, instruction); err == nil {
				return
			}
		}
	}
	fmt.Fprintf(s.out(), "First instruction for the agent:\n  %s\n", instruction)
}

func (s *Shim) agentName(store *session.Store, agentID int) string {
	if r, err := store.ReadRoster(); err == nil {
		if def, ok := r.FindByID(agentID); ok {
			return def.Name
		}
	}
	return fmt.Sprintf("agent-%d", agentID)
}

func (s *Shim) launch(workDir, command string, extraEnv []string) error {
	if s.Launch == nil {
		return fmt.Errorf("shim: launcher unavailable")
	}
	return s.Launch(workDir, command, extraEnv)
}

func (s *Shim) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

func (s *Shim) out() io.Writer {
	if s.Out == nil {
		return os.Stdout
	}
	return s.Out
}

// launchProcess hands the controlling terminal to the agent command
// until it exits, for any reason. The shim's contract ends there; it
// does not distinguish agent success from agent failure.
func launchProcess(workDir, command string, extraEnv []string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
