// The five-operation coordination façade exposed to each agent process.
// Every operation returns a Result value and never lets an error escape
// its boundary: the caller is a possibly-unattended remote process, and
// a coordination hiccup must never crash it. Failures carry a kind so
// tests and automation can assert on what went wrong.

package tools

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mtavish/conclave/internal/agent"
	"github.com/mtavish/conclave/internal/logbook"
	"github.com/mtavish/conclave/internal/mailbox"
	"github.com/mtavish/conclave/internal/session"
)

// Kind classifies a failed operation.
type Kind string

const (
	KindRecipientNotFound Kind = "recipient_not_found"
	KindInvalidStatus     Kind = "invalid_status"
	KindInvalidPriority   Kind = "invalid_priority"
	KindInvalidTransition Kind = "invalid_transition"
	KindInternal          Kind = "internal"
)

// Result is the structured outcome of one tool operation.
type Result struct {
	OK      bool   `json:"ok"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
}

func ok(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func fail(kind Kind, format string, args ...any) Result {
	return Result{OK: false, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Server answers tool calls on behalf of exactly one agent. The agent
// id and session binding come from process-launch context, never from
// the caller, so an agent can only ever mutate its own records.
type Server struct {
	store     *session.Store
	box       *mailbox.Mailbox
	agentID   int
	agentName string
	log       *logbook.Logbook
	clock     func() time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogbook records swallowed failures to the session logbook.
func WithLogbook(log *logbook.Logbook) Option {
	return func(s *Server) { s.log = log }
}

// WithClock lets tests control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer binds a tool server to one agent within one session.
func NewServer(store *session.Store, box *mailbox.Mailbox, agentID int, agentName string, opts ...Option) *Server {
	s := &Server{
		store:     store,
		box:       box,
		agentID:   agentID,
		agentName: agentName,
		clock:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CheckQueries consumes the caller's mailbox slot. An empty slot is a
// normal result, not a failure.
func (s *Server) CheckQueries() Result {
	msg, err := s.box.Check(s.agentID)
	if err != nil {
		return s.internal("check queries", err)
	}
	if msg == nil {
		return ok("No pending queries.")
	}
	return ok("Query from %s (%s priority, %s):\n%s",
		msg.From, msg.Priority, msg.Timestamp.Format(time.RFC3339), msg.Body)
}

// SendQuery delivers a message to another agent's mailbox slot,
// overwriting any unconsumed message there.
func (s *Server) SendQuery(to, message, priority string) Result {
	pri, err := mailbox.ParsePriority(priority)
	if err != nil {
		return fail(KindInvalidPriority, "priority must be low, normal, or high; got %q", priority)
	}
	r, err := s.store.ReadRoster()
	if err != nil {
		return s.internal("load roster", err)
	}
	recipient, err := s.box.Send(r, s.senderLabel(), to, message, pri)
	if err != nil {
		if errors.Is(err, mailbox.ErrRecipientNotFound) {
			return fail(KindRecipientNotFound, "no agent matches %q", to)
		}
		return s.internal("send query", err)
	}
	return ok("Query sent to %s (agent %d).", recipient.Name, recipient.ID)
}

// UpdateStatus sets the caller's own status and, optionally, its
// current task. Only the agent-driven statuses are accepted; pending
// and stopped belong to the runtime shim.
func (s *Server) UpdateStatus(status, currentTask string) Result {
	next, err := agent.ParseStatus(status)
	if err != nil || !next.AgentDriven() {
		return fail(KindInvalidStatus, "status must be one of running, idle, blocked, complete; got %q", status)
	}
	state, res := s.loadOwnState()
	if !res.OK {
		return res
	}
	if !agent.CanTransition(state.Status, next) {
		return fail(KindInvalidTransition, "cannot move from %s to %s", state.Status, next)
	}
	state.Status = next
	state.Touch(s.clock())
	if strings.TrimSpace(currentTask) != "" {
		state.SetTask(currentTask)
	}
	if err := s.store.WriteAgentState(state); err != nil {
		return s.internal("write state", err)
	}
	return ok("Status updated to %s.", next)
}

// ListAgents renders one line per agent from the session's state
// records. Unreadable records are already skipped by the store.
func (s *Server) ListAgents() Result {
	states, err := s.store.ListAgentStates()
	if err != nil {
		return s.internal("list agents", err)
	}
	if len(states) == 0 {
		return ok("No agents registered.")
	}
	var b strings.Builder
	for i, state := range states {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%d] %s: %s", state.Status.Icon(), state.AgentID, state.AgentName, state.Status)
		if task := state.Task(); task != "" {
			fmt.Fprintf(&b, " — %s", task)
		}
	}
	return ok("%s", b.String())
}

// MarkComplete sets the caller's status to complete and leaves the
// durable completion record behind. State is written first; a failed
// response write is logged but not rolled back; availability of the
// coordination surface wins over strict consistency here.
func (s *Server) MarkComplete(summary string) Result {
	state, res := s.loadOwnState()
	if !res.OK {
		return res
	}
	if !agent.CanTransition(state.Status, agent.StatusComplete) {
		return fail(KindInvalidTransition, "cannot move from %s to %s", state.Status, agent.StatusComplete)
	}
	now := s.clock()
	state.Status = agent.StatusComplete
	state.SetTask(summary)
	state.Touch(now)
	if err := s.store.WriteAgentState(state); err != nil {
		return s.internal("write state", err)
	}
	record := mailbox.ResponseRecord{
		From:      s.senderLabel(),
		Timestamp: now,
		Status:    string(agent.StatusComplete),
		Summary:   summary,
	}
	if err := s.box.WriteResponse(s.agentID, record); err != nil {
		s.logf("agent %d: completion record write failed: %v", s.agentID, err)
		return ok("Task marked complete (summary record could not be written).")
	}
	return ok("Task marked complete.")
}

// loadOwnState reads the caller's record, seeding a fresh one when the
// agent has none yet. A tool call is proof the agent process is alive,
// so a pending record steps to running before the requested mutation
// is applied.
func (s *Server) loadOwnState() (agent.State, Result) {
	state, err := s.store.ReadAgentState(s.agentID)
	if err != nil {
		if errors.Is(err, session.ErrStateNotFound) {
			state = agent.NewState(s.agentID, s.agentName)
		} else {
			return agent.State{}, s.internal("read state", err)
		}
	}
	if state.Status == agent.StatusPending {
		state.Status = agent.StatusRunning
	}
	return state, Result{OK: true}
}

func (s *Server) senderLabel() string {
	if s.agentName != "" {
		return s.agentName
	}
	return fmt.Sprintf("agent-%d", s.agentID)
}

func (s *Server) internal(op string, err error) Result {
	s.logf("agent %d: %s: %v", s.agentID, op, err)
	return fail(KindInternal, "%s failed: %v", op, err)
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Error(format, args...)
	}
}
