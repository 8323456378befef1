// The single-slot mailbox protocol. One file per recipient: a send
// overwrites any unconsumed message (last writer wins, by design), a
// check consumes the slot exactly once by deleting the file before the
// parsed message is returned. An empty slot is a normal state, not an
// error, so unattended callers never have to distinguish "no mail"
// from "no mailbox yet".

package mailbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mtavish/conclave/internal/roster"
	"github.com/mtavish/conclave/internal/session"
)

// ErrRecipientNotFound indicates the recipient identifier resolves to
// no declared agent.
var ErrRecipientNotFound = errors.New("mailbox: recipient not found")

// Mailbox exchanges messages through one session's store directory.
type Mailbox struct {
	handle session.Handle
	clock  func() time.Time
}

// Option customizes mailbox construction.
type Option func(*Mailbox)

// WithClock lets tests control message timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Mailbox) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// New binds a mailbox to one session handle.
func New(handle session.Handle, opts ...Option) *Mailbox {
	m := &Mailbox{
		handle: handle,
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Send resolves the recipient identifier (a literal agent id or a
// case-insensitive name from the session roster) and overwrites that
// recipient's slot. A previous unconsumed message is silently lost.
func (m *Mailbox) Send(r *roster.Roster, from, to, body string, priority Priority) (roster.AgentDefinition, error) {
	recipient, ok := r.Resolve(to)
	if !ok {
		return roster.AgentDefinition{}, fmt.Errorf("%w: %q", ErrRecipientNotFound, to)
	}
	msg := Message{
		From:      from,
		To:        recipient.ID,
		Timestamp: m.clock(),
		Priority:  priority,
		Body:      body,
	}
	path := m.handle.MailboxPath(recipient.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return roster.AgentDefinition{}, fmt.Errorf("mailbox: ensure mail dir: %w", err)
	}
	if err := os.WriteFile(path, msg.Encode(), 0o644); err != nil {
		return roster.AgentDefinition{}, fmt.Errorf("mailbox: write slot for agent %d: %w", recipient.ID, err)
	}
	return recipient, nil
}

// Check consumes the recipient's slot. The file is removed before the
// parse result is inspected, so a malformed slot can never poison the
// mailbox: it is drained and reported as no message. Returns (nil, nil)
// when the slot is empty.
func (m *Mailbox) Check(agentID int) (*Message, error) {
	path := m.handle.MailboxPath(agentID)
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("mailbox: read slot for agent %d: %w", agentID, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("mailbox: consume slot for agent %d: %w", agentID, err)
	}
	msg, err := ParseMessage(content)
	if err != nil {
		if errors.Is(err, ErrNotAMessage) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// WriteResponse persists an agent's completion record, overwriting any
// previous one.
func (m *Mailbox) WriteResponse(agentID int, record ResponseRecord) error {
	path := m.handle.ResponsePath(agentID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mailbox: ensure response dir: %w", err)
	}
	if err := os.WriteFile(path, record.Encode(), 0o644); err != nil {
		return fmt.Errorf("mailbox: write response for agent %d: %w", agentID, err)
	}
	return nil
}

// ReadResponse loads an agent's completion record. Returns (nil, nil)
// when the agent has not completed yet.
func (m *Mailbox) ReadResponse(agentID int) (*ResponseRecord, error) {
	content, err := os.ReadFile(m.handle.ResponsePath(agentID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("mailbox: read response for agent %d: %w", agentID, err)
	}
	record, err := ParseResponse(content)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
