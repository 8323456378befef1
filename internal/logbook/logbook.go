// Append-only text log shared by every long-lived conclave component.
// Each session carries one logbook file inside its store directory; the
// monitor TUI tails it. Writes are best-effort: a failed append never
// propagates to the caller, because losing a log line must not block an
// agent on a coordination hiccup.

package logbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the logbook file kept inside each session directory.
const FileName = "session.log"

// Logbook appends timestamped severity-tagged lines to a single text
// file. Safe for concurrent use within one process; cross-process
// appends interleave at line granularity, which is acceptable for an
// operator-facing log. A nil *Logbook discards everything.
type Logbook struct {
	mu   sync.Mutex
	path string
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Logbook{path: path}, nil
}

// ForSession opens the logbook stored inside a session directory.
func ForSession(sessionDir string) (*Logbook, error) {
	return New(filepath.Join(sessionDir, FileName))
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.write("INFO", format, args)
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.write("WARN", format, args)
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.write("ERROR", format, args)
}

// Printf appends an informational entry. It exists so a logbook
// satisfies the minimal Printf-style logger contract other components
// accept.
func (l *Logbook) Printf(format string, args ...any) {
	l.write("INFO", format, args)
}

// write opens the file per append rather than holding a handle, so the
// session directory can be destroyed out from under a live logbook
// without keeping stale descriptors around.
func (l *Logbook) write(severity, format string, args []any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	fmt.Fprintf(file, "%s %-5s %s\n", time.Now().UTC().Format(time.RFC3339), severity, message)
}

// Tail returns up to maxLines of the most recent log entries. A missing
// or empty file yields nil.
func (l *Logbook) Tail(maxLines int) []string {
	if l == nil || maxLines <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}
