// Debounced filesystem watcher over one session directory. Mail,
// state, and response writes are all single-file replacements, so the
// watcher collapses the create/write bursts fsnotify reports into one
// notification per path per debounce window.

package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mtavish/conclave/internal/session"
)

// DefaultDebounce is the window within which repeated events on the
// same path collapse into one notification.
const DefaultDebounce = 250 * time.Millisecond

// Kind classifies which part of the session directory changed.
type Kind string

const (
	KindState    Kind = "state"
	KindMail     Kind = "mail"
	KindResponse Kind = "response"
	KindLog      Kind = "log"
	KindOther    Kind = "other"
)

// Event is one debounced change notification.
type Event struct {
	Kind Kind
	Path string
}

// Watcher delivers debounced change events for a session directory.
type Watcher struct {
	handle   session.Handle
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	events  chan Event
	fs      *fsnotify.Watcher
}

// Option customizes watcher construction.
type Option func(*Watcher)

// WithDebounce overrides the debounce window.
func WithDebounce(debounce time.Duration) Option {
	return func(w *Watcher) {
		if debounce > 0 {
			w.debounce = debounce
		}
	}
}

// New builds a watcher over the session's state, mail, and response
// directories plus the logbook. The returned watcher is inert until
// Run is called.
func New(handle session.Handle, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		handle:   handle,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
		events:   make(chan Event, 32),
		fs:       fs,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	for _, dir := range []string{handle.Dir, handle.StateDir(), handle.MailDir(), handle.ResponseDir()} {
		if err := fs.Add(dir); err != nil {
			_ = fs.Close()
			return nil, err
		}
	}
	return w, nil
}

// Events returns the debounced notification channel. It is closed
// when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run forwards debounced events until the context is cancelled or the
// underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// schedule arms (or re-arms) the per-path debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.fire(path)
	})
}

// fire sends the debounced notification. The send happens under the
// same mutex close holds while closing the channel, so a timer that
// lost the race to close observes the nil pending map and returns
// instead of sending on a closed channel.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return
	}
	delete(w.pending, path)
	select {
	case w.events <- Event{Kind: w.classify(path), Path: path}:
	default:
		// Consumer is behind; the next write re-raises the event.
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = nil
	close(w.events)
	w.mu.Unlock()
	_ = w.fs.Close()
}

func (w *Watcher) classify(path string) Kind {
	dir := filepath.Dir(path)
	switch dir {
	case w.handle.StateDir():
		return KindState
	case w.handle.MailDir():
		return KindMail
	case w.handle.ResponseDir():
		return KindResponse
	}
	if path == w.handle.LogPath() {
		return KindLog
	}
	return KindOther
}
