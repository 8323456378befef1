package session

import (
	"context"
	"time"

	"github.com/mtavish/conclave/internal/agent"
)

// DefaultAwaitInterval is how often AwaitCompletion re-reads the store.
const DefaultAwaitInterval = 5 * time.Second

// AwaitCompletion blocks until every worker agent has reached complete
// or stopped, polling the store at the given interval. Transient read
// errors are treated as "not done yet"; only context cancellation ends
// the wait early.
func AwaitCompletion(ctx context.Context, store *Store, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultAwaitInterval
	}
	meta, err := store.ReadSession()
	if err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if allSettled(store, meta.AgentCount) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func allSettled(store *Store, agentCount int) bool {
	states, err := store.ListAgentStates()
	if err != nil || len(states) < agentCount {
		return false
	}
	for _, state := range states {
		switch state.Status {
		case agent.StatusComplete, agent.StatusStopped:
		default:
			return false
		}
	}
	return true
}
