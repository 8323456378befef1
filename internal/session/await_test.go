package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtavish/conclave/internal/agent"
)

func TestAwaitCompletionReturnsWhenAllSettled(t *testing.T) {
	store := createdStore(t)
	for id, status := range map[int]agent.Status{
		1: agent.StatusComplete,
		2: agent.StatusStopped,
		3: agent.StatusComplete,
	} {
		state := agent.NewState(id, "a")
		state.Status = status
		if err := store.WriteAgentState(state); err != nil {
			t.Fatalf("write state: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := AwaitCompletion(ctx, store, 10*time.Millisecond); err != nil {
		t.Fatalf("await: %v", err)
	}
}

func TestAwaitCompletionWaitsForStragglers(t *testing.T) {
	store := createdStore(t)
	for id := 1; id <= 3; id++ {
		state := agent.NewState(id, "a")
		state.Status = agent.StatusComplete
		if err := store.WriteAgentState(state); err != nil {
			t.Fatalf("write state: %v", err)
		}
	}
	// Agent 2 is still running; flip it after a few polls.
	running, _ := store.ReadAgentState(2)
	running.Status = agent.StatusRunning
	if err := store.WriteAgentState(running); err != nil {
		t.Fatalf("write state: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		running.Status = agent.StatusComplete
		_ = store.WriteAgentState(running)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := AwaitCompletion(ctx, store, 10*time.Millisecond); err != nil {
		t.Fatalf("await should settle once agent 2 completes: %v", err)
	}
}

func TestAwaitCompletionHonorsContext(t *testing.T) {
	store := createdStore(t)
	// Fewer records than AgentCount means never settled.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := AwaitCompletion(ctx, store, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestAwaitCompletionMissingSession(t *testing.T) {
	store := newStore(t)
	err := AwaitCompletion(context.Background(), store, time.Millisecond)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
