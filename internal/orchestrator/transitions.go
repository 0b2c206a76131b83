package orchestrator

import (
	"fmt"
	"slices"

	"github.com/camuig/agentfi/internal/storage"
)

// transitions lists the statuses reachable from each status. stopped is terminal.
var transitions = map[storage.AgentStatus][]storage.AgentStatus{
	storage.StatusCreated: {storage.StatusActive, storage.StatusStopped},
	storage.StatusActive:  {storage.StatusPaused, storage.StatusStopped},
	storage.StatusPaused:  {storage.StatusActive, storage.StatusStopped},
}

func CanTransition(from, to storage.AgentStatus) bool {
	return slices.Contains(transitions[from], to)
}

func checkTransition(from, to storage.AgentStatus) error {
	if !to.Valid() {
		return fmt.Errorf("unknown status %q: %w", to, storage.ErrValidation)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
