package orchestrator

import (
	"errors"
	"fmt"
)

var (
	ErrCreationFailed         = errors.New("failed to create agent")
	ErrSignalGenerationFailed = errors.New("failed to generate signal")
	ErrStatusUpdateFailed     = errors.New("failed to update status")
	ErrSettlementFailed       = errors.New("failed to settle signal")
	ErrLoadFailed             = errors.New("failed to load agent")
	ErrRegistrationFailed     = errors.New("failed to register agent on-chain")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrLedgerNotConfigured    = errors.New("ledger not configured")
)

// FlowError reports the critical step that aborted a flow. It matches both
// the flow's failure kind and the underlying cause with errors.Is.
type FlowError struct {
	Flow string
	Step string
	Kind error
	Err  error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Step, e.Err)
}

func (e *FlowError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
