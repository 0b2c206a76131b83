package chain

import (
	"errors"
	"fmt"
)

var (
	ErrUserRejected      = errors.New("chain: user rejected the request")
	ErrUnsupportedWallet = errors.New("chain: no wallet available")
	ErrAccountMismatch   = errors.New("chain: signer does not match connected account")
	ErrNoAccount         = errors.New("chain: wallet returned no accounts")
	ErrUnrecognizedChain = errors.New("chain: unrecognized chain id")
	ErrUnknownToken      = errors.New("chain: token not in address table")
	ErrNotExecutable     = errors.New("chain: signal is not executable")
	ErrWrongNetwork      = errors.New("chain: wrong network")
)

// TxError wraps submission failures with the step that failed.
type TxError struct {
	Op     string // Operation that failed
	TxHash string // Transaction hash if available
	Err    error  // Underlying error
}

func (e *TxError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("chain: %s failed (tx: %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("chain: %s failed: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }
