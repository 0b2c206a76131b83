package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("storage: validation failed")
	ErrConflict   = errors.New("storage: conflict")
	ErrNotFound   = errors.New("storage: not found")
	ErrConnection = errors.New("storage: connection failed")
)

// StoreError carries the failed operation, its error class and the driver cause.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &StoreError{Op: op, Kind: ErrNotFound, Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &StoreError{Op: op, Kind: ErrConflict, Err: err}
	default:
		return &StoreError{Op: op, Kind: ErrConnection, Err: err}
	}
}

func invalid(op, format string, args ...any) error {
	return &StoreError{Op: op, Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

// NormalizeAddress lowercases a wallet address so lookups are case-insensitive.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ValidTokenPair reports whether pair has the BASE/QUOTE shape.
func ValidTokenPair(pair string) bool {
	base, quote, ok := strings.Cut(pair, "/")
	return ok && base != "" && quote != "" && !strings.Contains(quote, "/")
}

var hundred = decimal.NewFromInt(100)

func validateAgent(a *Agent) error {
	const op = "create agent"
	if strings.TrimSpace(a.Name) == "" {
		return invalid(op, "name is required")
	}
	if a.WalletAddress == "" {
		return invalid(op, "wallet address is required")
	}
	if !a.Strategy.Valid() {
		return invalid(op, "unknown strategy %q", a.Strategy)
	}
	if !a.RiskLevel.Valid() {
		return invalid(op, "unknown risk level %q", a.RiskLevel)
	}
	if !a.Status.Valid() {
		return invalid(op, "unknown status %q", a.Status)
	}
	if !a.AllocatedAmount.IsPositive() {
		return invalid(op, "allocated amount must be positive")
	}
	if len(a.TokenPairs) == 0 {
		return invalid(op, "at least one token pair is required")
	}
	seen := make(map[string]bool, len(a.TokenPairs))
	for _, p := range a.TokenPairs {
		if !ValidTokenPair(p) {
			return invalid(op, "malformed token pair %q", p)
		}
		if seen[p] {
			return invalid(op, "duplicate token pair %q", p)
		}
		seen[p] = true
	}
	if !a.SlippageTolerance.IsPositive() || a.SlippageTolerance.GreaterThan(hundred) {
		return invalid(op, "slippage tolerance must be in (0, 100]")
	}
	return nil
}

func validateSignal(s *TradingSignal) error {
	const op = "create signal"
	if s.AgentID == "" {
		return invalid(op, "agent id is required")
	}
	if !s.SignalType.Valid() {
		return invalid(op, "unknown signal type %q", s.SignalType)
	}
	if !ValidTokenPair(s.TokenPair) {
		return invalid(op, "malformed token pair %q", s.TokenPair)
	}
	if s.ConfidenceScore < 0 || s.ConfidenceScore > 100 {
		return invalid(op, "confidence %d out of range", s.ConfidenceScore)
	}
	if s.PositionSize < 0 || s.PositionSize > 100 {
		return invalid(op, "position size %d out of range", s.PositionSize)
	}
	return nil
}
