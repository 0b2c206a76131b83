package orchestrator

import (
	"errors"
	"fmt"

	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/metrics"
)

type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// Step names as they appear in results, logs and metrics.
const (
	StepDBWrite        = "db_write"
	StepLedgerWrite    = "ledger_write"
	StepAISeed         = "ai_seed"
	StepGenerateSignal = "generate_signal"
	StepPreconditions  = "preconditions"
	StepLedgerExecute  = "ledger_execute"
	StepSettle         = "settle"
	StepTouchAgent     = "touch_agent"
	StepValidate       = "validate"
	StepDBUpdate       = "db_update"
	StepLedgerUpdate   = "ledger_update"
	StepLoadAgent      = "load_agent"
	StepAccuracy       = "accuracy"
	StepReadChain      = "read_chain"
	StepAnalyzeMarket  = "analyze_market"
)

const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeFailed   = "failed"
)

// StepResult is the tagged outcome of one orchestration step.
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
	Error  string     `json:"error,omitempty"`
	Err    error      `json:"-"`
}

// Steps lists the steps a flow went through, in order.
type Steps []StepResult

func (s Steps) Get(name string) (StepResult, bool) {
	for _, r := range s {
		if r.Name == name {
			return r, true
		}
	}
	return StepResult{}, false
}

func (s Steps) Status(name string) StepStatus {
	r, _ := s.Get(name)
	return r.Status
}

func (s Steps) Succeeded(name string) bool {
	return s.Status(name) == StepSucceeded
}

// Degraded reports whether any recorded step was skipped or failed.
func (s Steps) Degraded() bool {
	for _, r := range s {
		if r.Status != StepSucceeded {
			return true
		}
	}
	return false
}

// skipStep, returned from a step func, records the step as skipped with
// the given reason instead of failed.
type skipStep string

func (s skipStep) Error() string { return string(s) }

// flow records the steps of one orchestrator invocation.
type flow struct {
	name   string
	steps  Steps
	logger *logger.Logger
}

func newFlow(name string, log *logger.Logger, attrs ...any) *flow {
	return &flow{
		name:   name,
		logger: log.With(append([]any{"flow", name}, attrs...)...),
	}
}

// run executes fn as the named step. A panic inside fn is recovered and
// recorded as a failure of that step.
func (f *flow) run(name string, fn func() (detail string, err error)) error {
	res := StepResult{Name: name}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("panic: %v", r)
			}
		}()
		res.Detail, res.Err = fn()
	}()

	var reason skipStep
	switch {
	case errors.As(res.Err, &reason):
		res.Status = StepSkipped
		res.Detail = string(reason)
	case res.Err != nil:
		res.Status = StepFailed
		res.Error = res.Err.Error()
	default:
		res.Status = StepSucceeded
	}
	f.record(res)
	return res.Err
}

func (f *flow) skip(name, reason string) {
	f.record(StepResult{Name: name, Status: StepSkipped, Detail: reason})
}

func (f *flow) record(res StepResult) {
	f.steps = append(f.steps, res)
	metrics.FlowStepsTotal.WithLabelValues(f.name, res.Name, string(res.Status)).Inc()

	switch res.Status {
	case StepFailed:
		f.logger.Warn("step failed", "step", res.Name, "error", res.Err)
	case StepSkipped:
		f.logger.Info("step skipped", "step", res.Name, "reason", res.Detail)
	default:
		f.logger.Debug("step succeeded", "step", res.Name, "detail", res.Detail)
	}
}

// fail ends the flow on a critical step.
func (f *flow) fail(kind error, step string, err error) *FlowError {
	metrics.FlowsTotal.WithLabelValues(f.name, outcomeFailed).Inc()
	f.logger.Error("flow aborted", "step", step, "error", err)
	return &FlowError{Flow: f.name, Step: step, Kind: kind, Err: err}
}

func (f *flow) finish() Steps {
	outcome := outcomeOK
	if f.steps.Degraded() {
		outcome = outcomeDegraded
	}
	metrics.FlowsTotal.WithLabelValues(f.name, outcome).Inc()
	f.logger.Info("flow completed", "outcome", outcome, "steps", len(f.steps))
	return f.steps
}
