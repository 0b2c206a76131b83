package orchestrator

import (
	"context"
	"fmt"

	"github.com/camuig/agentfi/internal/storage"
)

const flowUpdateStatus = "update_status"

type UpdateStatusResult struct {
	Agent     *storage.Agent `json:"agent"`
	DBSuccess bool           `json:"db_success"`
	// TxHash is empty when the on-chain status was not updated.
	TxHash string `json:"tx_hash,omitempty"`
	Steps  Steps  `json:"steps"`
}

func (r *UpdateStatusResult) Degraded() bool {
	return r.Steps.Degraded()
}

// UpdateStatus moves the agent to status in the record store, then mirrors
// the change on-chain on behalf of wallet (the owner when empty).
func (o *Orchestrator) UpdateStatus(ctx context.Context, agentID string, status storage.AgentStatus, wallet string) (*UpdateStatusResult, error) {
	f := newFlow(flowUpdateStatus, o.logger, "agent_id", agentID, "status", status)
	res := &UpdateStatusResult{}

	var current *storage.Agent
	err := f.run(StepValidate, func() (string, error) {
		var err error
		current, err = o.store.GetAgent(ctx, agentID)
		if err != nil {
			return "", err
		}
		if err := checkTransition(current.Status, status); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s -> %s", current.Status, status), nil
	})
	if err != nil {
		return nil, f.fail(ErrStatusUpdateFailed, StepValidate, err)
	}
	from := current.Status

	err = f.run(StepDBUpdate, func() (string, error) {
		var err error
		res.Agent, err = o.store.UpdateAgentStatus(ctx, agentID, status)
		return "", err
	})
	if err != nil {
		o.notifier.NotifyError("update status "+agentID, err)
		return nil, f.fail(ErrStatusUpdateFailed, StepDBUpdate, err)
	}
	res.DBSuccess = true

	if wallet == "" {
		wallet = res.Agent.WalletAddress
	}
	if o.ledger == nil {
		f.skip(StepLedgerUpdate, ErrLedgerNotConfigured.Error())
	} else {
		_ = f.run(StepLedgerUpdate, func() (string, error) {
			sub, err := o.ledger.SubmitUpdateStatus(ctx, agentID, status, wallet)
			if err != nil {
				return "", err
			}
			res.TxHash = sub.TxHash
			return sub.TxHash, nil
		})
	}

	res.Steps = f.finish()
	o.notifier.NotifyStatusChanged(res.Agent, from, res.TxHash)
	return res, nil
}
