package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Ping reads at most one agent id; used as the record store health probe.
func (r *Repository) Ping(ctx context.Context) error {
	var ids []string
	err := r.db.WithContext(ctx).Model(&Agent{}).Limit(1).Pluck("id", &ids).Error
	return classify("ping", err)
}

// Agents

// CreateAgent inserts a new agent and recomputes the owner's profile.
func (r *Repository) CreateAgent(ctx context.Context, agent *Agent) error {
	agent.WalletAddress = NormalizeAddress(agent.WalletAddress)
	if agent.Status == "" {
		agent.Status = StatusCreated
	}
	if err := validateAgent(agent); err != nil {
		return err
	}
	agent.CurrentBalance = agent.AllocatedAmount
	agent.TotalPnL = decimal.Zero
	agent.TotalTrades = 0
	agent.WinRate = decimal.Zero

	// Agent row and profile totals commit or roll back together.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(agent).Error; err != nil {
			return classify("create agent", err)
		}
		return upsertProfile(tx, agent.WalletAddress)
	})
}

func (r *Repository) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var agent Agent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error; err != nil {
		return nil, classify("get agent", err)
	}
	return &agent, nil
}

func (r *Repository) ListAgentsByWallet(ctx context.Context, wallet string) ([]Agent, error) {
	var agents []Agent
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", NormalizeAddress(wallet)).
		Order("created_at DESC").
		Find(&agents).Error
	return agents, classify("list agents", err)
}

func (r *Repository) ListAgentsByStatus(ctx context.Context, status AgentStatus) ([]Agent, error) {
	var agents []Agent
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at").Find(&agents).Error
	return agents, classify("list agents", err)
}

// ListUnregisteredAgents returns agents whose on-chain registration never went through.
// An empty wallet lists across all owners.
func (r *Repository) ListUnregisteredAgents(ctx context.Context, wallet string) ([]Agent, error) {
	q := r.db.WithContext(ctx).Where("registration_tx_hash IS NULL")
	if wallet != "" {
		q = q.Where("wallet_address = ?", NormalizeAddress(wallet))
	}
	var agents []Agent
	err := q.Order("created_at").Find(&agents).Error
	return agents, classify("list unregistered agents", err)
}

func (r *Repository) UpdateAgentStatus(ctx context.Context, id string, status AgentStatus) (*Agent, error) {
	if !status.Valid() {
		return nil, invalid("update agent status", "unknown status %q", status)
	}
	return r.updateAgent(ctx, "update agent status", id, map[string]any{"status": status})
}

// UpdateAgentBalance sets the balance and PnL and refreshes the owner's totals.
func (r *Repository) UpdateAgentBalance(ctx context.Context, id string, balance, pnl decimal.Decimal) (*Agent, error) {
	const op = "update agent balance"
	if balance.IsNegative() {
		return nil, invalid(op, "balance must not be negative")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var agent Agent
		if err := tx.Select("wallet_address").Where("id = ?", id).First(&agent).Error; err != nil {
			return classify(op, err)
		}
		err := tx.Model(&Agent{}).Where("id = ?", id).Updates(map[string]any{
			"current_balance": balance,
			"total_pnl":       pnl,
			"updated_at":      time.Now().UTC(),
		}).Error
		if err != nil {
			return classify(op, err)
		}
		return upsertProfile(tx, agent.WalletAddress)
	})
	if err != nil {
		return nil, err
	}
	return r.GetAgent(ctx, id)
}

func (r *Repository) SetAgentRegistration(ctx context.Context, id, txHash string) (*Agent, error) {
	return r.updateAgent(ctx, "set agent registration", id, map[string]any{"registration_tx_hash": txHash})
}

func (r *Repository) TouchLastSignal(ctx context.Context, id string, at time.Time) error {
	_, err := r.updateAgent(ctx, "touch last signal", id, map[string]any{"last_signal_at": at})
	return err
}

func (r *Repository) IncrementTrades(ctx context.Context, id string) (*Agent, error) {
	return r.updateAgent(ctx, "increment trades", id, map[string]any{
		"total_trades": gorm.Expr("total_trades + ?", 1),
	})
}

func (r *Repository) updateAgent(ctx context.Context, op, id string, fields map[string]any) (*Agent, error) {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Agent{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, classify(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &StoreError{Op: op, Kind: ErrNotFound}
	}
	return r.GetAgent(ctx, id)
}

// DeleteAgent removes the agent with its signals and refreshes the owner's totals.
func (r *Repository) DeleteAgent(ctx context.Context, id string) error {
	const op = "delete agent"
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var agent Agent
		if err := tx.Select("wallet_address").Where("id = ?", id).First(&agent).Error; err != nil {
			return classify(op, err)
		}
		if err := tx.Where("agent_id = ?", id).Delete(&TradingSignal{}).Error; err != nil {
			return classify(op, err)
		}
		if err := tx.Where("id = ?", id).Delete(&Agent{}).Error; err != nil {
			return classify(op, err)
		}
		return upsertProfile(tx, agent.WalletAddress)
	})
}

// Signals

func (r *Repository) CreateSignal(ctx context.Context, signal *TradingSignal) error {
	if err := validateSignal(signal); err != nil {
		return err
	}
	if _, err := r.GetAgent(ctx, signal.AgentID); err != nil {
		return err
	}
	signal.Executed = false
	return classify("create signal", r.db.WithContext(ctx).Create(signal).Error)
}

func (r *Repository) GetSignal(ctx context.Context, id string) (*TradingSignal, error) {
	var signal TradingSignal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&signal).Error; err != nil {
		return nil, classify("get signal", err)
	}
	return &signal, nil
}

func (r *Repository) ListSignalsByAgent(ctx context.Context, agentID string, limit int) ([]TradingSignal, error) {
	var signals []TradingSignal
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&signals).Error
	return signals, classify("list signals", err)
}

// RecentSignal is a signal joined with the name of the agent that produced it.
type RecentSignal struct {
	TradingSignal
	AgentName string `json:"agent_name"`
}

func (r *Repository) ListRecentSignalsByWallet(ctx context.Context, wallet string, limit int) ([]RecentSignal, error) {
	var signals []RecentSignal
	err := r.db.WithContext(ctx).
		Table("trading_signals").
		Select("trading_signals.*, agents.name AS agent_name").
		Joins("JOIN agents ON agents.id = trading_signals.agent_id").
		Where("agents.wallet_address = ?", NormalizeAddress(wallet)).
		Order("trading_signals.created_at DESC").
		Limit(limit).
		Scan(&signals).Error
	return signals, classify("list recent signals", err)
}

// Execution records the outcome of submitting a signal to the ledger.
type Execution struct {
	At      time.Time
	Price   decimal.Decimal
	GasUsed uint64
	TxHash  string
}

// MarkSignalExecuted writes the four execution fields in one guarded update.
// applied is false when the signal was already executed; the stored row is
// returned unchanged in that case.
func (r *Repository) MarkSignalExecuted(ctx context.Context, id string, exec Execution) (signal *TradingSignal, applied bool, err error) {
	res := r.db.WithContext(ctx).Model(&TradingSignal{}).
		Where("id = ? AND executed = ?", id, false).
		Updates(map[string]any{
			"executed":         true,
			"executed_at":      exec.At.UTC(),
			"execution_price":  exec.Price,
			"gas_used":         exec.GasUsed,
			"transaction_hash": exec.TxHash,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, false, classify("mark signal executed", res.Error)
	}

	signal, err = r.GetSignal(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return signal, res.RowsAffected > 0, nil
}

// SignalAccuracy counts executed signals whose execution price beat the target.
func (r *Repository) SignalAccuracy(ctx context.Context, agentID string) (*SignalAccuracy, error) {
	var signals []TradingSignal
	err := r.db.WithContext(ctx).
		Select("executed", "execution_price", "price_target", "signal_type").
		Where("agent_id = ?", agentID).
		Find(&signals).Error
	if err != nil {
		return nil, classify("signal accuracy", err)
	}

	acc := &SignalAccuracy{TotalSignals: len(signals)}
	for _, s := range signals {
		if !s.Executed {
			continue
		}
		acc.ExecutedSignals++
		if s.ExecutionPrice == nil || s.PriceTarget == nil {
			continue
		}
		switch s.SignalType {
		case SignalBuy:
			if s.ExecutionPrice.LessThanOrEqual(*s.PriceTarget) {
				acc.ProfitableSignals++
			}
		case SignalSell:
			if s.ExecutionPrice.GreaterThanOrEqual(*s.PriceTarget) {
				acc.ProfitableSignals++
			}
		}
	}
	if acc.ExecutedSignals > 0 {
		acc.Accuracy = float64(acc.ProfitableSignals) / float64(acc.ExecutedSignals) * 100
	}
	return acc, nil
}

// Profiles

// RecomputeProfile derives the wallet totals from its current agents and upserts them.
func (r *Repository) RecomputeProfile(ctx context.Context, wallet string) (*UserProfile, error) {
	wallet = NormalizeAddress(wallet)
	if err := upsertProfile(r.db.WithContext(ctx), wallet); err != nil {
		return nil, err
	}
	return r.GetProfile(ctx, wallet)
}

func upsertProfile(tx *gorm.DB, wallet string) error {
	const op = "recompute profile"

	var agents []Agent
	err := tx.Select("allocated_amount", "total_pnl").
		Where("wallet_address = ?", wallet).
		Find(&agents).Error
	if err != nil {
		return classify(op, err)
	}

	profile := &UserProfile{
		WalletAddress: wallet,
		TotalAgents:   len(agents),
		TotalBalance:  decimal.Zero,
		TotalPnL:      decimal.Zero,
	}
	for _, a := range agents {
		profile.TotalBalance = profile.TotalBalance.Add(a.AllocatedAmount)
		profile.TotalPnL = profile.TotalPnL.Add(a.TotalPnL)
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_agents", "total_balance", "total_pnl", "updated_at"}),
	}).Create(profile).Error
	return classify(op, err)
}

func (r *Repository) GetProfile(ctx context.Context, wallet string) (*UserProfile, error) {
	var profile UserProfile
	err := r.db.WithContext(ctx).Where("wallet_address = ?", NormalizeAddress(wallet)).First(&profile).Error
	if err != nil {
		return nil, classify("get profile", err)
	}
	return &profile, nil
}

func (r *Repository) UpdateProfilePreferences(ctx context.Context, wallet string, prefs map[string]any, risk *RiskLevel) (*UserProfile, error) {
	const op = "update profile preferences"
	if risk != nil && !risk.Valid() {
		return nil, invalid(op, "unknown risk level %q", *risk)
	}
	var preferred any
	if risk != nil {
		preferred = string(*risk)
	}
	wallet = NormalizeAddress(wallet)
	res := r.db.WithContext(ctx).Model(&UserProfile{}).
		Where("wallet_address = ?", wallet).
		Updates(map[string]any{
			"notification_preferences": datatypes.JSONMap(prefs),
			"preferred_risk_level":     preferred,
			"updated_at":               time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, classify(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &StoreError{Op: op, Kind: ErrNotFound}
	}
	return r.GetProfile(ctx, wallet)
}
