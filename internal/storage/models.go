package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Strategy string

const (
	StrategyTrend         Strategy = "trend"
	StrategyMomentum      Strategy = "momentum"
	StrategyMeanReversion Strategy = "mean-reversion"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type AgentStatus string

const (
	StatusCreated AgentStatus = "created"
	StatusActive  AgentStatus = "active"
	StatusPaused  AgentStatus = "paused"
	StatusStopped AgentStatus = "stopped"
)

type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyTrend, StrategyMomentum, StrategyMeanReversion:
		return true
	}
	return false
}

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

func (s AgentStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusActive, StatusPaused, StatusStopped:
		return true
	}
	return false
}

func (s SignalType) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold:
		return true
	}
	return false
}

// GasSettings are gwei amounts kept as decimal strings.
type GasSettings struct {
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
}

func DefaultGasSettings() GasSettings {
	return GasSettings{MaxFeePerGas: "30", MaxPriorityFeePerGas: "2"}
}

func DefaultTokenPairs() []string {
	return []string{"MATIC/USDC", "ETH/USDC"}
}

// DefaultSlippageTolerance is a percent.
var DefaultSlippageTolerance = decimal.RequireFromString("0.5")

type Agent struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	WalletAddress     string                          `gorm:"index;not null" json:"wallet_address"`
	Name              string                          `gorm:"not null" json:"name"`
	Strategy          Strategy                        `gorm:"not null" json:"strategy"`
	RiskLevel         RiskLevel                       `gorm:"not null" json:"risk_level"`
	AllocatedAmount   decimal.Decimal                 `gorm:"type:numeric;not null" json:"allocated_amount"`
	Status            AgentStatus                     `gorm:"index;not null;default:'created'" json:"status"`
	TokenPairs        datatypes.JSONSlice[string]     `json:"token_pairs"`
	GasSettings       datatypes.JSONType[GasSettings] `json:"gas_settings"`
	SlippageTolerance decimal.Decimal                 `gorm:"type:numeric;not null" json:"slippage_tolerance"`

	CurrentBalance decimal.Decimal `gorm:"type:numeric;not null" json:"current_balance"`
	TotalPnL       decimal.Decimal `gorm:"column:total_pnl;type:numeric;not null" json:"total_pnl"`
	TotalTrades    int             `gorm:"not null;default:0" json:"total_trades"`
	WinRate        decimal.Decimal `gorm:"type:numeric;not null" json:"win_rate"`
	LastSignalAt   *time.Time      `json:"last_signal_at"`

	RegistrationTxHash *string `json:"registration_tx_hash"`
}

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// PrimaryPair is the first configured token pair, or fallback when none is set.
func (a *Agent) PrimaryPair(fallback string) string {
	if len(a.TokenPairs) > 0 && a.TokenPairs[0] != "" {
		return a.TokenPairs[0]
	}
	return fallback
}

type TradingSignal struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AgentID         string           `gorm:"index;not null;type:varchar(36)" json:"agent_id"`
	SignalType      SignalType       `gorm:"not null" json:"signal_type"`
	TokenPair       string           `gorm:"not null" json:"token_pair"`
	ConfidenceScore int              `gorm:"not null" json:"confidence_score"`
	Reasoning       string           `gorm:"type:text" json:"reasoning"`
	PriceTarget     *decimal.Decimal `gorm:"type:numeric" json:"price_target"`
	StopLoss        *decimal.Decimal `gorm:"type:numeric" json:"stop_loss"`
	PositionSize    int              `gorm:"not null" json:"position_size"`
	Source          string           `json:"source"` // remote or local

	Executed        bool             `gorm:"not null;default:false" json:"executed"`
	ExecutedAt      *time.Time       `json:"executed_at"`
	ExecutionPrice  *decimal.Decimal `gorm:"type:numeric" json:"execution_price"`
	GasUsed         *uint64          `json:"gas_used"`
	TransactionHash *string          `json:"transaction_hash"`
}

func (s *TradingSignal) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type UserProfile struct {
	WalletAddress string    `gorm:"primaryKey" json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	TotalAgents             int               `gorm:"not null;default:0" json:"total_agents"`
	TotalBalance            decimal.Decimal   `gorm:"type:numeric;not null" json:"total_balance"`
	TotalPnL                decimal.Decimal   `gorm:"column:total_pnl;type:numeric;not null" json:"total_pnl"`
	NotificationPreferences datatypes.JSONMap `json:"notification_preferences"`
	PreferredRiskLevel      *RiskLevel        `json:"preferred_risk_level"`
}

// SignalAccuracy summarizes how an agent's executed signals fared against their targets.
type SignalAccuracy struct {
	TotalSignals      int     `json:"total_signals"`
	ExecutedSignals   int     `json:"executed_signals"`
	ProfitableSignals int     `json:"profitable_signals"`
	Accuracy          float64 `json:"accuracy"`
}
