package ai

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/storage"
)

var (
	ErrParse         = errors.New("ai: unparseable response")
	ErrRemote        = errors.New("ai: remote endpoint failed")
	ErrNotConfigured = errors.New("ai: remote endpoint not configured")
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Request is everything a generator needs to produce a signal for one pair.
type Request struct {
	AgentID         string
	TokenPair       string
	Strategy        storage.Strategy
	RiskLevel       storage.RiskLevel
	AllocatedAmount decimal.Decimal
	Quote           *decimal.Decimal // current pair price, when known
	Now             time.Time
}

// Signal is an unpersisted recommendation.
type Signal struct {
	Type         storage.SignalType
	Confidence   int
	Reasoning    string
	PriceTarget  *decimal.Decimal
	StopLoss     *decimal.Decimal
	PositionSize int
	TokenPair    string
	Source       string
}

// Record converts the signal into a row owned by agentID.
func (s *Signal) Record(agentID string) *storage.TradingSignal {
	return &storage.TradingSignal{
		AgentID:         agentID,
		SignalType:      s.Type,
		TokenPair:       s.TokenPair,
		ConfidenceScore: s.Confidence,
		Reasoning:       s.Reasoning,
		PriceTarget:     s.PriceTarget,
		StopLoss:        s.StopLoss,
		PositionSize:    s.PositionSize,
		Source:          s.Source,
	}
}

type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

type Volatility string

const (
	VolatilityLow    Volatility = "low"
	VolatilityMedium Volatility = "medium"
	VolatilityHigh   Volatility = "high"
)

type MarketAnalysis struct {
	Sentiment       Sentiment  `json:"market_sentiment"`
	Volatility      Volatility `json:"volatility"`
	Recommendations []string   `json:"recommendations"`
}
