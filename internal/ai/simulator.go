package ai

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/storage"
)

// Simulator is the local fallback generator. Signals are randomized but
// shaped by strategy; a fixed seed makes a run reproducible.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator seeds from the clock when seed is zero.
func NewSimulator(seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSimulatorWithRand(rand.New(rand.NewSource(seed)))
}

func NewSimulatorWithRand(rng *rand.Rand) *Simulator {
	return &Simulator{rng: rng}
}

// band returns a price multiple in [lo, lo+width) rounded to 4 places.
func (s *Simulator) band(lo, width float64) *decimal.Decimal {
	d := decimal.NewFromFloat(lo + s.rng.Float64()*width).Round(4)
	return &d
}

func (s *Simulator) Generate(req *Request) *Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := req.TokenPair
	sig := &Signal{TokenPair: pair, Source: SourceLocal}

	switch req.Strategy {
	case storage.StrategyTrend:
		sig.Type = storage.SignalHold
		if s.rng.Float64() < 0.6 {
			sig.Type = storage.SignalBuy
		}
		sig.Confidence = s.rng.Intn(25) + 65
		if sig.Type == storage.SignalBuy {
			sig.Reasoning = fmt.Sprintf("Trend analysis for %s shows strong upward momentum with increasing volume. RSI indicates oversold conditions with potential reversal.", pair)
			sig.PriceTarget = s.band(1.12, 0.08)
			sig.StopLoss = s.band(0.94, 0.04)
		} else {
			sig.Reasoning = fmt.Sprintf("Trend analysis for %s shows consolidation phase, waiting for clearer direction. RSI indicates neutral territory.", pair)
		}

	case storage.StrategyMomentum:
		sig.Type = storage.SignalSell
		if s.rng.Float64() < 0.5 {
			sig.Type = storage.SignalBuy
		}
		sig.Confidence = s.rng.Intn(20) + 70
		if sig.Type == storage.SignalBuy {
			sig.Reasoning = fmt.Sprintf("Momentum indicators for %s suggest strong buying pressure with breakout potential. MACD shows bullish crossover.", pair)
			sig.PriceTarget = s.band(1.08, 0.12)
			sig.StopLoss = s.band(0.92, 0.06)
		} else {
			sig.Reasoning = fmt.Sprintf("Momentum indicators for %s suggest overbought conditions with momentum divergence. MACD shows bearish divergence.", pair)
			sig.PriceTarget = s.band(0.88, 0.08)
			sig.StopLoss = s.band(1.04, 0.08)
		}

	case storage.StrategyMeanReversion:
		switch {
		case s.rng.Float64() < 0.4:
			sig.Type = storage.SignalHold
		case s.rng.Float64() < 0.5:
			sig.Type = storage.SignalBuy
		default:
			sig.Type = storage.SignalSell
		}
		sig.Confidence = s.rng.Intn(30) + 55
		switch sig.Type {
		case storage.SignalBuy:
			sig.Reasoning = fmt.Sprintf("Mean reversion analysis for %s indicates oversold conditions with high probability of bounce. Bollinger Bands show price touching lower band.", pair)
			sig.PriceTarget = s.band(1.05, 0.08)
			sig.StopLoss = s.band(0.96, 0.03)
		case storage.SignalSell:
			sig.Reasoning = fmt.Sprintf("Mean reversion analysis for %s indicates overbought levels suggesting pullback. Bollinger Bands show price at upper band.", pair)
			sig.PriceTarget = s.band(0.92, 0.06)
			sig.StopLoss = s.band(1.04, 0.04)
		default:
			sig.Reasoning = fmt.Sprintf("Mean reversion analysis for %s indicates price near fair value, no clear reversion signal. Bollinger Bands show price in middle range.", pair)
		}

	default:
		sig.Type = storage.SignalHold
		sig.Confidence = 50
		sig.Reasoning = "Unknown strategy, defaulting to HOLD"
	}

	sig.PositionSize = PositionSize(req.RiskLevel, sig.Confidence)
	return sig
}

var (
	sentiments   = []Sentiment{SentimentBullish, SentimentBearish, SentimentNeutral}
	volatilities = []Volatility{VolatilityLow, VolatilityMedium, VolatilityHigh}
)

// AnalyzeMarket produces a coarse market summary for the given pairs.
func (s *Simulator) AnalyzeMarket(pairs []string) *MarketAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	sentiment := sentiments[s.rng.Intn(len(sentiments))]
	volatility := volatilities[s.rng.Intn(len(volatilities))]

	sizing := "maintain standard risk management"
	switch volatility {
	case VolatilityHigh:
		sizing = "consider reducing position sizes"
	case VolatilityLow:
		sizing = "good conditions for larger positions"
	}

	focus := "Single pair focus"
	if len(pairs) > 1 {
		focus = "Diversification across selected pairs"
	}
	outlook := "provides balanced exposure"
	switch sentiment {
	case SentimentBullish:
		outlook = "shows positive correlation"
	case SentimentBearish:
		outlook = "may increase downside risk"
	}

	gas := "moderate"
	if s.rng.Float64() < 0.5 {
		gas = "elevated"
	}

	return &MarketAnalysis{
		Sentiment:  sentiment,
		Volatility: volatility,
		Recommendations: []string{
			fmt.Sprintf("Current market sentiment appears %s across major DeFi tokens", sentiment),
			fmt.Sprintf("Volatility is %s, %s", volatility, sizing),
			fmt.Sprintf("%s %s", focus, outlook),
			fmt.Sprintf("Gas fees are %s, factor into trade sizing decisions", gas),
		},
	}
}
