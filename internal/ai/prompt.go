package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/camuig/agentfi/internal/storage"
)

const systemPromptTemplate = `You are an expert DeFi trading analyst. Analyze market data and provide trading signals in STRICT JSON format.

Strategy: %s
Risk Level: %s

You MUST respond with ONLY valid JSON in this exact format:
{
  "signal": "BUY" | "SELL" | "HOLD",
  "confidence": 75,
  "reasoning": "Brief analysis explanation",
  "priceTarget": 1.15,
  "stopLoss": 0.95
}

Rules:
- signal: Must be exactly "BUY", "SELL", or "HOLD"
- confidence: Integer between 50-95
- reasoning: 1-2 sentences explaining the decision
- priceTarget: Decimal number (optional for HOLD)
- stopLoss: Decimal number (optional for HOLD)

Respond with ONLY the JSON object, no other text.`

func SystemPrompt(strategy storage.Strategy, risk storage.RiskLevel) string {
	return fmt.Sprintf(systemPromptTemplate, strategy, risk)
}

func UserPrompt(req *Request) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analyze %s for trading with $%s allocated. Current time: %s.",
		req.TokenPair, req.AllocatedAmount.String(), req.Now.UTC().Format(time.RFC3339)))
	if req.Quote != nil {
		sb.WriteString(fmt.Sprintf(" Current price: %s.", req.Quote.String()))
	}
	sb.WriteString(" Provide your trading recommendation as JSON only.")
	return sb.String()
}
