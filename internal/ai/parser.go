package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/storage"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes reasoning-model think blocks from the response.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

type rawSignal struct {
	Signal      *string          `json:"signal"`
	Confidence  *float64         `json:"confidence"`
	Reasoning   string           `json:"reasoning"`
	PriceTarget *decimal.Decimal `json:"priceTarget"`
	StopLoss    *decimal.Decimal `json:"stopLoss"`
}

// ParseSignal decodes a completion into a signal. Position size, pair and
// source are left for the caller to fill.
// Handles: bare JSON object, markdown code fences, think tags, prose around the object.
func ParseSignal(text string) (*Signal, error) {
	cleaned := StripThinkTags(text)

	// Remove markdown code fences
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw rawSignal
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		// Try extracting the JSON object from the text
		jsonStart := strings.Index(cleaned, "{")
		jsonEnd := strings.LastIndex(cleaned, "}")
		if jsonStart < 0 || jsonEnd <= jsonStart {
			return nil, fmt.Errorf("%w: %v: %.200s", ErrParse, err, cleaned)
		}
		raw = rawSignal{}
		if err := json.Unmarshal([]byte(cleaned[jsonStart:jsonEnd+1]), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v: %.200s", ErrParse, err, cleaned)
		}
	}
	if raw.Signal == nil {
		return nil, fmt.Errorf("%w: missing signal", ErrParse)
	}
	if raw.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrParse)
	}

	typ := storage.SignalType(strings.ToUpper(strings.TrimSpace(*raw.Signal)))
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown signal %q", ErrParse, *raw.Signal)
	}

	return &Signal{
		Type:        typ,
		Confidence:  clampConfidence(int(math.Round(*raw.Confidence))),
		Reasoning:   raw.Reasoning,
		PriceTarget: raw.PriceTarget,
		StopLoss:    raw.StopLoss,
	}, nil
}
