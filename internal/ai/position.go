package ai

import (
	"math"

	"github.com/camuig/agentfi/internal/storage"
)

var baseSizes = map[storage.RiskLevel]float64{
	storage.RiskLow:    8,
	storage.RiskMedium: 20,
	storage.RiskHigh:   35,
}

// PositionSize returns the percent of the allocation to commit for a signal.
// The risk base is scaled by confidence/75, clamped to [0.5, 1.2].
func PositionSize(risk storage.RiskLevel, confidence int) int {
	base, ok := baseSizes[risk]
	if !ok {
		base = baseSizes[storage.RiskMedium]
	}
	mult := math.Max(0.5, math.Min(1.2, float64(confidence)/75))
	size := int(math.Round(base * mult))
	return max(0, min(100, size))
}

func clampConfidence(c int) int {
	return max(0, min(100, c))
}
