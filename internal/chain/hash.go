package chain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/storage"
)

const tokenDecimals = 18

type configFingerprint struct {
	Name              string              `json:"name"`
	Strategy          storage.Strategy    `json:"strategy"`
	RiskLevel         storage.RiskLevel   `json:"riskLevel"`
	TokenPairs        []string            `json:"tokenPairs"`
	GasSettings       storage.GasSettings `json:"gasSettings"`
	SlippageTolerance string              `json:"slippageTolerance"`
}

// ConfigHash fingerprints the agent's mutable configuration. It detects
// tampering with the stored config; it is not a commitment scheme.
func ConfigHash(a *storage.Agent) (common.Hash, error) {
	pairs := []string(a.TokenPairs)
	if pairs == nil {
		pairs = []string{}
	}
	data, err := json.Marshal(configFingerprint{
		Name:              a.Name,
		Strategy:          a.Strategy,
		RiskLevel:         a.RiskLevel,
		TokenPairs:        pairs,
		GasSettings:       a.GasSettings.Data(),
		SlippageTolerance: a.SlippageTolerance.String(),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode agent config: %w", err)
	}
	return crypto.Keccak256Hash(data), nil
}

// AgentKey maps a record id to the registry's uint256 agent id.
func AgentKey(id string) (*big.Int, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("agent id %q: %w", id, err)
	}
	return new(big.Int).SetBytes(u[:]), nil
}

// SignalKey left-pads the signal's uuid into a bytes32.
func SignalKey(id string) ([32]byte, error) {
	var out [32]byte
	u, err := uuid.Parse(id)
	if err != nil {
		return out, fmt.Errorf("signal id %q: %w", id, err)
	}
	copy(out[32-len(u):], u[:])
	return out, nil
}

// ToWei scales a token amount to 18-decimal base units, truncating dust.
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(tokenDecimals).Truncate(0).BigInt()
}

func FromWei(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -tokenDecimals)
}

// GweiToWei parses a gwei decimal string.
func GweiToWei(gwei string) (*big.Int, error) {
	d, err := decimal.NewFromString(gwei)
	if err != nil {
		return nil, fmt.Errorf("parse gwei %q: %w", gwei, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative gwei %q", gwei)
	}
	return d.Shift(9).Truncate(0).BigInt(), nil
}
