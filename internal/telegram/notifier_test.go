package telegram

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/storage"
)

type recorder struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		r.sent = append(r.sent, msg)
	}
	return tgbotapi.Message{}, r.err
}

func (r *recorder) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

func testAgent() *storage.Agent {
	return &storage.Agent{
		Name:            "Trend Rider",
		Strategy:        storage.StrategyTrend,
		RiskLevel:       storage.RiskMedium,
		AllocatedAmount: decimal.NewFromInt(1000),
		Status:          storage.StatusActive,
		TokenPairs:      datatypes.JSONSlice[string]{"MATIC/USDC", "ETH/USDC"},
	}
}

const txHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

func TestDisabledNotifierIsNoop(t *testing.T) {
	n := NewNotifier(&config.Config{}, logger.Nop())
	assert.False(t, n.enabled)
	n.NotifyError("anything", errors.New("boom"))
	n.NotifyAgentCreated(testAgent(), "")
}

func TestNotifyAgentCreated(t *testing.T) {
	rec := &recorder{}
	n := newWithSender(rec, 42, "https://amoy.polygonscan.com/", logger.Nop())

	n.NotifyAgentCreated(testAgent(), txHash)
	msg := rec.last(t)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	assert.Contains(t, msg.Text, "Trend Rider")
	assert.Contains(t, msg.Text, "MATIC/USDC, ETH/USDC")
	assert.Contains(t, msg.Text, "https://amoy.polygonscan.com/tx/"+txHash)

	n.NotifyAgentCreated(testAgent(), "")
	assert.Contains(t, rec.last(t).Text, "Not yet registered on-chain")
}

func TestNotifySignal(t *testing.T) {
	rec := &recorder{}
	n := newWithSender(rec, 42, "", logger.Nop())
	target := decimal.RequireFromString("1.05")
	signal := &storage.TradingSignal{
		SignalType:      storage.SignalSell,
		TokenPair:       "MATIC/USDC",
		ConfidenceScore: 77,
		PositionSize:    21,
		PriceTarget:     &target,
	}

	n.NotifySignal(testAgent(), signal, txHash)
	text := rec.last(t).Text
	assert.Contains(t, text, "🔴 *SELL* MATIC/USDC")
	assert.Contains(t, text, "Confidence: 77%")
	assert.Contains(t, text, "Target: 1.05")
	assert.Contains(t, text, "`"+txHash+"`")
}

func TestNotifyStatusChanged(t *testing.T) {
	rec := &recorder{}
	n := newWithSender(rec, 42, "", logger.Nop())

	n.NotifyStatusChanged(testAgent(), storage.StatusPaused, "")
	text := rec.last(t).Text
	assert.Contains(t, text, "paused → active")
	assert.Contains(t, text, "On-chain status not updated")
}

func TestSendErrorIsLogged(t *testing.T) {
	rec := &recorder{err: errors.New("chat not found")}
	n := newWithSender(rec, 42, "", logger.Nop())

	n.NotifyStatus("hello")
	assert.Len(t, rec.sent, 1)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0x5c504e…b22060", shortHash(txHash))
	assert.Equal(t, "0xabc", shortHash("0xabc"))
}
