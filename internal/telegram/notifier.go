package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/storage"
)

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	bot      Sender
	chatID   int64
	enabled  bool
	explorer string
	logger   *logger.Logger
}

func NewNotifier(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return newWithSender(bot, cfg.Telegram.ChatID, cfg.Chain.ExplorerURL, log)
}

func newWithSender(bot Sender, chatID int64, explorer string, log *logger.Logger) *Notifier {
	return &Notifier{
		bot:      bot,
		chatID:   chatID,
		enabled:  true,
		explorer: strings.TrimRight(explorer, "/"),
		logger:   log,
	}
}

func (n *Notifier) NotifyAgentCreated(agent *storage.Agent, txHash string) {
	msg := fmt.Sprintf("🤖 *Agent created* %s\nStrategy: %s / %s risk\nAllocated: %s\nPairs: %s",
		agent.Name, agent.Strategy, agent.RiskLevel, agent.AllocatedAmount.String(),
		strings.Join(agent.TokenPairs, ", "))
	if txHash != "" {
		msg += "\nRegistered on-chain: " + n.txLink(txHash)
	} else {
		msg += "\n⚠️ Not yet registered on-chain"
	}
	n.send(msg)
}

func (n *Notifier) NotifySignal(agent *storage.Agent, signal *storage.TradingSignal, txHash string) {
	emoji := "⚪"
	switch signal.SignalType {
	case storage.SignalBuy:
		emoji = "🟢"
	case storage.SignalSell:
		emoji = "🔴"
	}
	msg := fmt.Sprintf("%s *%s* %s (%s)\nConfidence: %d%%\nPosition: %d%%",
		emoji, signal.SignalType, signal.TokenPair, agent.Name,
		signal.ConfidenceScore, signal.PositionSize)
	if signal.PriceTarget != nil {
		msg += "\nTarget: " + signal.PriceTarget.String()
	}
	if signal.StopLoss != nil {
		msg += "\nStop loss: " + signal.StopLoss.String()
	}
	if txHash != "" {
		msg += "\nExecuted: " + n.txLink(txHash)
	}
	n.send(msg)
}

func (n *Notifier) NotifyStatusChanged(agent *storage.Agent, from storage.AgentStatus, txHash string) {
	msg := fmt.Sprintf("🔄 *%s* %s → %s", agent.Name, from, agent.Status)
	if txHash != "" {
		msg += "\nSynced on-chain: " + n.txLink(txHash)
	} else {
		msg += "\n⚠️ On-chain status not updated"
	}
	n.send(msg)
}

func (n *Notifier) NotifyError(context string, err error) {
	msg := fmt.Sprintf("⚠️ *Error* [%s]\n%v", context, err)
	n.send(msg)
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func (n *Notifier) txLink(txHash string) string {
	if n.explorer == "" {
		return "`" + txHash + "`"
	}
	return fmt.Sprintf("[%s](%s/tx/%s)", shortHash(txHash), n.explorer, txHash)
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-6:]
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}
