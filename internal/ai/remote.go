package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
)

// RemoteClient asks an OpenAI-compatible chat endpoint for a signal.
// It never persists anything.
type RemoteClient struct {
	client *openai.Client
	cfg    *config.Config
	logger *logger.Logger
}

func NewRemoteClient(cfg *config.Config, log *logger.Logger) *RemoteClient {
	ocfg := openai.DefaultConfig(cfg.AI.APIKey)
	ocfg.BaseURL = cfg.AI.BaseURL

	return &RemoteClient{
		client: openai.NewClientWithConfig(ocfg),
		cfg:    cfg,
		logger: log,
	}
}

func (c *RemoteClient) Generate(ctx context.Context, req *Request) (*Signal, error) {
	if !c.cfg.AI.Enabled || c.cfg.AI.APIKey == "" {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.AITimeout())
	defer cancel()

	c.logger.Debug("sending signal request",
		"agent_id", req.AgentID,
		"pair", req.TokenPair,
		"model", c.cfg.AI.Model)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.AI.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req.Strategy, req.RiskLevel)},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req)},
		},
		Temperature: c.cfg.AI.Temperature,
		MaxTokens:   c.cfg.AI.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %v", ErrRemote, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: no content in response", ErrRemote)
	}

	raw := resp.Choices[0].Message.Content
	c.logger.Debug("AI raw response", "agent_id", req.AgentID, "content", raw)

	signal, err := ParseSignal(raw)
	if err != nil {
		return nil, err
	}
	signal.TokenPair = req.TokenPair
	signal.PositionSize = PositionSize(req.RiskLevel, signal.Confidence)
	signal.Source = SourceRemote
	return signal, nil
}
