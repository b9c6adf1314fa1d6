package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
)

// historyLimit caps how many prior turns are replayed into the model.
const historyLimit = 50

// Request is one generation call. History carries only user and assistant
// turns; system framing goes through System.
type Request struct {
	System      string
	History     []session.Message
	Query       string
	Temperature float32
}

// Client wraps the compiled prompt+model chain shared by the interview,
// observer, and analysis engines.
type Client struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	log       *zap.Logger
}

// NewClient compiles the chat chain over the given model.
func NewClient(ctx context.Context, chatModel model.ChatModel, log *zap.Logger) (*Client, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &Client{chatModel: chatModel, chain: runnable, log: log}, nil
}

// Generate runs one request through the chain and returns the reply text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system":  req.System,
		"history": buildHistoryMessages(req.History),
		"query":   req.Query,
	}

	opts := []compose.Option{}
	if req.Temperature > 0 {
		opts = append(opts, compose.WithChatModelOption(model.WithTemperature(req.Temperature)))
	}

	response, err := c.chain.Invoke(ctx, input, opts...)
	if err != nil {
		return "", fmt.Errorf("run chat chain: %w", err)
	}
	c.log.Debug("model reply generated", zap.Int("length", len(response.Content)))
	return response.Content, nil
}

// Stream runs one request and returns the streaming reader.
func (c *Client) Stream(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error) {
	input := map[string]any{
		"system":  req.System,
		"history": buildHistoryMessages(req.History),
		"query":   req.Query,
	}

	opts := []compose.Option{}
	if req.Temperature > 0 {
		opts = append(opts, compose.WithChatModelOption(model.WithTemperature(req.Temperature)))
	}

	stream, err := c.chain.Stream(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("stream chat chain: %w", err)
	}
	return stream, nil
}

// buildHistoryMessages converts stored turns into chain history. System and
// hidden researcher messages never reach the model as history.
func buildHistoryMessages(messages []session.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		if !msg.ParticipantVisible() {
			continue
		}
		switch msg.Role {
		case session.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case session.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
