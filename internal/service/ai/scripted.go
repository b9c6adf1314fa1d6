package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ScriptedModel is a chat model double for tests. It serves queued replies
// in order, or delegates to Respond when set, and records every prompt it
// receives.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []string
	next    int

	// Respond, when non-nil, overrides the reply queue.
	Respond func(input []*schema.Message) (string, error)

	// Calls holds the prompts seen so far, in order.
	Calls [][]*schema.Message
}

// NewScriptedModel queues the given replies.
func NewScriptedModel(replies ...string) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]*schema.Message, len(input))
	copy(copied, input)
	m.Calls = append(m.Calls, copied)

	if m.Respond != nil {
		content, err := m.Respond(input)
		if err != nil {
			return nil, err
		}
		return schema.AssistantMessage(content, nil), nil
	}
	if m.next >= len(m.replies) {
		return nil, fmt.Errorf("scripted model exhausted after %d replies", len(m.replies))
	}
	reply := m.replies[m.next]
	m.next++
	return schema.AssistantMessage(reply, nil), nil
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ScriptedModel) BindTools(tools []*schema.ToolInfo) error { return nil }
