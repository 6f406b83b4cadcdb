package agent

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/obbywatch/internal/llm"
)

// scriptedChatModel returns one scripted *schema.Message per Generate call,
// in order, so tests can drive the orchestrator's loop deterministically
// without a real provider.
type scriptedChatModel struct {
	responses []*schema.Message
	calls     int
}

func (m *scriptedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if m.calls >= len(m.responses) {
		return schema.AssistantMessage("", nil), nil
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func newScriptedOrchestrator(responses []*schema.Message, registry *Registry) *Orchestrator {
	o := New(llm.Config{Provider: llm.ProviderOpenAI, Model: "test"}, registry)
	fake := &scriptedChatModel{responses: responses}
	o.modelFactory = func(ctx context.Context, cfg llm.Config) (*llm.CloseableChatModel, error) {
		return &llm.CloseableChatModel{BaseChatModel: fake}, nil
	}
	return o
}

func TestRunReturnsImmediatelyWhenNoToolCalls(t *testing.T) {
	o := newScriptedOrchestrator([]*schema.Message{
		schema.AssistantMessage("final answer", nil),
	}, NewRegistry())

	var events []string
	final, _, err := o.Run(context.Background(), "sess", "you are helpful", nil, func(sessionID, eventType, message string, data any) {
		events = append(events, eventType)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != "final answer" {
		t.Errorf("unexpected final text: %q", final)
	}
	if events[len(events)-1] != "assistant_response" {
		t.Errorf("expected final event to be assistant_response, got %v", events)
	}
}

func TestRunInvokesToolThenReturnsFinalAnswer(t *testing.T) {
	toolCallMsg := schema.AssistantMessage("", []schema.ToolCall{
		{ID: "call-1", Function: schema.FunctionCall{Name: "recent_changes", Arguments: `{"limit":5}`}},
	})
	finalMsg := schema.AssistantMessage("done", nil)

	st := newTestStore(t)
	registry := NewRegistry(NewHistoryTool(st))
	o := newScriptedOrchestrator([]*schema.Message{toolCallMsg, finalMsg}, registry)

	var sawToolCall, sawToolResult bool
	final, conversation, err := o.Run(context.Background(), "sess", "", nil, func(sessionID, eventType, message string, data any) {
		switch eventType {
		case "tool_call":
			sawToolCall = true
		case "tool_result":
			sawToolResult = true
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != "done" {
		t.Errorf("expected final answer 'done', got %q", final)
	}
	if !sawToolCall || !sawToolResult {
		t.Errorf("expected both tool_call and tool_result events, got toolCall=%v toolResult=%v", sawToolCall, sawToolResult)
	}
	if len(conversation) < 3 {
		t.Errorf("expected conversation to include assistant/tool/assistant turns, got %d messages", len(conversation))
	}
}

func TestRunHitsMaxIterationsMessage(t *testing.T) {
	toolCallMsg := schema.AssistantMessage("", []schema.ToolCall{
		{ID: "call-1", Function: schema.FunctionCall{Name: "recent_changes", Arguments: `{}`}},
	})
	st := newTestStore(t)
	registry := NewRegistry(NewHistoryTool(st))

	responses := make([]*schema.Message, 0, defaultMaxIterations)
	for i := 0; i < defaultMaxIterations; i++ {
		responses = append(responses, toolCallMsg)
	}
	o := newScriptedOrchestrator(responses, registry)

	final, _, err := o.Run(context.Background(), "sess", "", nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != maxIterationsMessage {
		t.Errorf("expected max iterations message, got %q", final)
	}
}
