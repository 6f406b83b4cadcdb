// Package agent implements C11: the bounded tool-calling chat loop that
// answers interactive questions against the watched project, plus the
// cooperative cancellation service for in-flight sessions.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/obbywatch/internal/llm"
)

const defaultMaxIterations = 5

const maxIterationsMessage = "I was unable to reach a final answer within the allotted tool-calling budget. " +
	"Please rephrase your question or ask something more specific."

// ProgressFunc receives orchestrator lifecycle events for a session.
// eventType is one of: assistant_thinking, tool_call, tool_result,
// assistant_response.
type ProgressFunc func(sessionID, eventType, message string, data any)

// Orchestrator runs one bounded tool-calling conversation per Run call.
//
// Grounded on the teacher's ReactCodeAgent.Run (react_code_agent.go): the
// same call-model / inspect-tool-calls / invoke-tools / append-results
// loop, generalized from a fixed codebase-analysis system prompt to an
// arbitrary interactive session and given an explicit iteration cap and
// progress-event hook instead of verbose stdout logging.
type Orchestrator struct {
	llmConfig    llm.Config
	registry     *Registry
	maxIters     int
	log          *slog.Logger
	modelFactory func(context.Context, llm.Config) (*llm.CloseableChatModel, error)
}

// New builds an Orchestrator bound to registry's tools.
func New(cfg llm.Config, registry *Registry) *Orchestrator {
	return &Orchestrator{
		llmConfig:    cfg,
		registry:     registry,
		maxIters:     defaultMaxIterations,
		log:          slog.With("component", "agent"),
		modelFactory: llm.NewCloseableChatModel,
	}
}

// SetMaxIterations overrides the default bound (1-20).
func (o *Orchestrator) SetMaxIterations(n int) {
	if n > 0 && n <= 20 {
		o.maxIters = n
	}
}

// Run executes the bounded tool-calling loop for one user turn, appending
// to and returning the full conversation so callers can persist it as
// ActionLog rows.
func (o *Orchestrator) Run(ctx context.Context, sessionID, systemPrompt string, history []*schema.Message, progress ProgressFunc) (string, []*schema.Message, error) {
	if progress == nil {
		progress = func(string, string, string, any) {}
	}

	chatModel, err := o.modelFactory(ctx, o.llmConfig)
	if err != nil {
		return "", history, fmt.Errorf("agent: create chat model: %w", err)
	}
	defer chatModel.Close()

	messages := make([]*schema.Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	messages = append(messages, history...)

	toolInfos := make([]*schema.ToolInfo, 0)
	for _, t := range o.registry.BaseTools() {
		info, err := t.Info(ctx)
		if err != nil {
			continue
		}
		toolInfos = append(toolInfos, info)
	}

	var finalText string
	for iter := 0; iter < o.maxIters; iter++ {
		select {
		case <-ctx.Done():
			return "", messages, ctx.Err()
		default:
		}

		progress(sessionID, "assistant_thinking", fmt.Sprintf("iteration %d/%d", iter+1, o.maxIters), nil)

		var resp *schema.Message
		if len(toolInfos) > 0 {
			resp, err = chatModel.Generate(ctx, messages, model.WithTools(toolInfos))
		} else {
			resp, err = chatModel.Generate(ctx, messages)
		}
		if err != nil {
			return "", messages, fmt.Errorf("agent: generate (iter %d): %w", iter+1, err)
		}
		messages = append(messages, resp)

		if len(resp.ToolCalls) == 0 {
			finalText = resp.Content
			progress(sessionID, "assistant_response", finalText, nil)
			break
		}

		for _, tc := range resp.ToolCalls {
			progress(sessionID, "tool_call", tc.Function.Name, map[string]any{
				"tool_call_id": tc.ID,
				"arguments":    tc.Function.Arguments,
			})

			result := o.registry.Invoke(ctx, tc.Function.Name, tc.Function.Arguments)

			content := result.Content
			if !result.Success {
				content = fmt.Sprintf("error: %s", result.Error)
			}
			messages = append(messages, schema.ToolMessage(content, tc.ID))

			progress(sessionID, "tool_result", content, map[string]any{
				"tool_call_id": tc.ID,
				"name":         tc.Function.Name,
				"success":      result.Success,
				"error":        result.Error,
			})
		}
	}

	if finalText == "" {
		finalText = maxIterationsMessage
		progress(sessionID, "assistant_response", finalText, map[string]any{"max_iterations_reached": true})
	}

	return finalText, messages, nil
}
