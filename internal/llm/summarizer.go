package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Summarizer is the capability C7 (BatchSummarizer) and C11 (AgentOrchestrator)
// consume. Implementations must retry transient failures with exponential
// backoff and return an error string (prefixed "Error") instead of a Go error
// on final failure, so callers can fall back without special-casing a type.
type Summarizer interface {
	SummarizeDiffs(ctx context.Context, diffContext, style string, length, maxTokens int) string
	GenerateProposedQuestions(ctx context.Context, context string) string
	GenerateSessionTitle(ctx context.Context, context string) string
	GetCompletion(ctx context.Context, prompt string, opts CompletionOptions) string
}

// CompletionOptions customizes a raw completion request.
type CompletionOptions struct {
	System      string
	MaxTokens   int
	Temperature float32
}

// ChatSummarizer implements Summarizer over a single configured provider/model.
type ChatSummarizer struct {
	cfg     Config
	log     *slog.Logger
	retries int
	backoff time.Duration
}

// NewChatSummarizer builds a Summarizer that talks to cfg.Provider/cfg.Model.
func NewChatSummarizer(cfg Config) *ChatSummarizer {
	return &ChatSummarizer{
		cfg:     cfg,
		log:     slog.With("component", "summarizer", "provider", cfg.Provider),
		retries: 3,
		backoff: 500 * time.Millisecond,
	}
}

// SummarizeDiffs renders a batch of content diffs into a markdown summary at
// the requested style and length.
func (s *ChatSummarizer) SummarizeDiffs(ctx context.Context, diffContext, style string, length, maxTokens int) string {
	prompt := fmt.Sprintf(
		"Summarize the following file changes in %s style, target length %d words. "+
			"Respond in markdown using either a bullet list or **Summary**/**Topics**/**Keywords**/**Impact** sections.\n\n%s",
		style, length, diffContext,
	)
	return s.complete(ctx, prompt, CompletionOptions{MaxTokens: maxTokens})
}

// GenerateProposedQuestions produces 2-4 "- " prefixed bullet lines a reader
// might want to ask next, given context.
func (s *ChatSummarizer) GenerateProposedQuestions(ctx context.Context, context string) string {
	prompt := "Given the following recent activity, propose 2 to 4 follow-up questions " +
		"a reader might want answered next. Respond with one bullet per line, each " +
		"starting with \"- \", and nothing else.\n\n" + context
	return s.complete(ctx, prompt, CompletionOptions{MaxTokens: 200})
}

// GenerateSessionTitle produces a 3-7 word Title Case string, optionally
// prefixed with one emoji.
func (s *ChatSummarizer) GenerateSessionTitle(ctx context.Context, context string) string {
	prompt := "Give this conversation a short title: 3 to 7 words, Title Case, " +
		"optionally preceded by a single emoji. Respond with the title only.\n\n" + context
	title := s.complete(ctx, prompt, CompletionOptions{MaxTokens: 20})
	return strings.Trim(strings.TrimSpace(title), "\"")
}

// GetCompletion issues a raw completion request.
func (s *ChatSummarizer) GetCompletion(ctx context.Context, prompt string, opts CompletionOptions) string {
	return s.complete(ctx, prompt, opts)
}

func (s *ChatSummarizer) complete(ctx context.Context, prompt string, opts CompletionOptions) string {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Sprintf("Error: %v", ctx.Err())
			case <-time.After(s.backoff * time.Duration(1<<uint(attempt-1))):
			}
		}

		out, err := s.invoke(ctx, prompt, opts)
		if err == nil {
			return out
		}
		lastErr = err
		s.log.Warn("completion attempt failed", "attempt", attempt+1, "error", err)
	}
	return fmt.Sprintf("Error: %v", lastErr)
}

func (s *ChatSummarizer) invoke(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	cm, err := NewCloseableChatModel(ctx, s.cfg)
	if err != nil {
		return "", err
	}
	defer cm.Close()

	messages := make([]*schema.Message, 0, 2)
	if opts.System != "" {
		messages = append(messages, schema.SystemMessage(opts.System))
	}
	messages = append(messages, schema.UserMessage(prompt))

	resp, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("empty response from %s", s.cfg.Provider)
	}
	return strings.TrimSpace(resp.Content), nil
}
