package llm

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newFastFailingSummarizer() *ChatSummarizer {
	s := NewChatSummarizer(Config{Provider: "unsupported-test-provider", Model: "x"})
	s.retries = 2
	s.backoff = time.Millisecond
	return s
}

func TestGetCompletionReturnsErrorStringOnFinalFailure(t *testing.T) {
	s := newFastFailingSummarizer()
	out := s.GetCompletion(context.Background(), "hello", CompletionOptions{})
	if !strings.HasPrefix(out, "Error") {
		t.Errorf("expected an Error-prefixed string on final failure, got %q", out)
	}
}

func TestSummarizeDiffsReturnsErrorStringOnFinalFailure(t *testing.T) {
	s := newFastFailingSummarizer()
	out := s.SummarizeDiffs(context.Background(), "diff context", "concise", 100, 300)
	if !strings.HasPrefix(out, "Error") {
		t.Errorf("expected an Error-prefixed string, got %q", out)
	}
}

func TestGenerateSessionTitleReturnsErrorStringOnFinalFailure(t *testing.T) {
	s := newFastFailingSummarizer()
	out := s.GenerateSessionTitle(context.Background(), "some context")
	if !strings.HasPrefix(out, "Error") {
		t.Errorf("expected an Error-prefixed string, got %q", out)
	}
}

func TestCompleteRespectsContextCancellationDuringBackoff(t *testing.T) {
	s := newFastFailingSummarizer()
	s.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := s.complete(ctx, "prompt", CompletionOptions{})
	if !strings.HasPrefix(out, "Error") {
		t.Errorf("expected an Error-prefixed string, got %q", out)
	}
}
