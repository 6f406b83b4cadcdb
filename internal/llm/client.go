// Package llm provides a unified interface for LLM chat providers using
// CloudWeGo Eino, plus the Summarizer capability built on top of it.
package llm

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// DefaultRequestTimeout is the default timeout for LLM chat requests.
const DefaultRequestTimeout = 5 * time.Minute

// TimeoutEnvVar is the environment variable name for overriding the LLM request timeout.
const TimeoutEnvVar = "OBBYWATCH_LLM_TIMEOUT"

// GetEffectiveTimeout returns the timeout to use for LLM requests.
// Priority: 1) cfg.Timeout if set, 2) OBBYWATCH_LLM_TIMEOUT env var, 3) DefaultRequestTimeout
func GetEffectiveTimeout(cfg *Config) time.Duration {
	if cfg != nil && cfg.Timeout > 0 {
		return cfg.Timeout
	}

	if envVal := os.Getenv(TimeoutEnvVar); envVal != "" {
		if d, err := time.ParseDuration(envVal); err == nil {
			return d
		}
		log.Printf("Warning: invalid %s value %q (expected duration like '5m' or '300s'), using default %v",
			TimeoutEnvVar, envVal, DefaultRequestTimeout)
	}

	return DefaultRequestTimeout
}

// Provider identifies the LLM provider to use.
type Provider string

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider       Provider
	Model          string        // Chat model
	APIKey         string        // Required for cloud providers
	BaseURL        string        // Optional custom endpoint (OpenAI-compatible/Ollama)
	ThinkingBudget int           // Token budget for extended thinking (0 = disabled, only for supported models)
	Timeout        time.Duration // Request timeout for chat completions (0 = OBBYWATCH_LLM_TIMEOUT, else DefaultRequestTimeout)
}

// CloseableChatModel wraps a chat model with optional cleanup.
// Call Close() when done to release resources (required for Gemini).
type CloseableChatModel struct {
	model.BaseChatModel
	closer io.Closer // nil for providers without cleanup needs
}

// Close releases underlying resources. Safe to call multiple times.
func (c *CloseableChatModel) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// genaiClientCloser wraps genai.Client to implement io.Closer
type genaiClientCloser struct {
	client *genai.Client
}

func (g *genaiClientCloser) Close() error {
	// genai.Client doesn't have a Close method in current SDK
	// but we keep this wrapper for future compatibility and explicit lifecycle
	g.client = nil
	return nil
}

func newOpenAICompatibleChatModel(ctx context.Context, cfg Config, timeout time.Duration) (*CloseableChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	chatCfg := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		Timeout: timeout,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = cfg.BaseURL
	}
	m, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, err
	}
	return &CloseableChatModel{BaseChatModel: m, closer: nil}, nil
}

// NewCloseableChatModel creates a ChatModel with proper resource management.
// Callers MUST call Close() when done to release resources.
func NewCloseableChatModel(ctx context.Context, cfg Config) (*CloseableChatModel, error) {
	timeout := GetEffectiveTimeout(&cfg)

	switch cfg.Provider {
	case ProviderOpenAI:
		return newOpenAICompatibleChatModel(ctx, cfg, timeout)

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		return &CloseableChatModel{BaseChatModel: m, closer: nil}, nil

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		claudeConfig := &claude.Config{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		}
		if timeout > 0 {
			claudeConfig.HTTPClient = &http.Client{Timeout: timeout}
		}
		// Enable extended thinking if budget is set and model supports it
		if cfg.ThinkingBudget > 0 && ModelSupportsThinking(cfg.Model) {
			claudeConfig.Thinking = &claude.Thinking{
				Enable:       true,
				BudgetTokens: cfg.ThinkingBudget,
			}
		}
		m, err := claude.NewChatModel(ctx, claudeConfig)
		if err != nil {
			return nil, err
		}
		return &CloseableChatModel{BaseChatModel: m, closer: nil}, nil

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		var httpClient *http.Client
		if timeout > 0 {
			httpClient = &http.Client{Timeout: timeout}
		}
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}

		geminiConfig := &gemini.Config{
			Client: genaiClient,
			Model:  cfg.Model,
		}
		if cfg.ThinkingBudget > 0 && ModelSupportsThinking(cfg.Model) {
			budget := int32(cfg.ThinkingBudget)
			geminiConfig.ThinkingConfig = &genai.ThinkingConfig{
				IncludeThoughts: true,
				ThinkingBudget:  &budget,
			}
		}

		chatModel, err := gemini.NewChatModel(ctx, geminiConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini chat model: %w", err)
		}
		if chatModel == nil {
			return nil, fmt.Errorf("gemini chat model initialization returned nil")
		}
		return &CloseableChatModel{
			BaseChatModel: chatModel,
			closer:        &genaiClientCloser{client: genaiClient},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, ollama, anthropic, gemini)", cfg.Provider)
	}
}

// ValidateProvider checks if the given provider string is supported.
func ValidateProvider(p string) (Provider, error) {
	switch Provider(p) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", p)
	}
}
