package llm

import "testing"

func TestGetEnvVarForProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderGemini, "GEMINI_API_KEY"},
		{ProviderOllama, ""},
		{"unknown", ""},
	}
	for _, tt := range tests {
		if got := GetEnvVarForProvider(tt.provider); got != tt.want {
			t.Errorf("GetEnvVarForProvider(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestGetProvidersExcludesUnsupported(t *testing.T) {
	providers := GetProviders()
	for _, p := range providers {
		switch p.ID {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama:
			// expected
		default:
			t.Errorf("GetProviders() returned unexpected provider %q", p.ID)
		}
	}
}
