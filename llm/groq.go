package llm

import "context"

// DefaultGroqModel is the model used when none is configured.
const DefaultGroqModel = "llama-3.3-70b-versatile"

// groqProvider implements Provider for Groq's inference API.
// Groq uses the OpenAI-compatible API format and serves open-weight models
// (Llama, Gemma, ...) with very low latency.
//
// API key: set via config, CASEGEN_CHAT_API_KEY or GROQ_API_KEY.
type groqProvider struct {
	base openAICompatClient
}

// NewGroq creates a provider for Groq.
func NewGroq(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGroqModel
	}
	return &groqProvider{base: newOpenAICompatClient(cfg)}
}

func (p *groqProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}
