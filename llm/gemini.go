package llm

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

// geminiProvider implements Provider with the Google Gen AI SDK.
// System messages become the request's system instruction; the remaining
// messages are sent as user/model turns in order.
//
// API key: set via config, CASEGEN_CHAT_API_KEY or GEMINI_API_KEY.
type geminiProvider struct {
	cfg    Config
	client *genai.Client
}

// NewGemini creates a provider for Google Gemini.
func NewGemini(cfg Config) (Provider, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	c, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &geminiProvider{cfg: cfg, client: c}, nil
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	var (
		system   []*genai.Part
		contents []*genai.Content
	)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, genai.NewPartFromText(m.Content))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	gc := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		gc.SystemInstruction = &genai.Content{Parts: system}
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		gc.Temperature = &t
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}

	res, err := p.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	out := &ChatResponse{
		Content: res.Text(),
		Model:   res.ModelVersion,
	}
	if len(res.Candidates) > 0 {
		out.FinishReason = string(res.Candidates[0].FinishReason)
	}
	if u := res.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	if out.Model == "" {
		out.Model = model
	}
	return out, nil
}
