// Package casegen turns business requirement documents (BRDs) into QA test
// cases. It extracts text from selected PDF pages, optionally reads example
// test cases from a spreadsheet, asks a chat model for new test cases and
// parses the fenced JSON answer.
package casegen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/casegen/llm"
	"github.com/brunobiangulo/casegen/parser"
	"github.com/brunobiangulo/casegen/record"
)

// Engine is the main entry point for test case generation.
type Engine interface {
	// PageCount returns the number of pages in a PDF.
	PageCount(pdf []byte) (int, error)

	// ExtractText returns the cleaned text of the selected 1-based pages.
	// An empty selection means every page.
	ExtractText(pdf []byte, pages []int) (string, error)

	// Preview renders the selected pages in the order given. An empty
	// selection means every page.
	Preview(pdf []byte, pages []int) ([]parser.Preview, error)

	// LoadExamples reads example test cases from an .xlsx workbook.
	LoadExamples(r io.Reader) ([]record.Record, error)

	// BuildPrompt renders the chat prompt for text and examples.
	BuildPrompt(text string, examples []record.Record) (Prompt, error)

	// Generate runs the whole pipeline with a single model call.
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)

	// Close releases the engine.
	Close() error
}

// GenerateRequest is the input of one generation run.
type GenerateRequest struct {
	// PDF is the BRD document.
	PDF []byte

	// Pages selects 1-based pages; empty means every page.
	Pages []int

	// Examples is an optional .xlsx workbook of example test cases.
	Examples io.Reader
}

// Result is the outcome of one generation run.
//
// When the model answer cannot be parsed, TestCases is empty, Warning says
// why and Raw keeps the answer verbatim.
type Result struct {
	RunID            string          `json:"run_id"`
	TestCases        []record.Record `json:"test_cases"`
	Raw              string          `json:"raw_response"`
	Warning          string          `json:"warning,omitempty"`
	Notes            []string        `json:"notes,omitempty"`
	Pages            []int           `json:"pages"`
	Examples         int             `json:"examples"`
	ModelUsed        string          `json:"model_used"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	ElapsedMs        int64           `json:"elapsed_ms"`
}

// Parsed reports whether the model answer yielded test cases.
func (r *Result) Parsed() bool {
	return r.Warning == ""
}

// Option configures an engine.
type Option func(*engineOptions)

type engineOptions struct {
	provider llm.Provider
	logger   *slog.Logger
}

// WithProvider injects the chat provider instead of building one from
// Config.Chat. The API key check is skipped in that case.
func WithProvider(p llm.Provider) Option {
	return func(o *engineOptions) { o.provider = p }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	chatLLM llm.Provider
	log     *slog.Logger
}

// New creates an engine. The configuration is validated up front.
func New(cfg Config, opts ...Option) (Engine, error) {
	options := &engineOptions{}
	for _, o := range opts {
		o(options)
	}

	chatLLM := options.provider
	if chatLLM == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		p, err := llm.NewProvider(cfg.llmConfig())
		if err != nil {
			return nil, fmt.Errorf("%w: creating chat provider: %v", ErrInvalidConfig, err)
		}
		chatLLM = p
	} else if err := cfg.validateSettings(); err != nil {
		return nil, err
	}

	log := options.logger
	if log == nil {
		log = slog.Default()
	}

	return &engine{cfg: cfg, chatLLM: chatLLM, log: log}, nil
}

func (e *engine) PageCount(pdf []byte) (int, error) {
	return parser.PageCount(pdf)
}

func (e *engine) ExtractText(pdf []byte, pages []int) (string, error) {
	text, _, err := e.extract(pdf, pages)
	return text, err
}

// extract opens the document just long enough to read the selected pages.
func (e *engine) extract(pdf []byte, pages []int) (string, []int, error) {
	doc, err := parser.NewDocument(pdf)
	if err != nil {
		return "", nil, err
	}
	defer doc.Close()

	total := doc.NumPages()
	if len(pages) == 0 {
		pages = parser.AllPages(total)
	}
	pages, err = parser.NormalizePages(pages, total)
	if err != nil {
		return "", nil, err
	}

	text, err := parser.ExtractPages(doc, pages)
	if err != nil {
		return "", nil, err
	}
	return text, pages, nil
}

func (e *engine) Preview(pdf []byte, pages []int) ([]parser.Preview, error) {
	if len(pages) == 0 {
		total, err := e.PageCount(pdf)
		if err != nil {
			return nil, err
		}
		pages = parser.AllPages(total)
	}
	return parser.RenderPreviews(pdf, pages, e.cfg.previewOptions())
}

func (e *engine) LoadExamples(r io.Reader) ([]record.Record, error) {
	return parser.LoadExamples(r)
}

func (e *engine) BuildPrompt(text string, examples []record.Record) (Prompt, error) {
	return BuildPrompt(text, examples)
}

func (e *engine) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := e.log.With("run_id", runID)

	text, pages, err := e.extract(req.PDF, req.Pages)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	log.Info("generate: text extracted", "pages", pages, "chars", len(text))

	var examples []record.Record
	if req.Examples != nil {
		examples, err = parser.LoadExamples(req.Examples)
		if err != nil {
			return nil, fmt.Errorf("loading examples: %w", err)
		}
		log.Info("generate: examples loaded", "examples", len(examples))
	}

	prompt, err := BuildPrompt(text, examples)
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	llmStart := time.Now()
	resp, err := e.chatLLM.Chat(ctx, llm.ChatRequest{
		Model:    e.cfg.Chat.Model,
		Messages: prompt.Messages(),
	})
	if err != nil {
		log.Error("generate: chat request failed", "error", err, "duration", time.Since(llmStart))
		return nil, fmt.Errorf("%w: %w", ErrLLMRequestFailed, err)
	}
	log.Info("generate: model answered",
		"model", resp.Model,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"duration", time.Since(llmStart))

	result := &Result{
		RunID:            runID,
		Raw:              resp.Content,
		Pages:            pages,
		Examples:         len(examples),
		ModelUsed:        resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}

	cases, err := ParseResponse(resp.Content)
	result.TestCases = cases
	if err != nil {
		result.Warning = fmt.Sprintf("could not parse JSON, raw output kept: %v", err)
		log.Warn("generate: response not parseable", "error", err, "raw_chars", len(resp.Content))
	} else {
		result.Notes = CheckShape(cases)
		for _, n := range result.Notes {
			log.Warn("generate: test case shape", "note", n)
		}
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	log.Info("generate: complete",
		"test_cases", len(result.TestCases),
		"parsed", result.Parsed(),
		"duration", time.Since(start))
	return result, nil
}

// Close is a no-op: documents are opened and released per call and the
// providers hold no connections of their own.
func (e *engine) Close() error {
	return nil
}
