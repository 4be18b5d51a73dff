package casegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brunobiangulo/casegen/llm"
	"github.com/brunobiangulo/casegen/record"
)

// SystemInstruction is the fixed system message sent with every prompt.
const SystemInstruction = "You are a QA Test Case Generator. Generate test cases in JSON."

// Prompt is the (system, user) message pair for one generation.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// BuildPrompt renders the user message around the extracted BRD text.
// Examples are embedded as 2-space indented JSON; no examples render as [].
// The text is inserted as is.
func BuildPrompt(text string, examples []record.Record) (Prompt, error) {
	if examples == nil {
		examples = []record.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(examples); err != nil {
		return Prompt{}, fmt.Errorf("encoding examples: %w", err)
	}

	var b strings.Builder
	b.WriteString("\nGenerate test cases from the given BRD content.\n")
	b.WriteString("Each test case must include: Scenario, Content, TC_Name, Description.\n")
	b.WriteString("Examples (if any):\n")
	b.WriteString(strings.TrimSuffix(buf.String(), "\n"))
	b.WriteString("\n\nBRD Content:\n")
	b.WriteString(text)
	b.WriteString("\n")

	return Prompt{System: SystemInstruction, User: b.String()}, nil
}

// Messages returns the prompt as chat messages, system first.
func (p Prompt) Messages() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: p.System},
		{Role: llm.RoleUser, Content: p.User},
	}
}
