package agent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"redirect-agent-backend/internal/conversation"
)

//go:embed prompts/redirect.yaml
var defaultPrompt []byte

// PromptSpec is the fixed instruction template sent with every query.
type PromptSpec struct {
	System string   `yaml:"system"`
	Notes  []string `yaml:"notes"`
}

// LoadPromptSpec reads a template from path, or the embedded one when path
// is empty.
func LoadPromptSpec(path string) (PromptSpec, error) {
	b := defaultPrompt
	if path != "" {
		var err error
		b, err = os.ReadFile(path)
		if err != nil {
			return PromptSpec{}, err
		}
	}
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return PromptSpec{}, fmt.Errorf("parse prompt template: %w", err)
	}
	if strings.TrimSpace(spec.System) == "" {
		return PromptSpec{}, fmt.Errorf("prompt template has no system text")
	}
	return spec, nil
}

// BuildMessages returns the instruction message (template, catalog and
// history) followed by the user's query. History is embedded in the
// instructions rather than replayed as separate turns.
func BuildMessages(spec PromptSpec, catalog string, history []conversation.Message, query string) []openai.ChatCompletionMessage {
	var b strings.Builder
	b.WriteString(strings.TrimRight(spec.System, "\n"))
	b.WriteString("\n\n**Context Information:**\n")
	b.WriteString("* Available services: ")
	b.WriteString(catalog)
	b.WriteString("\n* Chat history: ")
	b.WriteString(serializeHistory(history))
	b.WriteString("\n\n**Important Notes:**\n")
	for _, n := range spec.Notes {
		b.WriteString("* ")
		b.WriteString(n)
		b.WriteString("\n")
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: b.String()},
		{Role: openai.ChatMessageRoleUser, Content: query},
	}
}

func serializeHistory(history []conversation.Message) string {
	if len(history) == 0 {
		return "[]"
	}
	b, err := json.Marshal(history)
	if err != nil {
		return "[]"
	}
	return string(b)
}
