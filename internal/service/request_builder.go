package service

import (
	"fmt"
	"strings"

	"github.com/makeasinger/moviegen/internal/model"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "deepseek/deepseek-chat-v3.1:free"

// RequestBuilder turns a prompt into the outbound completion request.
type RequestBuilder struct {
	model string
}

// NewRequestBuilder creates a builder bound to one model identifier.
func NewRequestBuilder(modelID string) *RequestBuilder {
	if modelID == "" {
		modelID = DefaultModel
	}
	return &RequestBuilder{model: modelID}
}

// Model returns the model identifier every request carries.
func (b *RequestBuilder) Model() string {
	return b.model
}

// Build is pure: the caller has already rejected blank prompts.
func (b *RequestBuilder) Build(prompt string) model.ChatCompletionRequest {
	return model.ChatCompletionRequest{
		Model: b.model,
		Messages: []model.ChatMessage{
			{Role: model.RoleUser, Content: buildConceptPrompt(prompt)},
		},
	}
}

func buildConceptPrompt(prompt string) string {
	var shape strings.Builder
	shape.WriteString("{\n")
	for i, f := range model.ConceptFields {
		sep := ","
		if i == len(model.ConceptFields)-1 {
			sep = ""
		}
		fmt.Fprintf(&shape, "  %q: %q%s\n", f.Key, f.Description, sep)
	}
	shape.WriteString("}")

	return fmt.Sprintf(`Based on this movie idea: "%s", please create a comprehensive movie breakdown.
Return ONLY a JSON object with these exact keys (no markdown, no code fences, no explanation before or after the object):
%s`, prompt, shape.String())
}
