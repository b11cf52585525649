package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Naming is the result of naming one cluster.
type Naming struct {
	Name    string // 2-6 words, always non-empty
	Summary string // one sentence, may be empty
}

// Namer produces a cluster's display name and summary from its top
// headings. The LLM-backed implementation is optional; FallbackNamer
// requires no network access.
type Namer interface {
	Name(ctx context.Context, topHeadings []string, labelTokens []string) (Naming, error)
}

// FallbackNamer names a cluster by concatenating its top label tokens; it
// needs no network access.
type FallbackNamer struct{}

func (FallbackNamer) Name(_ context.Context, _ []string, labelTokens []string) (Naming, error) {
	return Naming{Name: FallbackName(labelTokens)}, nil
}

// LLMNamer asks an OpenAI-compatible chat model for a 2-6 word topic name
// and one-sentence summary conditioned on a cluster's top headings. Falls
// back to FallbackNamer on any error; a cluster name must be non-empty
// regardless of LLM availability.
type LLMNamer struct {
	client   *openai.Client
	model    string
	fallback FallbackNamer
}

func NewLLMNamer(client *openai.Client, model string) *LLMNamer {
	return &LLMNamer{client: client, model: model}
}

type namingResponse struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

func (n *LLMNamer) Name(ctx context.Context, topHeadings []string, labelTokens []string) (Naming, error) {
	if n.client == nil || len(topHeadings) == 0 {
		return n.fallback.Name(ctx, topHeadings, labelTokens)
	}

	prompt := fmt.Sprintf(
		"These are headings from the most representative notes in one topic cluster:\n- %s\n\n"+
			"Respond with JSON {\"name\": \"2-6 word topic name\", \"summary\": \"one sentence summary\"}.",
		strings.Join(topHeadings, "\n- "))

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: n.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil || len(resp.Choices) == 0 {
		return n.fallback.Name(ctx, topHeadings, labelTokens)
	}

	var parsed namingResponse
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil || parsed.Name == "" {
		return n.fallback.Name(ctx, topHeadings, labelTokens)
	}

	return Naming{Name: parsed.Name, Summary: parsed.Summary}, nil
}

// extractJSON trims any leading/trailing prose a chat model adds around
// its JSON object, returning the substring from the first '{' to the last
// '}'.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
