package adapters

import (
	"context"

	"github.com/iamwavecut/phishguard/internal/adapters/llm"
)

// LLM is a chat completion backend. The risk classifier sends one system and one user message per call.
type LLM interface {
	ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error)
}
