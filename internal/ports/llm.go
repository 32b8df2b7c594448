package ports

import (
	"context"
	"errors"
)

// ErrLLMAuth marks credential failures; the analysis run stops instead
// of burning through every batch against a dead endpoint.
var ErrLLMAuth = errors.New("llm authentication failed")

// ChatCompleter is the LLM text-completion boundary: one system
// instruction, one user message, one response text.
type ChatCompleter interface {
	Complete(ctx context.Context, system string, user string) (string, error)
}
