// Package llm defines the provider-agnostic boundary for chat-completion
// style models. Concrete providers live under providers/.
package llm

import (
	"context"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

// Request asks the provider for one completion. ForceJSON requests a
// structured (json_object) response when the backend supports it; callers
// still parse defensively because providers differ in compliance.
type Request struct {
	Model       string
	Messages    []Message
	ForceJSON   bool
	Temperature float64
	MaxTokens   int
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
