package ai

import (
	"context"
	"errors"
	"fmt"
)

// Request is a generic chat-completion request for one document.
type Request struct {
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int

	// Messages is the conversation so far, oldest first. Refinement
	// appends to it; a fresh extraction carries a single user turn.
	Messages []Message
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"` // "user"|"assistant"
	Content string `json:"content"`
}

type Response struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// Client interface for providers like Anthropic, xAI.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

var (
	ErrRateLimited = errors.New("rate_limited")
	ErrNoAPIKey    = errors.New("provider API key not configured")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// HTTPError is a non-2xx provider reply.
type HTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
