package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GrokClient speaks the OpenAI-compatible chat completions API exposed
// by xAI. The system prompt is the first message in the array.
type GrokClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
	model   string
}

func NewGrokClient(apiKey, baseURL, model string, timeout time.Duration) *GrokClient {
	if baseURL == "" {
		baseURL = "https://api.x.ai/v1"
	}
	return &GrokClient{http: &http.Client{Timeout: timeout}, apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

func (c *GrokClient) Name() string { return "grok" }

type grokChatReq struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type grokChatResp struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *GrokClient) Do(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrNoAPIKey
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	payload := grokChatReq{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		return Response{}, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &HTTPError{Provider: c.Name(), Status: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	var r grokChatResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decode grok response: %w", err)
	}
	if len(r.Choices) == 0 {
		return Response{}, errors.New("grok returned no choices")
	}

	return Response{
		Text:      r.Choices[0].Message.Content,
		Model:     r.Model,
		TokensIn:  r.Usage.PromptTokens,
		TokensOut: r.Usage.CompletionTokens,
	}, nil
}
