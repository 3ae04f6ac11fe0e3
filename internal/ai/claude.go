package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClaudeClient speaks the Anthropic messages API. The system prompt
// travels in a top-level field, not in the messages array.
type ClaudeClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
	model   string
}

func NewClaudeClient(apiKey, baseURL, model string, timeout time.Duration) *ClaudeClient {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1/messages"
	}
	return &ClaudeClient{http: &http.Client{Timeout: timeout}, apiKey: apiKey, baseURL: baseURL, model: model}
}

func (c *ClaudeClient) Name() string { return "claude" }

type claudeMsgReq struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type claudeMsgResp struct {
	Model   string `json:"model"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *ClaudeClient) Do(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrNoAPIKey
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	payload := claudeMsgReq{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    req.Messages,
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = 4000
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
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

	var r claudeMsgResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decode claude response: %w", err)
	}
	if len(r.Content) == 0 {
		return Response{}, errors.New("claude returned no content")
	}

	return Response{
		Text:      r.Content[0].Text,
		Model:     r.Model,
		TokensIn:  r.Usage.InputTokens,
		TokensOut: r.Usage.OutputTokens,
	}, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(bytes.TrimSpace(b))
}
