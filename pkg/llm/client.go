// Package llm provides the narrow completion interface the judges consult,
// backed by any OpenAI-compatible chat-completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Request is one completion request. System is optional.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Engine produces one completion per call. Implementations must be safe for
// concurrent use.
type Engine interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects the model and endpoint for the OpenAI-backed engine.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string // empty for the default OpenAI endpoint
}

// ChatClient captures the subset of the go-openai client the engine uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// Client implements Engine over the OpenAI chat-completions API.
type Client struct {
	chat  ChatClient
	model string
}

// NewClient builds an engine from the config. Any OpenAI-compatible server
// works through BaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{chat: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

// NewClientWithChat builds an engine over an existing chat client, for tests.
func NewClientWithChat(chat ChatClient, model string) *Client {
	return &Client{chat: chat, model: model}
}

// Complete implements Engine.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// MajorityVote runs the engine k times and returns the answer classified
// true by more than half the votes. classify maps a completion to a vote.
func MajorityVote(ctx context.Context, engine Engine, req Request, k int,
	classify func(string) (bool, error)) (bool, error) {
	if k < 1 {
		k = 1
	}
	yes := 0
	for i := 0; i < k; i++ {
		out, err := engine.Complete(ctx, req)
		if err != nil {
			return false, err
		}
		ok, err := classify(out)
		if err != nil {
			return false, err
		}
		if ok {
			yes++
		}
	}
	return yes*2 > k, nil
}
