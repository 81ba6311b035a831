// Package openai provides LLMClient and Summarizer implementations using
// OpenAI chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/infrastructure/config"
)

const summaryPrompt = `Summarize the following role-playing narrative so it stays useful as game-master context. Preserve named characters, locations, items, unresolved threads, and the most recent events. Target roughly %d characters. Return only the summary.`

// Client implements ports.LLMClient and ports.Summarizer using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
	}, nil
}

// Generate produces a completion for the prompt. All failures come back as
// entities.ExternalServiceError with the kind classified for distinct
// logging, so callers can treat them uniformly for fallback.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", classify("llm", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &entities.ExternalServiceError{
			Service: "llm",
			Kind:    entities.ServiceInvalidResponse,
			Err:     errors.New("empty completion"),
		}
	}
	return resp.Choices[0].Message.Content, nil
}

// Summarize condenses text to approximately targetLength characters.
func (c *Client) Summarize(ctx context.Context, text string, targetLength int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(summaryPrompt, targetLength)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", classify("summarizer", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &entities.ExternalServiceError{
			Service: "summarizer",
			Kind:    entities.ServiceInvalidResponse,
			Err:     errors.New("empty summary"),
		}
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps transport-level failures onto the engine's error taxonomy.
func classify(service string, err error) error {
	kind := entities.ServiceTransport
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = entities.ServiceTimeout
	}
	return &entities.ExternalServiceError{Service: service, Kind: kind, Err: err}
}
