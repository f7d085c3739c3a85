package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"WeeklyIntel/internal/config"
	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

// ChatGPTClient implements ports.Generator backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	client       *openai.Client
	model        string
	systemPrompt string
	temperature  float32
}

var _ ports.Generator = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.GenerationConfig) *ChatGPTClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatGPTClient{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
	}
}

// SummarizeGroup condenses one category of articles into a short paragraph.
func (c *ChatGPTClient) SummarizeGroup(ctx context.Context, text string, params ports.GenerationParams) (string, error) {
	prompt := fmt.Sprintf("Summarize the key developments in these %s articles in 2-3 sentences:\n\n%s",
		groupLabel(params.Group), text)
	return c.complete(ctx, prompt, params)
}

// ComposeReport writes the narrative body of the weekly report.
func (c *ChatGPTClient) ComposeReport(ctx context.Context, text string, params ports.GenerationParams) (string, error) {
	prompt := "Write a weekly intelligence report with an executive summary, key trends and " +
		"strategic insights based on the following analysis:\n\n" + text
	return c.complete(ctx, prompt, params)
}

func (c *ChatGPTClient) complete(ctx context.Context, prompt string, params ports.GenerationParams) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("chatgpt client is nil: %w", domain.ErrGenerationUnavailable)
	}
	if c.model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured: %w", domain.ErrGenerationUnavailable)
	}

	temperature := params.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: safePrompt(c.systemPrompt)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion: %w", domain.ErrGenerationUnavailable)
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("blank completion: %w", domain.ErrGenerationUnavailable)
	}
	return out, nil
}

func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chatgpt error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrGenerationUnavailable)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chatgpt error %d: %w", reqErr.HTTPStatusCode, domain.ErrGenerationUnavailable)
	}

	return fmt.Errorf("chatgpt request failed: %v: %w", err, domain.ErrGenerationUnavailable)
}

func groupLabel(group string) string {
	if group == "" {
		return "technology"
	}
	return group
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are an analyst who writes concise weekly technology intelligence reports."
	}
	return prompt
}
