package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/medivoice/medivoice-core/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingCredential means the vision credential is not configured.
var ErrMissingCredential = errors.New("vision credential not configured")

type groqModel struct {
	client      *openai.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

// NewGroqModel talks to Groq's OpenAI-compatible vision chat endpoint.
func NewGroqModel(cfg config.VisionConfig) Model {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	return &groqModel{
		client:      openai.NewClientWithConfig(clientCfg),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (g *groqModel) Complete(ctx context.Context, prompt, imageDataURL string) (string, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return "", ErrMissingCredential
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: float32(g.temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
