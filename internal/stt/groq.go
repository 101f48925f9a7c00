package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/medivoice/medivoice-core/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

type groqTranscriber struct {
	client   *openai.Client
	apiKey   string
	model    string
	language string
}

// NewGroqTranscriber talks to Groq's OpenAI-compatible whisper endpoint.
func NewGroqTranscriber(cfg config.STTConfig) Transcriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	return &groqTranscriber{
		client:   openai.NewClientWithConfig(clientCfg),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
	}
}

func (g *groqTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return "", ErrMissingCredential
	}

	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.model,
		FilePath: audioPath,
		Language: g.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return resp.Text, nil
}
