package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/medivoice/medivoice-core/internal/config"
)

type elevenLabsSynth struct {
	endpoint     string
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	httpClient   *http.Client
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// NewElevenLabsSynth is the high-fidelity credentialed engine.
func NewElevenLabsSynth(cfg config.TTSConfig) Synthesizer {
	return &elevenLabsSynth{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		voiceID:      cfg.VoiceID,
		model:        cfg.Model,
		outputFormat: cfg.OutputFormat,
		httpClient:   &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

func (e *elevenLabsSynth) Synthesize(ctx context.Context, text, destPath string) error {
	if strings.TrimSpace(e.apiKey) == "" {
		return ErrMissingCredential
	}

	endpoint, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s", e.endpoint, e.voiceID))
	if err != nil {
		return fmt.Errorf("build synthesis url: %w", err)
	}
	q := endpoint.Query()
	q.Set("output_format", e.outputFormat)
	endpoint.RawQuery = q.Encode()

	payload, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: e.model})
	if err != nil {
		return fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("synthesis returned status %s", resp.Status)
	}

	return writeAudioStream(resp.Body, destPath)
}

// writeAudioStream copies an encoded audio byte stream to destPath.
func writeAudioStream(body io.Reader, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create audio artifact: %w", err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("write audio artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close audio artifact: %w", err)
	}
	return nil
}
