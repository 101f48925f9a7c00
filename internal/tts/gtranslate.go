package tts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/medivoice/medivoice-core/internal/config"
)

// The unofficial translate endpoint rejects long q parameters, so text is
// split into chunks and the MP3 streams are concatenated.
const gtranslateChunkLimit = 180

type gtranslateSynth struct {
	endpoint   string
	language   string
	httpClient *http.Client
}

// NewGTranslateSynth is the free low-fidelity engine. It needs no credential.
func NewGTranslateSynth(cfg config.TTSConfig) Synthesizer {
	endpoint := cfg.Endpoint
	if endpoint == "" || strings.Contains(endpoint, "elevenlabs") {
		endpoint = "https://translate.google.com"
	}
	return &gtranslateSynth{
		endpoint:   strings.TrimRight(endpoint, "/"),
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

func (g *gtranslateSynth) Synthesize(ctx context.Context, text, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create audio artifact: %w", err)
	}

	for _, chunk := range splitText(text, gtranslateChunkLimit) {
		if err := g.fetchChunk(ctx, chunk, out); err != nil {
			out.Close()
			os.Remove(destPath)
			return err
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close audio artifact: %w", err)
	}
	return nil
}

func (g *gtranslateSynth) fetchChunk(ctx context.Context, chunk string, out *os.File) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.language)
	q.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build synthesis request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("synthesis returned status %s", resp.Status)
	}

	if _, err := out.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("write audio artifact: %w", err)
	}
	return nil
}

// splitText breaks text into chunks of at most limit bytes at word boundaries.
func splitText(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var chunks []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
