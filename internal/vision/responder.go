package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Fallback answers. The responder guarantees a string result; callers never
// see a raw failure from this stage.
const (
	NoImageAnswer       = "No image provided for me to analyze."
	AnalysisErrorAnswer = "Error in analyzing the image."
)

// Model is a pluggable vision-language backend.
type Model interface {
	Complete(ctx context.Context, prompt, imageDataURL string) (string, error)
}

// Responder turns a composed prompt plus an optional image into an answer.
type Responder struct {
	model  Model
	logger *slog.Logger
}

func NewResponder(model Model, logger *slog.Logger) *Responder {
	return &Responder{
		model:  model,
		logger: logger.With(slog.String("component", "responder")),
	}
}

// Respond returns the model's answer for the prompt grounded on the image at
// imagePath. The persona is image-grounded: with no image there is a canonical
// non-answer and no remote call is made.
func (r *Responder) Respond(ctx context.Context, prompt, imagePath string) string {
	if strings.TrimSpace(imagePath) == "" {
		return NoImageAnswer
	}

	dataURL, err := encodeImage(imagePath)
	if err != nil {
		r.logger.Warn("image encoding failed", slogError(err))
		return AnalysisErrorAnswer
	}

	answer, err := r.model.Complete(ctx, prompt, dataURL)
	if err != nil {
		r.logger.Warn("vision model call failed", slogError(err))
		return AnalysisErrorAnswer
	}
	if strings.TrimSpace(answer) == "" {
		r.logger.Warn("vision model returned empty answer")
		return AnalysisErrorAnswer
	}
	return answer
}

// encodeImage reads the image artifact and returns it as a base64 data URL.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
