package tts

import (
	"context"
	"errors"
)

// ErrMissingCredential means the synthesis credential is not configured. It
// disables only the credentialed engine; the free engine remains available.
var ErrMissingCredential = errors.New("tts credential not configured")

// Synthesizer renders text to an encoded audio artifact at destPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, destPath string) error
}
