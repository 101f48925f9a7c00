package stt

import (
	"context"
	"errors"
)

// ErrMissingCredential means the transcription credential is not configured.
// Callers must not attempt the remote call when this is returned.
var ErrMissingCredential = errors.New("stt credential not configured")

// Transcriber converts a persisted audio artifact into plain text.
// An error or empty result means the transcript is unusable, not that the
// utterance was silent.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
