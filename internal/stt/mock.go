package stt

import (
	"context"
	"fmt"
	"path/filepath"
)

type mockTranscriber struct{}

func NewMockTranscriber() Transcriber {
	return &mockTranscriber{}
}

func (m *mockTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	return fmt.Sprintf("[mock transcript for %s]", filepath.Base(audioPath)), nil
}
