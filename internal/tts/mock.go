package tts

import (
	"context"
	"os"
)

type mockSynth struct{}

func NewMockSynth() Synthesizer {
	return &mockSynth{}
}

func (m *mockSynth) Synthesize(_ context.Context, text, destPath string) error {
	return os.WriteFile(destPath, []byte("MOCKMP3 "+text), 0o644)
}
