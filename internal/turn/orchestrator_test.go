package turn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/medivoice/medivoice-core/internal/config"
	"github.com/medivoice/medivoice-core/internal/vision"
)

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubResponder struct {
	answer string
	calls  int
	prompt string
	image  string
}

func (s *stubResponder) Respond(_ context.Context, prompt, imagePath string) string {
	s.calls++
	s.prompt = prompt
	s.image = imagePath
	return s.answer
}

type stubSynthesizer struct {
	err   error
	calls int
	text  string
	dest  string
}

func (s *stubSynthesizer) Synthesize(_ context.Context, text, destPath string) error {
	s.calls++
	s.text = text
	s.dest = destPath
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(destPath, []byte("mp3"), 0o644)
}

func testTimeouts() Timeouts {
	return Timeouts{Transcribe: time.Second, Respond: time.Second, Synthesize: time.Second}
}

func newTestOrchestrator(t *testing.T, tr *stubTranscriber, re *stubResponder, sy *stubSynthesizer) *Orchestrator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	persona := PersonaFromConfig(config.TurnConfig{PersonaVersion: "doctor-v1"})
	return NewOrchestrator(tr, re, sy, persona, testTimeouts(), t.TempDir(), nil, logger)
}

func TestTranscriptionFailureSkipsRemainingStages(t *testing.T) {
	tr := &stubTranscriber{err: errors.New("service unavailable")}
	re := &stubResponder{answer: "unused"}
	sy := &stubSynthesizer{}
	o := newTestOrchestrator(t, tr, re, sy)

	result := o.Run(context.Background(), Request{AudioPath: "utterance.wav"})

	if result.Transcript != SpeechToTextError {
		t.Fatalf("expected transcript sentinel, got %q", result.Transcript)
	}
	if result.Answer != "" {
		t.Fatalf("expected empty answer, got %q", result.Answer)
	}
	if result.AudioPath != "" {
		t.Fatalf("expected absent audio, got %q", result.AudioPath)
	}
	if re.calls != 0 || sy.calls != 0 {
		t.Fatalf("expected responder and synthesizer untouched, got %d/%d calls", re.calls, sy.calls)
	}
}

func TestEmptyTranscriptTreatedAsFailure(t *testing.T) {
	tr := &stubTranscriber{text: "   "}
	re := &stubResponder{answer: "unused"}
	sy := &stubSynthesizer{}
	o := newTestOrchestrator(t, tr, re, sy)

	result := o.Run(context.Background(), Request{AudioPath: "utterance.wav"})
	if result.Transcript != SpeechToTextError {
		t.Fatalf("expected transcript sentinel, got %q", result.Transcript)
	}
	if re.calls != 0 {
		t.Fatalf("expected responder untouched, got %d calls", re.calls)
	}
}

func TestSynthesisFailureDegradesToTextOnly(t *testing.T) {
	tr := &stubTranscriber{text: "I have a headache"}
	re := &stubResponder{answer: "With what I see, I think you have a tension headache."}
	sy := &stubSynthesizer{err: errors.New("quota exceeded")}
	o := newTestOrchestrator(t, tr, re, sy)

	result := o.Run(context.Background(), Request{AudioPath: "utterance.wav", ImagePath: "face.jpg"})

	if result.Transcript != tr.text {
		t.Fatalf("expected transcript unchanged, got %q", result.Transcript)
	}
	if result.Answer != re.answer {
		t.Fatalf("expected answer unchanged, got %q", result.Answer)
	}
	if result.AudioPath != "" {
		t.Fatalf("expected absent audio, got %q", result.AudioPath)
	}
}

func TestRoundTripPassesStringsUnchanged(t *testing.T) {
	tr := &stubTranscriber{text: "I have a headache"}
	re := &stubResponder{answer: "With what I see, I think you have a tension headache."}
	sy := &stubSynthesizer{}
	o := newTestOrchestrator(t, tr, re, sy)

	result := o.Run(context.Background(), Request{TurnID: "turn-1", AudioPath: "utterance.wav", ImagePath: "face.jpg"})

	if result.Transcript != "I have a headache" {
		t.Fatalf("transcript mutated: %q", result.Transcript)
	}
	if result.Answer != re.answer {
		t.Fatalf("answer mutated: %q", result.Answer)
	}
	if result.AudioPath == "" {
		t.Fatal("expected audio artifact path")
	}
	if _, err := os.Stat(result.AudioPath); err != nil {
		t.Fatalf("expected audio artifact written: %v", err)
	}
	if sy.text != re.answer {
		t.Fatalf("synthesizer received mutated answer %q", sy.text)
	}
}

func TestPromptComposesPersonaAndTranscript(t *testing.T) {
	tr := &stubTranscriber{text: "I have a headache"}
	re := &stubResponder{answer: "ok"}
	sy := &stubSynthesizer{}
	o := newTestOrchestrator(t, tr, re, sy)

	o.Run(context.Background(), Request{AudioPath: "utterance.wav", ImagePath: "face.jpg"})

	if !strings.HasSuffix(re.prompt, " I have a headache") {
		t.Fatalf("expected transcript appended to persona, got %q", re.prompt)
	}
	if !strings.Contains(re.prompt, "professional doctor") {
		t.Fatalf("expected persona instructions in prompt, got %q", re.prompt)
	}
	if re.image != "face.jpg" {
		t.Fatalf("expected image path forwarded, got %q", re.image)
	}
}

func TestEmptyResponderAnswerSubstituted(t *testing.T) {
	tr := &stubTranscriber{text: "I have a headache"}
	re := &stubResponder{answer: "  "}
	sy := &stubSynthesizer{}
	o := newTestOrchestrator(t, tr, re, sy)

	result := o.Run(context.Background(), Request{AudioPath: "utterance.wav", ImagePath: "face.jpg"})
	if result.Answer != vision.AnalysisErrorAnswer {
		t.Fatalf("expected analysis error sentinel, got %q", result.Answer)
	}
}

func TestRunAssignsTurnID(t *testing.T) {
	tr := &stubTranscriber{text: "hello"}
	re := &stubResponder{answer: "answer"}
	sy := &stubSynthesizer{}
	o := newTestOrchestrator(t, tr, re, sy)

	result := o.Run(context.Background(), Request{AudioPath: "utterance.wav"})
	if result.TurnID == "" {
		t.Fatal("expected generated turn id")
	}
}
