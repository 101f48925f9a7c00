package turn

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medivoice/medivoice-core/internal/config"
	"github.com/medivoice/medivoice-core/internal/vision"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SpeechToTextError is the transcript shown when transcription fails. A turn
// with no usable transcript is terminated before the responding stage.
const SpeechToTextError = "Error in speech-to-text conversion."

// Stage names a unit of work with its own failure containment.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageTranscribing Stage = "transcribing"
	StageResponding   Stage = "responding"
	StageSynthesizing Stage = "synthesizing"
	StageDone         Stage = "done"
)

// Transcriber converts an audio artifact to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Responder produces an answer for a prompt and an optional image artifact.
// It always returns a string, even on internal failure.
type Responder interface {
	Respond(ctx context.Context, prompt, imagePath string) string
}

// Synthesizer renders an answer to an audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, destPath string) error
}

// Notifier receives turn lifecycle events. Implementations must be safe to
// call concurrently; a nil notifier disables publishing.
type Notifier interface {
	StageChanged(turnID string, stage Stage, stageErr error)
	Completed(turnID string, result Result, latency time.Duration)
}

// Request is one UI-boundary request: a recorded utterance plus an optional
// image. Paths reference artifacts owned by the caller.
type Request struct {
	TurnID    string
	AudioPath string
	ImagePath string
}

// Result is the tuple delivered back to the caller. Transcript and Answer are
// always well-formed strings; AudioPath is the only field that may be empty.
type Result struct {
	TurnID     string
	Transcript string
	Answer     string
	AudioPath  string
}

// Timeouts bounds each stage's remote round-trip.
type Timeouts struct {
	Transcribe time.Duration
	Respond    time.Duration
	Synthesize time.Duration
}

func TimeoutsFromConfig(cfg config.Config) Timeouts {
	return Timeouts{
		Transcribe: time.Duration(cfg.STT.TimeoutSec) * time.Second,
		Respond:    time.Duration(cfg.Vision.TimeoutSec) * time.Second,
		Synthesize: time.Duration(cfg.TTS.TimeoutSec) * time.Second,
	}
}

// Orchestrator sequences one turn through its stages and contains each
// stage's failure blast radius. It performs no retries.
type Orchestrator struct {
	transcriber  Transcriber
	responder    Responder
	synthesizer  Synthesizer
	persona      Persona
	timeouts     Timeouts
	artifactsDir string
	notifier     Notifier
	logger       *slog.Logger

	turnCounter   metric.Int64Counter
	stageFailures metric.Int64Counter
	turnLatency   metric.Float64Histogram
}

func NewOrchestrator(transcriber Transcriber, responder Responder, synthesizer Synthesizer,
	persona Persona, timeouts Timeouts, artifactsDir string, notifier Notifier, logger *slog.Logger) *Orchestrator {
	meter := otel.Meter("medivoice.turn")
	turnCounter, _ := meter.Int64Counter("turns_total")
	stageFailures, _ := meter.Int64Counter("turn_stage_failures_total")
	turnLatency, _ := meter.Float64Histogram("turn_duration_seconds")

	return &Orchestrator{
		transcriber:   transcriber,
		responder:     responder,
		synthesizer:   synthesizer,
		persona:       persona,
		timeouts:      timeouts,
		artifactsDir:  artifactsDir,
		notifier:      notifier,
		logger:        logger.With(slog.String("component", "orchestrator")),
		turnCounter:   turnCounter,
		stageFailures: stageFailures,
		turnLatency:   turnLatency,
	}
}

// Run executes one turn. It never returns a raw failure: every stage's error
// is converted to a fallback string or an absent audio artifact.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	if req.TurnID == "" {
		req.TurnID = uuid.NewString()
	}
	start := time.Now()
	log := o.logger.With(slog.String("turn_id", req.TurnID))
	o.turnCounter.Add(ctx, 1)

	// Transcribing
	o.stageChanged(req.TurnID, StageTranscribing, nil)
	transcript, err := o.transcribe(ctx, req.AudioPath)
	if err != nil || strings.TrimSpace(transcript) == "" {
		// Useless-without-transcript policy: a prompt built on no
		// transcript is not worth sending downstream.
		log.Warn("transcription failed, terminating turn", slogError(err))
		o.stageFailed(ctx, req.TurnID, StageTranscribing, err)
		result := Result{TurnID: req.TurnID, Transcript: SpeechToTextError, Answer: ""}
		o.completed(req.TurnID, result, time.Since(start))
		return result
	}
	log.Info("transcription complete", slog.Int("chars", len(transcript)))

	// Responding. The responder's own contract guarantees a string answer.
	o.stageChanged(req.TurnID, StageResponding, nil)
	answer := o.respond(ctx, transcript, req.ImagePath)
	log.Info("response ready", slog.Int("chars", len(answer)))

	// Synthesizing. A failure here degrades to a text-only result.
	o.stageChanged(req.TurnID, StageSynthesizing, nil)
	audioPath := filepath.Join(o.artifactsDir, "response_"+req.TurnID+".mp3")
	if err := o.synthesize(ctx, answer, audioPath); err != nil {
		log.Warn("synthesis failed, returning text-only result", slogError(err))
		o.stageFailed(ctx, req.TurnID, StageSynthesizing, err)
		result := Result{TurnID: req.TurnID, Transcript: transcript, Answer: answer}
		o.completed(req.TurnID, result, time.Since(start))
		return result
	}

	latency := time.Since(start)
	o.turnLatency.Record(ctx, latency.Seconds())
	log.Info("turn complete", slog.Duration("latency", latency))

	result := Result{TurnID: req.TurnID, Transcript: transcript, Answer: answer, AudioPath: audioPath}
	o.completed(req.TurnID, result, latency)
	return result
}

func (o *Orchestrator) transcribe(ctx context.Context, audioPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Transcribe)
	defer cancel()
	return o.transcriber.Transcribe(ctx, audioPath)
}

func (o *Orchestrator) respond(ctx context.Context, transcript, imagePath string) string {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Respond)
	defer cancel()
	answer := o.responder.Respond(ctx, o.persona.Compose(transcript), imagePath)
	if strings.TrimSpace(answer) == "" {
		return vision.AnalysisErrorAnswer
	}
	return answer
}

func (o *Orchestrator) synthesize(ctx context.Context, answer, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Synthesize)
	defer cancel()
	return o.synthesizer.Synthesize(ctx, answer, destPath)
}

func (o *Orchestrator) stageChanged(turnID string, stage Stage, stageErr error) {
	if o.notifier != nil {
		o.notifier.StageChanged(turnID, stage, stageErr)
	}
}

func (o *Orchestrator) stageFailed(ctx context.Context, turnID string, stage Stage, err error) {
	o.stageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
	o.stageChanged(turnID, stage, err)
}

func (o *Orchestrator) completed(turnID string, result Result, latency time.Duration) {
	if o.notifier != nil {
		o.notifier.Completed(turnID, result, latency)
	}
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "empty transcript")
	}
	return slog.String("error", err.Error())
}
