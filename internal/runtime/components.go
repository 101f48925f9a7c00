package runtime

import (
	"log/slog"
	"strings"

	"github.com/medivoice/medivoice-core/internal/config"
	"github.com/medivoice/medivoice-core/internal/stt"
	"github.com/medivoice/medivoice-core/internal/tts"
	"github.com/medivoice/medivoice-core/internal/turn"
	"github.com/medivoice/medivoice-core/internal/vision"
)

func buildTranscriber(cfg config.STTConfig) stt.Transcriber {
	if cfg.Mode == "mock" {
		return stt.NewMockTranscriber()
	}
	return stt.NewGroqTranscriber(cfg)
}

func buildResponder(cfg config.VisionConfig, logger *slog.Logger) *vision.Responder {
	var model vision.Model
	if cfg.Mode == "mock" {
		model = vision.NewMockModel()
	} else {
		model = vision.NewGroqModel(cfg)
	}
	return vision.NewResponder(model, logger)
}

func buildSynthesizer(cfg config.TTSConfig, logger *slog.Logger) tts.Synthesizer {
	switch cfg.Mode {
	case "mock":
		return tts.NewMockSynth()
	case "gtranslate":
		return tts.NewGTranslateSynth(cfg)
	default:
		// A missing credential disables only the high-fidelity voice
		// path; the free engine remains available.
		if strings.TrimSpace(cfg.APIKey) == "" {
			logger.Warn("elevenlabs credential missing, using free synthesis engine")
			return tts.NewGTranslateSynth(cfg)
		}
		return tts.NewElevenLabsSynth(cfg)
	}
}

// BuildOrchestrator assembles the turn pipeline from configuration. The CLI
// and the daemon share this wiring.
func BuildOrchestrator(cfg config.Config, notifier turn.Notifier, logger *slog.Logger) *turn.Orchestrator {
	return turn.NewOrchestrator(
		buildTranscriber(cfg.STT),
		buildResponder(cfg.Vision, logger),
		buildSynthesizer(cfg.TTS, logger),
		turn.PersonaFromConfig(cfg.Turn),
		turn.TimeoutsFromConfig(cfg),
		cfg.Artifacts.Dir,
		notifier,
		logger,
	)
}
