package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/medivoice/medivoice-core/internal/capture"
	"github.com/medivoice/medivoice-core/internal/config"
	"github.com/medivoice/medivoice-core/internal/playback"
	"github.com/medivoice/medivoice-core/internal/runtime"
	"github.com/medivoice/medivoice-core/internal/turn"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		audioPath   string
		imagePath   string
		quiet       bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "medivoice.yaml", "Path to configuration file")
	flag.StringVar(&audioPath, "audio", "", "Use an existing audio file instead of recording from the microphone")
	flag.StringVar(&imagePath, "image", "", "Optional image to analyze alongside the question")
	flag.BoolVar(&quiet, "quiet", false, "Skip playing the spoken answer")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, audioPath, imagePath, quiet); err != nil {
		logger.Error("turn failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, audioPath, imagePath string, quiet bool) error {
	if err := os.MkdirAll(cfg.Artifacts.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	turnID := uuid.NewString()

	if audioPath == "" {
		recorded := filepath.Join(cfg.Artifacts.Dir, fmt.Sprintf("question_%s.wav", turnID))
		recorder := capture.NewRecorder(cfg.Capture, logger)
		fmt.Fprintln(os.Stderr, "Listening... ask your question.")
		if err := recorder.Capture(ctx, recorded); err != nil {
			return fmt.Errorf("capture audio: %w", err)
		}
		audioPath = recorded
	}

	orch := runtime.BuildOrchestrator(cfg, nil, logger)

	result := orch.Run(ctx, turn.Request{
		TurnID:    turnID,
		AudioPath: audioPath,
		ImagePath: imagePath,
	})

	fmt.Printf("You: %s\n", result.Transcript)
	fmt.Printf("Doctor: %s\n", result.Answer)

	if quiet || result.AudioPath == "" {
		return nil
	}

	player, err := playback.NewPlayer(cfg.Playback, logger)
	if err != nil {
		logger.Warn("playback unavailable", slog.String("error", err.Error()))
		return nil
	}
	if err := player.Play(ctx, result.AudioPath); err != nil {
		logger.Warn("playback failed", slog.String("error", err.Error()))
	}
	return nil
}
