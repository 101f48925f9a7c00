package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/medivoice/medivoice-core/internal/config"
)

var (
	// ErrNoInputDevice means no audio input device could be enumerated.
	ErrNoInputDevice = errors.New("no audio input device available")
	// ErrTimeout means no speech was detected before the configured timeout.
	ErrTimeout = errors.New("no speech detected before timeout")
)

// Recorder acquires a bounded audio sample from the default input device and
// persists it as a WAV artifact.
type Recorder struct {
	cfg    config.CaptureConfig
	logger *slog.Logger
}

func NewRecorder(cfg config.CaptureConfig, logger *slog.Logger) *Recorder {
	return &Recorder{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "capture")),
	}
}

// Capture blocks until a phrase has been recorded, then writes the artifact
// to destPath. On timeout no file is left behind.
func (r *Recorder) Capture(ctx context.Context, destPath string) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize audio: %w", err)
	}
	defer portaudio.Terminate()

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}

	frameLen := r.cfg.SampleRate * r.cfg.FrameDurationMS / 1000 * r.cfg.Channels
	in := make([]int16, frameLen)
	stream, err := portaudio.OpenDefaultStream(r.cfg.Channels, 0, float64(r.cfg.SampleRate), frameLen/r.cfg.Channels, in)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	samples, err := r.listen(ctx, stream, in)
	if err != nil {
		return err
	}

	return r.persist(destPath, samples)
}

func (r *Recorder) listen(ctx context.Context, stream *portaudio.Stream, in []int16) ([]int16, error) {
	frameDur := time.Duration(r.cfg.FrameDurationMS) * time.Millisecond

	r.logger.Info("adjusting for ambient noise")
	cal := newCalibrator(r.cfg.ThresholdGain)
	calFrames := r.cfg.CalibrationMS / r.cfg.FrameDurationMS
	for i := 0; i < calFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input frame: %w", err)
		}
		cal.observe(in)
	}

	threshold := cal.threshold()
	r.logger.Info("start speaking now", slog.Float64("threshold", threshold))

	ep := newEndpointer(threshold, frameDur,
		time.Duration(r.cfg.TimeoutSec)*time.Second,
		time.Duration(r.cfg.PhraseTimeLimitSec)*time.Second,
		time.Duration(r.cfg.TrailingSilenceMS)*time.Millisecond)

	var samples []int16
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input frame: %w", err)
		}
		keep, done, err := ep.feed(in)
		if err != nil {
			return nil, err
		}
		if keep {
			samples = append(samples, in...)
		}
		if done {
			break
		}
	}

	r.logger.Info("recording complete",
		slog.Duration("duration", time.Duration(len(samples)/r.cfg.Channels)*time.Second/time.Duration(r.cfg.SampleRate)))
	return samples, nil
}

func (r *Recorder) persist(destPath string, samples []int16) error {
	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create audio artifact: %w", err)
	}
	if err := writeWAV(file, samples, r.cfg.SampleRate, r.cfg.Channels); err != nil {
		file.Close()
		os.Remove(destPath)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close audio artifact: %w", err)
	}
	r.logger.Info("audio saved", slog.String("path", destPath))
	return nil
}
