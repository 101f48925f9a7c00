package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/medivoice/medivoice-core/internal/config"
)

// ErrUnsupportedPlatform means no playback mechanism exists for this OS.
var ErrUnsupportedPlatform = errors.New("no audio player for this platform")

type runFunc func(ctx context.Context, name string, args ...string) error

// strategy plays the artifact at path using a platform-specific mechanism.
type strategy func(p *Player, ctx context.Context, path string) error

// strategies keys playback dispatch by GOOS. Windows' native player only
// accepts uncompressed audio, so that entry transcodes first.
var strategies = map[string]strategy{
	"darwin":  (*Player).playAfplay,
	"linux":   (*Player).playMpg123,
	"windows": (*Player).playSoundPlayer,
}

// Player renders a synthesized audio artifact on the local output device.
type Player struct {
	platform string
	ffmpeg   string
	override []string
	run      runFunc
	logger   *slog.Logger
}

func NewPlayer(cfg config.PlaybackConfig, logger *slog.Logger) (*Player, error) {
	p := &Player{
		platform: runtime.GOOS,
		ffmpeg:   cfg.FFmpeg,
		run:      runCommand,
		logger:   logger.With(slog.String("component", "playback")),
	}
	if cfg.Command != "" {
		parser := shellwords.NewParser()
		args, err := parser.Parse(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse playback command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("playback command is empty")
		}
		p.override = args
	}
	return p, nil
}

// Play blocks until the artifact has finished playing.
func (p *Player) Play(ctx context.Context, path string) error {
	if len(p.override) > 0 {
		args := append(append([]string{}, p.override[1:]...), path)
		return p.run(ctx, p.override[0], args...)
	}

	play, ok := strategies[p.platform]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p.platform)
	}
	return play(p, ctx, path)
}

func (p *Player) playAfplay(ctx context.Context, path string) error {
	return p.run(ctx, "afplay", path)
}

func (p *Player) playMpg123(ctx context.Context, path string) error {
	return p.run(ctx, "mpg123", path)
}

func (p *Player) playSoundPlayer(ctx context.Context, path string) error {
	wavPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".wav"
	if err := p.run(ctx, p.ffmpeg, "-y", "-i", path, wavPath); err != nil {
		return fmt.Errorf("transcode for playback: %w", err)
	}
	script := fmt.Sprintf(`(New-Object Media.SoundPlayer "%s").PlaySync();`, wavPath)
	return p.run(ctx, "powershell", "-c", script)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
