package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/medivoice/medivoice-core/internal/config"
)

type invocation struct {
	name string
	args []string
}

func newTestPlayer(t *testing.T, cfg config.PlaybackConfig, platform string) (*Player, *[]invocation) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	p, err := NewPlayer(cfg, logger)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	p.platform = platform
	var calls []invocation
	p.run = func(_ context.Context, name string, args ...string) error {
		calls = append(calls, invocation{name: name, args: args})
		return nil
	}
	return p, &calls
}

func TestPlatformDispatch(t *testing.T) {
	cases := []struct {
		platform string
		player   string
	}{
		{"darwin", "afplay"},
		{"linux", "mpg123"},
	}
	for _, tc := range cases {
		p, calls := newTestPlayer(t, config.PlaybackConfig{FFmpeg: "ffmpeg"}, tc.platform)
		if err := p.Play(context.Background(), "answer.mp3"); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.platform, err)
		}
		if len(*calls) != 1 {
			t.Fatalf("%s: expected one command, got %d", tc.platform, len(*calls))
		}
		got := (*calls)[0]
		if got.name != tc.player {
			t.Fatalf("%s: expected player %q, got %q", tc.platform, tc.player, got.name)
		}
		if len(got.args) != 1 || got.args[0] != "answer.mp3" {
			t.Fatalf("%s: expected artifact path argument, got %v", tc.platform, got.args)
		}
	}
}

func TestWindowsTranscodesExactlyOnceBeforePlaying(t *testing.T) {
	p, calls := newTestPlayer(t, config.PlaybackConfig{FFmpeg: "ffmpeg"}, "windows")
	if err := p.Play(context.Background(), "answer.mp3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected transcode then player, got %d commands", len(*calls))
	}
	transcode := (*calls)[0]
	if transcode.name != "ffmpeg" {
		t.Fatalf("expected ffmpeg first, got %q", transcode.name)
	}
	if transcode.args[len(transcode.args)-1] != "answer.wav" {
		t.Fatalf("expected wav output, got %v", transcode.args)
	}
	player := (*calls)[1]
	if player.name != "powershell" {
		t.Fatalf("expected powershell player, got %q", player.name)
	}
	if !strings.Contains(strings.Join(player.args, " "), "answer.wav") {
		t.Fatalf("expected player to receive wav path, got %v", player.args)
	}
}

func TestWindowsTranscodeFailureAborts(t *testing.T) {
	p, _ := newTestPlayer(t, config.PlaybackConfig{FFmpeg: "ffmpeg"}, "windows")
	var calls int
	p.run = func(_ context.Context, name string, _ ...string) error {
		calls++
		return errors.New("ffmpeg not found")
	}
	if err := p.Play(context.Background(), "answer.mp3"); err == nil {
		t.Fatal("expected transcode error")
	}
	if calls != 1 {
		t.Fatalf("expected no player invocation after failed transcode, got %d calls", calls)
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	p, calls := newTestPlayer(t, config.PlaybackConfig{FFmpeg: "ffmpeg"}, "plan9")
	err := p.Play(context.Background(), "answer.mp3")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("expected no playback attempt, got %d commands", len(*calls))
	}
}

func TestOverrideCommandWins(t *testing.T) {
	p, calls := newTestPlayer(t, config.PlaybackConfig{Command: `vlc --intf dummy`}, "plan9")
	if err := p.Play(context.Background(), "answer.mp3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one command, got %d", len(*calls))
	}
	got := (*calls)[0]
	if got.name != "vlc" {
		t.Fatalf("expected override binary, got %q", got.name)
	}
	want := []string{"--intf", "dummy", "answer.mp3"}
	if len(got.args) != len(want) {
		t.Fatalf("unexpected args %v", got.args)
	}
	for i := range want {
		if got.args[i] != want[i] {
			t.Fatalf("unexpected args %v", got.args)
		}
	}
}
