package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/medivoice/medivoice-core/internal/turn"
)

type stubRunner struct {
	result turn.Result
	req    turn.Request
	calls  int
}

func (s *stubRunner) Run(_ context.Context, req turn.Request) turn.Result {
	s.calls++
	s.req = req
	return s.result
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, data := range files {
		part, err := writer.CreateFormFile(field, field+".bin")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestHandleTurnReturnsResultFields(t *testing.T) {
	dir := t.TempDir()
	audioArtifact := filepath.Join(dir, "response_turn-1.mp3")
	runner := &stubRunner{result: turn.Result{
		TurnID:     "turn-1",
		Transcript: "I have a headache",
		Answer:     "With what I see, I think you have a tension headache.",
		AudioPath:  audioArtifact,
	}}
	srv := New(runner, dir, nil, newLogger())

	body, contentType := multipartBody(t, map[string][]byte{
		"audio": []byte("RIFF audio"),
		"image": []byte{0xff, 0xd8},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp turnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Transcript != runner.result.Transcript {
		t.Fatalf("unexpected transcript %q", resp.Transcript)
	}
	if resp.Answer != runner.result.Answer {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if resp.AudioURL != "/v1/audio/response_turn-1.mp3" {
		t.Fatalf("unexpected audio url %q", resp.AudioURL)
	}
	if runner.req.AudioPath == "" {
		t.Fatal("expected audio upload persisted")
	}
	if runner.req.ImagePath == "" {
		t.Fatal("expected image upload persisted")
	}
}

func TestHandleTurnWithoutImage(t *testing.T) {
	runner := &stubRunner{result: turn.Result{
		TurnID:     "turn-2",
		Transcript: "hello",
		Answer:     "No image provided for me to analyze.",
	}}
	srv := New(runner, t.TempDir(), nil, newLogger())

	body, contentType := multipartBody(t, map[string][]byte{"audio": []byte("RIFF audio")})
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp turnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AudioURL != "" {
		t.Fatalf("expected empty audio url, got %q", resp.AudioURL)
	}
	if runner.req.ImagePath != "" {
		t.Fatalf("expected absent image path, got %q", runner.req.ImagePath)
	}
}

func TestHandleTurnRequiresAudio(t *testing.T) {
	runner := &stubRunner{}
	srv := New(runner, t.TempDir(), nil, newLogger())

	body, contentType := multipartBody(t, map[string][]byte{"image": {0xff}})
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if runner.calls != 0 {
		t.Fatalf("expected orchestrator untouched, got %d calls", runner.calls)
	}
}

func TestHandleAudioServesArtifact(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "response_x.mp3"), []byte("mp3 bytes"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	srv := New(&stubRunner{}, dir, nil, newLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/audio/response_x.mp3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if rec.Body.String() != "mp3 bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	srv := New(&stubRunner{}, t.TempDir(), nil, newLogger())
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rec.Code)
	}

	srv.SetReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", rec.Code)
	}
}
