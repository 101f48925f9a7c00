package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/medivoice/medivoice-core/internal/turn"
)

const maxUploadBytes = 32 << 20

// TurnRunner executes one pipeline turn.
type TurnRunner interface {
	Run(ctx context.Context, req turn.Request) turn.Result
}

// Server exposes the UI boundary: one request in (audio + optional image),
// one response out (transcript, answer, optional audio reference).
type Server struct {
	orch         TurnRunner
	artifactsDir string
	metrics      http.Handler
	logger       *slog.Logger
	ready        atomic.Bool
}

type turnResponse struct {
	TurnID     string `json:"turn_id"`
	Transcript string `json:"transcript"`
	Answer     string `json:"answer"`
	AudioURL   string `json:"audio_url,omitempty"`
}

func New(orch TurnRunner, artifactsDir string, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{
		orch:         orch,
		artifactsDir: artifactsDir,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "http")),
	}
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/turns", s.handleTurn)
	mux.HandleFunc("GET /v1/audio/{name}", s.handleAudio)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	audioPath, err := s.saveUpload(r, "audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}

	imagePath, err := s.saveUpload(r, "image")
	if err != nil && err != http.ErrMissingFile {
		s.writeError(w, http.StatusBadRequest, "invalid image upload")
		return
	}

	result := s.orch.Run(r.Context(), turn.Request{
		AudioPath: audioPath,
		ImagePath: imagePath,
	})

	resp := turnResponse{
		TurnID:     result.TurnID,
		Transcript: result.Transcript,
		Answer:     result.Answer,
	}
	if result.AudioPath != "" {
		resp.AudioURL = "/v1/audio/" + filepath.Base(result.AudioPath)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode turn response", slog.String("error", err.Error()))
	}
}

// saveUpload persists a multipart file field into the artifacts dir and
// returns its path, or http.ErrMissingFile when the field is absent.
func (s *Server) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = defaultExt(field)
	}
	path := filepath.Join(s.artifactsDir, field+"_"+uuid.NewString()+ext)
	if err := writeUpload(file, path); err != nil {
		return "", err
	}
	return path, nil
}

func defaultExt(field string) string {
	if field == "image" {
		return ".jpg"
	}
	return ".wav"
}

func writeUpload(file multipart.File, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload artifact: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("write upload artifact: %w", err)
	}
	return out.Close()
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))
	if name == "." || strings.Contains(name, "..") {
		s.writeError(w, http.StatusBadRequest, "invalid artifact name")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.artifactsDir, name))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
