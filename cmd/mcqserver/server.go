package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"mcqstudio"
	"mcqstudio/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// server exposes the generation backend over HTTP
type server struct {
	gen    mcqstudio.Generator
	cfg    mcqstudio.Config
	logger *slog.Logger
}

func newServer(gen mcqstudio.Generator, cfg mcqstudio.Config, logger *slog.Logger) *server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = mcqstudio.DefaultMaxUploadBytes
	}
	return &server{gen: gen, cfg: cfg, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpx.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Post("/generate-mcqs/", s.handleGenerate)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Backend is running fine!"})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("File too large (max %d bytes)", s.cfg.MaxUploadBytes))
			return
		}
		httpx.WriteDetail(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	count := mcqstudio.DefaultQuestionCount
	if raw := r.FormValue("question_count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "question_count must be an integer")
			return
		}
	}

	ctx := r.Context()
	if s.cfg.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenerateTimeout)
		defer cancel()
	}

	records, err := s.gen.Generate(ctx, mcqstudio.Upload{
		Filename:      header.Filename,
		Data:          data,
		QuestionCount: count,
	})
	if err != nil {
		status := statusForGenerateError(err)
		s.logger.Warn("generation failed", "document", header.Filename, "status", status, "error", err)
		httpx.WriteDetail(w, status, err.Error())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"mcqs": records})
}

func statusForGenerateError(err error) int {
	switch {
	case errors.Is(err, mcqstudio.ErrUnsupportedDocument),
		errors.Is(err, mcqstudio.ErrDocumentTooLarge),
		errors.Is(err, mcqstudio.ErrInvalidQuestionCount),
		errors.Is(err, mcqstudio.ErrInsufficientText):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
