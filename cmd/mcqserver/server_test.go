package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mcqstudio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, gen mcqstudio.Generator, cfg mcqstudio.Config) http.Handler {
	t.Helper()
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newServer(gen, cfg, logger).routes()
}

func generateRequest(t *testing.T, filename string, data []byte, count string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if count != "" {
		require.NoError(t, mw.WriteField("question_count", count))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate-mcqs/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	h := newTestBackend(t, nil, mcqstudio.Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Backend is running fine!"}`, rec.Body.String())
}

func TestGenerate(t *testing.T) {
	var got mcqstudio.Upload
	gen := mcqstudio.GeneratorFunc(func(ctx context.Context, u mcqstudio.Upload) ([]mcqstudio.RawQuestion, error) {
		got = u
		return []mcqstudio.RawQuestion{{
			Question:   "What is the capital of Italy?",
			Type:       "definition",
			Options:    []string{"Rome", "Milan", "Turin", "Naples"},
			Answer:     "Rome",
			Difficulty: "easy",
		}}, nil
	})
	h := newTestBackend(t, gen, mcqstudio.Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, generateRequest(t, "italy.docx", []byte("PK\x03\x04doc"), "10"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "italy.docx", got.Filename)
	assert.Equal(t, 10, got.QuestionCount)
	assert.Equal(t, []byte("PK\x03\x04doc"), got.Data)

	var payload struct {
		MCQs []mcqstudio.RawQuestion `json:"mcqs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.MCQs, 1)
	assert.Equal(t, "Rome", payload.MCQs[0].Answer)
}

func TestGenerateDefaultsQuestionCount(t *testing.T) {
	var count int
	gen := mcqstudio.GeneratorFunc(func(ctx context.Context, u mcqstudio.Upload) ([]mcqstudio.RawQuestion, error) {
		count = u.QuestionCount
		return nil, nil
	})
	h := newTestBackend(t, gen, mcqstudio.Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, generateRequest(t, "a.pdf", []byte("%PDF-"), ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mcqstudio.DefaultQuestionCount, count)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unsupported", mcqstudio.ErrUnsupportedDocument, http.StatusBadRequest},
		{"insufficient text", mcqstudio.ErrInsufficientText, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"model failure", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mcqstudio.GeneratorFunc(func(ctx context.Context, u mcqstudio.Upload) ([]mcqstudio.RawQuestion, error) {
				return nil, tt.err
			})
			h := newTestBackend(t, gen, mcqstudio.Config{})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, generateRequest(t, "a.pdf", []byte("%PDF-"), "5"))

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["detail"])
		})
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	h := newTestBackend(t, nil, mcqstudio.Config{MaxUploadBytes: 16})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-mcqs/", bytes.NewBufferString("plain")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, generateRequest(t, "a.pdf", []byte("%PDF-"), "lots"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question_count must be an integer")
}

func TestGenerateAppliesTimeout(t *testing.T) {
	gen := mcqstudio.GeneratorFunc(func(ctx context.Context, u mcqstudio.Upload) ([]mcqstudio.RawQuestion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newTestBackend(t, gen, mcqstudio.Config{GenerateTimeout: 20 * time.Millisecond})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, generateRequest(t, "a.pdf", []byte("%PDF-"), "5"))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newTestBackend(t, nil, mcqstudio.Config{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/generate-mcqs/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
