package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"mcqstudio"
	"mcqstudio/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionName = "mcq-session"
	reviewKey   = "review_id"
)

// Server is the review shell: it keeps one review Store per browser
// session in memory and exposes the review and export operations.
type Server struct {
	gen     mcqstudio.Generator
	cookies sessions.Store
	sink    mcqstudio.Sink
	cfg     mcqstudio.Config
	logger  *slog.Logger

	mu      sync.Mutex
	reviews map[string]*mcqstudio.Store
}

// NewServer creates a review server. sink may be nil when exports should
// only be downloaded.
func NewServer(gen mcqstudio.Generator, cookies sessions.Store, sink mcqstudio.Sink, cfg mcqstudio.Config, logger *slog.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = mcqstudio.DefaultMaxUploadBytes
	}
	return &Server{
		gen:     gen,
		cookies: cookies,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		reviews: make(map[string]*mcqstudio.Store),
	}
}

// newCookieStore signs session cookies with cfg.SessionKey. Browsers never
// send Secure cookies back over plain HTTP, so the flag is opt-in.
func newCookieStore(cfg mcqstudio.Config) *sessions.CookieStore {
	cookies := sessions.NewCookieStore([]byte(cfg.SessionKey))
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = cfg.SecureCookies
	cookies.Options.SameSite = http.SameSiteLaxMode
	return cookies
}

// Routes returns the HTTP handler of the server
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpx.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Post("/upload", s.handleUpload)
	r.Post("/restart", s.handleRestart)

	r.Group(func(r chi.Router) {
		r.Use(s.requireReview)

		r.Get("/questions", s.handleQuestions)
		r.Get("/stats", s.handleStats)
		r.Get("/accepted", s.handleAccepted)
		r.Post("/questions/{id}/edit", s.handleBeginEdit)
		r.Post("/questions/{id}/commit", s.handleCommitEdit)
		r.Post("/questions/{id}/classify", s.handleClassify)
		r.Delete("/questions/{id}", s.handleDelete)
		r.Post("/edit/cancel", s.handleCancelEdit)
		r.Get("/export/{format}", s.handleExport)
	})
	return r
}

type reviewCtxKey struct{}

// requireReview loads the Store of the caller's session or answers 404
func (s *Server) requireReview(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := s.currentReview(r)
		if !ok {
			httpx.WriteDetail(w, http.StatusNotFound, "No questions loaded. Upload a document first.")
			return
		}
		ctx := context.WithValue(r.Context(), reviewCtxKey{}, store)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func reviewFrom(r *http.Request) *mcqstudio.Store {
	return r.Context().Value(reviewCtxKey{}).(*mcqstudio.Store)
}

func (s *Server) currentReview(r *http.Request) (*mcqstudio.Store, bool) {
	session, err := s.cookies.Get(r, sessionName)
	if err != nil {
		return nil, false
	}
	id, ok := session.Values[reviewKey].(string)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.reviews[id]
	return store, ok
}

type reviewResponse struct {
	Questions []mcqstudio.Question `json:"questions"`
	Stats     mcqstudio.Stats      `json:"stats"`
	Ready     bool                 `json:"ready"`
}

func newReviewResponse(store *mcqstudio.Store) reviewResponse {
	return reviewResponse{
		Questions: store.Questions(),
		Stats:     store.Stats(),
		Ready:     store.Ready(),
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("File too large (max %d bytes)", s.cfg.MaxUploadBytes))
			return
		}
		httpx.WriteDetail(w, http.StatusBadRequest, "Expected a multipart form with a PDF or DOCX file")
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
		if count, err = strconv.Atoi(raw); err != nil {
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

	store, err := mcqstudio.StartSession(ctx, s.gen, mcqstudio.Upload{
		Filename:      header.Filename,
		Data:          data,
		QuestionCount: count,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	session, _ := s.cookies.Get(r, sessionName)
	reviewID := uuid.NewString()

	s.mu.Lock()
	if old, ok := session.Values[reviewKey].(string); ok {
		delete(s.reviews, old)
	}
	s.reviews[reviewID] = store
	s.mu.Unlock()

	session.Values[reviewKey] = reviewID
	if err := session.Save(r, w); err != nil {
		s.logger.Error("session save error", "error", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	s.logger.Info("review session started", "review_id", reviewID, "questions", store.Len())
	httpx.WriteJSON(w, http.StatusCreated, newReviewResponse(store))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	session, _ := s.cookies.Get(r, sessionName)
	if id, ok := session.Values[reviewKey].(string); ok {
		s.mu.Lock()
		delete(s.reviews, id)
		s.mu.Unlock()
	}
	delete(session.Values, reviewKey)
	if err := session.Save(r, w); err != nil {
		s.logger.Error("session save error", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, newReviewResponse(reviewFrom(r)))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, reviewFrom(r).Stats())
}

func (s *Server) handleAccepted(w http.ResponseWriter, r *http.Request) {
	accepted := reviewFrom(r).AcceptedSubset()
	if accepted == nil {
		accepted = []mcqstudio.Question{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"questions": accepted})
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}
	draft, err := reviewFrom(r).BeginEdit(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, draft)
}

func (s *Server) handleCommitEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}

	var draft mcqstudio.EditDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Invalid draft body")
		return
	}
	draft.QuestionID = id

	q, err := reviewFrom(r).CommitEdit(draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	reviewFrom(r).CancelEdit()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}

	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Invalid classify body")
		return
	}
	state, valid := mcqstudio.ParseReviewState(body.State)
	if !valid {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("Unknown review state %q", body.State))
		return
	}

	store := reviewFrom(r)
	if err := store.Classify(id, state); err != nil {
		s.writeError(w, err)
		return
	}
	q, err := store.Question(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}
	store := reviewFrom(r)
	if err := store.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newReviewResponse(store))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := mcqstudio.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		httpx.WriteDetail(w, http.StatusNotFound, err.Error())
		return
	}

	artifact, err := mcqstudio.Render(reviewFrom(r).AcceptedSubset(), format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.sink != nil {
		if err := s.sink.Deliver(r.Context(), artifact); err != nil {
			// The download still goes out, only the archive copy is missing
			s.logger.Error("failed to archive export", "filename", artifact.Filename, "error", err)
		}
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Data)
}

func questionID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Question id must be an integer")
		return 0, false
	}
	return id, true
}

// writeError maps review, upload and upstream failures to HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var upstream *mcqstudio.UpstreamError
	switch {
	case errors.As(err, &upstream):
		httpx.WriteDetail(w, http.StatusBadGateway, upstream.Message)
		return
	case errors.Is(err, mcqstudio.ErrUnsupportedDocument),
		errors.Is(err, mcqstudio.ErrDocumentTooLarge),
		errors.Is(err, mcqstudio.ErrInvalidQuestionCount),
		errors.Is(err, mcqstudio.ErrInsufficientText):
		httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteDetail(w, http.StatusGatewayTimeout, "Question generation timed out")
		return
	}

	status := http.StatusInternalServerError
	switch mcqstudio.CodeOf(err) {
	case mcqstudio.CodeDataIntegrity, mcqstudio.CodeValidation:
		status = http.StatusUnprocessableEntity
	case mcqstudio.CodeInvalidState:
		status = http.StatusConflict
	case mcqstudio.CodeNotFound:
		status = http.StatusNotFound
	case mcqstudio.CodeEmptyExport:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	httpx.WriteDetail(w, status, err.Error())
}
