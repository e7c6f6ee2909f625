package mcqstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator turns an uploaded document into generation records
type Generator interface {
	Generate(ctx context.Context, u Upload) ([]RawQuestion, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, u Upload) ([]RawQuestion, error)

// Generate calls f(ctx, u)
func (f GeneratorFunc) Generate(ctx context.Context, u Upload) ([]RawQuestion, error) {
	return f(ctx, u)
}

// StartSession generates questions for an upload and ingests them. Either
// a fully populated Store or an error is returned, never a partial Store.
func StartSession(ctx context.Context, gen Generator, u Upload) (*Store, error) {
	Logger().Info("starting review session", "document", u.Filename, "question_count", u.QuestionCount)

	records, err := gen.Generate(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(records) != u.QuestionCount {
		Logger().Warn("generator returned a different number of questions",
			"requested", u.QuestionCount, "received", len(records))
	}

	store, err := Ingest(records)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// maxResponseBytes bounds how much of a generation response is read
const maxResponseBytes = 10 << 20

// ServiceClient calls a remote generation backend over HTTP
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
	maxBytes   int64
}

// NewServiceClient creates a client for the backend at baseURL
func NewServiceClient(baseURL string, timeout time.Duration) *ServiceClient {
	return &ServiceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   DefaultMaxUploadBytes,
	}
}

// SetMaxUploadBytes changes the upload size bound checked before sending
func (c *ServiceClient) SetMaxUploadBytes(n int64) {
	c.maxBytes = n
}

// Generate posts the document to /generate-mcqs/ and decodes the records
func (c *ServiceClient) Generate(ctx context.Context, u Upload) ([]RawQuestion, error) {
	if _, err := ValidateUpload(u, c.maxBytes); err != nil {
		return nil, err
	}

	body, contentType, err := multipartUpload(u)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/generate-mcqs/?" + url.Values{
		"question_count": {strconv.Itoa(u.QuestionCount)},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	VerboseLog("calling generation service", "url", endpoint, "bytes", len(u.Data))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach generation service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeUpstreamError(resp, data)
	}

	var payload struct {
		MCQs []RawQuestion `json:"mcqs"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	return payload.MCQs, nil
}

func multipartUpload(u Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", u.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(u.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.WriteField("question_count", strconv.Itoa(u.QuestionCount)); err != nil {
		return nil, "", fmt.Errorf("failed to write question count: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// decodeUpstreamError prefers the backend's {"detail": ...} message, then
// the body text, then the HTTP status text.
func decodeUpstreamError(resp *http.Response, body []byte) *UpstreamError {
	e := &UpstreamError{Status: resp.StatusCode}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Detail json.RawMessage `json:"detail"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
			if msg := detailMessage(payload.Detail); msg != "" {
				e.Message = msg
				return e
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		e.Message = text
		return e
	}

	e.Message = fmt.Sprintf("generation service returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return e
}

// detailMessage reads a detail that is either a string or a list of
// {"msg": ...} validation entries.
func detailMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// QuestionSource produces records from extracted document text
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, text string, count int, logger *LLMLogger) ([]RawQuestion, error)
}

// LocalGenerator extracts the document text in-process and hands it to a
// QuestionSource such as QuestionMaker.
type LocalGenerator struct {
	source   QuestionSource
	maxBytes int64
	logDir   string
}

// NewLocalGenerator creates a generator. When logDir is not empty every
// upload gets an LLM transcript there.
func NewLocalGenerator(source QuestionSource, maxBytes int64, logDir string) *LocalGenerator {
	return &LocalGenerator{
		source:   source,
		maxBytes: maxBytes,
		logDir:   logDir,
	}
}

// Generate validates the upload, extracts its text and generates questions
func (g *LocalGenerator) Generate(ctx context.Context, u Upload) ([]RawQuestion, error) {
	docType, err := ValidateUpload(u, g.maxBytes)
	if err != nil {
		return nil, err
	}

	text, err := ExtractText(ctx, docType, u.Data)
	if err != nil {
		return nil, err
	}
	if len([]rune(strings.TrimSpace(text))) < MinDocumentText {
		return nil, fmt.Errorf("%w (minimum %d characters required)", ErrInsufficientText, MinDocumentText)
	}

	var llmLogger *LLMLogger
	if g.logDir != "" {
		llmLogger, err = NewLLMLogger(g.logDir, uuid.NewString(), u)
		if err != nil {
			// Continue without a transcript rather than failing the upload
			Logger().Warn("failed to create llm logger", "error", err)
			llmLogger = nil
		} else {
			defer llmLogger.Close()
		}
	}

	records, err := g.source.GenerateQuestions(ctx, text, u.QuestionCount, llmLogger)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("model returned no questions")
	}
	return records, nil
}
