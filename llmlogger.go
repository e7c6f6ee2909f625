package mcqstudio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes the model transcript of one upload to its own file
type LLMLogger struct {
	file     *os.File
	mu       sync.Mutex
	uploadID string
	path     string
}

// NewLLMLogger creates <dir>/<uploadID>.log and writes a header
// describing the upload.
func NewLLMLogger(dir, uploadID string, u Upload) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", uploadID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{
		file:     file,
		uploadID: uploadID,
		path:     filename,
	}

	logger.Logf("=== Question Generation Log ===\n")
	logger.Logf("Upload ID: %s\n", uploadID)
	logger.Logf("Document: %s (%d bytes)\n", u.Filename, len(u.Data))
	logger.Logf("Number of Questions: %d\n", u.QuestionCount)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("===============================\n\n")

	return logger, nil
}

// Path returns the transcript file name
func (ll *LLMLogger) Path() string {
	return ll.path
}

// Logf writes a formatted log entry with timestamp
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf(format, args...)
}

func (ll *LLMLogger) logf(format string, args ...interface{}) {
	if ll.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogLLMRequest logs an LLM request
func (ll *LLMLogger) LogLLMRequest(module, prompt string) {
	ll.Logf("=== LLM REQUEST (%s) ===\n", module)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

// LogLLMResponse logs an LLM response
func (ll *LLMLogger) LogLLMResponse(module, response string) {
	ll.Logf("=== LLM RESPONSE (%s) ===\n", module)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogBatchResult logs how many records a generation call produced
func (ll *LLMLogger) LogBatchResult(requested, received int, err error) {
	if err != nil {
		ll.Logf("Generation failed after requesting %d questions: %v\n", requested, err)
		return
	}
	ll.Logf("Generation returned %d of %d requested questions\n", received, requested)
}

// Close closes the log file
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	ll.logf("=== Question Generation Complete ===\n")
	ll.logf("Completed: %s\n", time.Now().Format(time.RFC3339))
	ll.logf("====================================\n")
	err := ll.file.Close()
	ll.file = nil
	return err
}
