package mcqstudio

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment driven configuration shared by the commands
type Config struct {
	OpenAIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIModel     string        `env:"MCQ_OPENAI_MODEL" envDefault:"gpt-4o"`
	BackendURL      string        `env:"MCQ_BACKEND_URL"`
	Port            string        `env:"PORT" envDefault:"8180"`
	SessionKey      string        `env:"MCQ_SESSION_KEY" envDefault:"mcqstudio-dev-session-key"`
	SecureCookies   bool          `env:"MCQ_SECURE_COOKIES"`
	ArchivePath     string        `env:"MCQ_ARCHIVE_DB" envDefault:"./mcqs.db"`
	GenerateTimeout time.Duration `env:"MCQ_GENERATE_TIMEOUT" envDefault:"2m"`
	MaxUploadBytes  int64         `env:"MCQ_MAX_UPLOAD_BYTES" envDefault:"5242880"`
	AllowedOrigins  []string      `env:"MCQ_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogDir          string        `env:"MCQ_LOG_DIR" envDefault:"log"`
	Verbose         bool          `env:"MCQ_VERBOSE"`
}

// LoadConfig reads Config from the environment
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// NewGenerator picks the generation backend: a remote service when
// BackendURL is set, otherwise the OpenAI model in-process.
func (c Config) NewGenerator() (Generator, error) {
	if c.BackendURL != "" {
		client := NewServiceClient(c.BackendURL, c.GenerateTimeout)
		client.SetMaxUploadBytes(c.MaxUploadBytes)
		return client, nil
	}
	if c.OpenAIKey == "" {
		return nil, fmt.Errorf("no generation backend: set MCQ_BACKEND_URL or OPENAI_API_KEY")
	}
	maker := NewQuestionMaker(c.OpenAIKey, c.OpenAIModel)
	return NewLocalGenerator(maker, c.MaxUploadBytes, c.LogDir), nil
}
