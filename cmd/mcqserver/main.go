package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"mcqstudio"
)

func main() {
	cfg, err := mcqstudio.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	mcqstudio.SetLogger(logger)
	mcqstudio.SetVerbose(cfg.Verbose)

	if cfg.OpenAIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	maker := mcqstudio.NewQuestionMaker(cfg.OpenAIKey, cfg.OpenAIModel)
	gen := mcqstudio.NewLocalGenerator(maker, cfg.MaxUploadBytes, cfg.LogDir)

	srv := newServer(gen, cfg, logger)

	logger.Info("starting generation backend", "port", cfg.Port, "model", cfg.OpenAIModel)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, srv.routes()))
}
