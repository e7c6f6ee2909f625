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

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	mcqstudio.SetLogger(logger)
	mcqstudio.SetVerbose(cfg.Verbose)

	gen, err := cfg.NewGenerator()
	if err != nil {
		log.Fatalf("Failed to configure generation: %v", err)
	}

	archive, err := mcqstudio.OpenArchive(cfg.ArchivePath)
	if err != nil {
		log.Fatalf("Failed to open archive: %v", err)
	}
	defer archive.Close()

	server := NewServer(gen, newCookieStore(cfg), archive, cfg, logger)

	logger.Info("starting review server", "port", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Routes()))
}
