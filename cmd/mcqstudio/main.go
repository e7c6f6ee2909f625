package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mcqstudio"
)

func main() {
	var (
		input      = flag.String("input", "", "PDF or DOCX document to generate questions from (required)")
		questions  = flag.Int("questions", mcqstudio.DefaultQuestionCount, "Number of questions to generate (3, 5, 10, 15, 20 or 25)")
		backend    = flag.String("backend", "", "Generation backend URL (or set MCQ_BACKEND_URL); uses OpenAI directly when empty")
		apiKey     = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		formats    = flag.String("formats", "txt,pdf,docx", "Comma separated export formats")
		outputDir  = flag.String("output", ".", "Directory to write exports to")
		archiveDB  = flag.String("archive", "", "Also record exports in this sqlite database")
		acceptAll  = flag.Bool("accept-all", false, "Accept every generated question without interactive review")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
		timeoutArg = flag.Duration("timeout", 0, "Generation timeout (default from MCQ_GENERATE_TIMEOUT)")
	)

	flag.Parse()

	cfg, err := mcqstudio.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	mcqstudio.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	mcqstudio.SetVerbose(*verbose || cfg.Verbose)

	if *input == "" {
		log.Fatal("Input document is required. Use -input flag.")
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}
	if *apiKey != "" {
		cfg.OpenAIKey = *apiKey
	}
	if *timeoutArg > 0 {
		cfg.GenerateTimeout = *timeoutArg
	}

	exportFormats, err := parseFormats(*formats)
	if err != nil {
		log.Fatal(err)
	}

	gen, err := cfg.NewGenerator()
	if err != nil {
		log.Fatal(err)
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}

	fmt.Printf("⏳ Generating %d questions from %s... (this may take a moment)\n", *questions, filepath.Base(*input))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GenerateTimeout)
	defer cancel()

	store, err := mcqstudio.StartSession(ctx, gen, mcqstudio.Upload{
		Filename:      filepath.Base(*input),
		Data:          data,
		QuestionCount: *questions,
	})
	if err != nil {
		log.Fatalf("Failed to generate questions: %v", err)
	}

	if *acceptAll {
		for _, q := range store.Questions() {
			if err := store.Classify(q.ID, mcqstudio.StateAccepted); err != nil {
				log.Fatalf("Failed to accept question %d: %v", q.ID, err)
			}
		}
	} else {
		rv := newReviewer(store, bufio.NewScanner(os.Stdin), os.Stdout)
		if !rv.run() {
			fmt.Println("Review abandoned, nothing exported.")
			return
		}
	}

	sinks := []mcqstudio.Sink{mcqstudio.DirSink{Dir: *outputDir}}
	if *archiveDB != "" {
		archive, err := mcqstudio.OpenArchive(*archiveDB)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		defer archive.Close()
		sinks = append(sinks, archive)
	}

	if err := exportAll(context.Background(), store.AcceptedSubset(), exportFormats, sinks); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	fmt.Printf("🎉 Exported %d question(s) to %s\n", len(store.AcceptedSubset()), *outputDir)
}

func parseFormats(list string) ([]mcqstudio.Format, error) {
	var out []mcqstudio.Format
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := mcqstudio.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no export formats given")
	}
	return out, nil
}

// exportAll renders every format and hands each artifact to every sink
func exportAll(ctx context.Context, accepted []mcqstudio.Question, formats []mcqstudio.Format, sinks []mcqstudio.Sink) error {
	for _, f := range formats {
		start := time.Now()
		artifact, err := mcqstudio.Render(accepted, f)
		if err != nil {
			return err
		}
		for _, sink := range sinks {
			if err := sink.Deliver(ctx, artifact); err != nil {
				return err
			}
		}
		mcqstudio.VerboseLog("export delivered", "format", f, "elapsed", time.Since(start))
	}
	return nil
}
