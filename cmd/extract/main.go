// Command extract runs text extraction, the quality gate and candidate
// mining on one PDF and prints the outcome as JSON. It touches neither the
// database nor blob storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/JaimeStill/vetrecords/internal/extraction"
	"github.com/JaimeStill/vetrecords/internal/mining"
	"github.com/JaimeStill/vetrecords/internal/schema"
	"github.com/JaimeStill/vetrecords/pkg/formatting"
	"github.com/JaimeStill/vetrecords/pkg/quality"
)

type report struct {
	File      string                      `json:"file"`
	Size      string                      `json:"size"`
	Extractor extraction.Extractor        `json:"extractor"`
	Pages     int                         `json:"pages"`
	Truncated bool                        `json:"truncated"`
	Language  string                      `json:"language"`
	Quality   quality.Report              `json:"quality"`
	Values    map[string]any              `json:"values,omitempty"`
	Evidence  map[string][]mining.Evidence `json:"evidence,omitempty"`
	Text      string                      `json:"text,omitempty"`
}

func main() {
	var (
		timeout  = flag.Duration("timeout", 30*time.Second, "Parse timeout")
		fallback = flag.Bool("fallback", false, "Skip the pdfcpu extractor")
		text     = flag.Bool("text", false, "Include the extracted text")
		evidence = flag.Bool("evidence", false, "Include mining evidence")
		language = flag.String("language", "es", "Language assumed when detection is inconclusive")
		verbose  = flag.Bool("v", false, "Log extraction details to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: extract [flags] <file.pdf>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	primary := !*fallback
	cfg := extraction.Config{
		ParseTimeout:   timeout.String(),
		PrimaryEnabled: &primary,
	}
	if err := cfg.Finalize(nil); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(2)
	}

	out, err := run(flag.Arg(0), cfg, logger, *language, *text, *evidence)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}

	if !out.Quality.Pass {
		os.Exit(3)
	}
}

func run(path string, cfg extraction.Config, logger *slog.Logger, language string, withText, withEvidence bool) (*report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	contract, err := schema.Load()
	if err != nil {
		return nil, fmt.Errorf("load schema contract: %w", err)
	}

	res, err := extraction.New(cfg, logger).Extract(context.Background(), data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	out := &report{
		File:      path,
		Size:      formatting.FormatBytes(int64(len(data)), 1),
		Extractor: res.Extractor,
		Pages:     res.Pages,
		Truncated: res.Truncated,
		Language:  mining.DetectLanguage(res.Text, language),
		Quality:   quality.Evaluate(res.Text),
	}

	if !out.Quality.Pass {
		return out, nil
	}

	mapping := mining.MapToSchema(contract, mining.New(contract).Mine(res.Text))
	out.Values = mapping.Values(contract)
	if withEvidence {
		out.Evidence = mapping.Evidence()
	}
	if withText {
		out.Text = res.Text
	}
	return out, nil
}
