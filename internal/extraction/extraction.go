// Package extraction selects between the pdfcpu-backed extractor and the
// dependency-free pdftext engine.
//
// The primary path lets pdfcpu resolve the file structure (cross-reference
// streams, object streams, every stream filter) and hands the decoded page
// content to the pdftext interpreter, which owns font and CMap handling. The
// fallback path runs pdftext alone and never fails on malformed input.
package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JaimeStill/vetrecords/pkg/pdftext"
)

// Extractor identifies the path that produced a Result.
type Extractor string

const (
	Primary  Extractor = "primary"
	Fallback Extractor = "fallback"
)

// Result is the text recovered from one document.
type Result struct {
	Text      string    `json:"text"`
	Extractor Extractor `json:"extractor"`
	Pages     int       `json:"pages"`
	Truncated bool      `json:"truncated"`
}

// Extract is the function signature consumed by the run pipeline.
type Extract func(ctx context.Context, data []byte) (Result, error)

// Engine runs extraction under the configured limits.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine from a finalized Config.
func New(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With("system", "extraction"),
	}
}

// Extract returns the text of data. The parser deadline is the earlier of
// the context deadline and the configured parse timeout.
func (e *Engine) Extract(ctx context.Context, data []byte) (Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Result{}, ErrEmptyDocument
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	opts := e.cfg.Options(e.deadline(ctx))

	if e.cfg.Primary() {
		result, err := e.primary(ctx, data, opts)
		switch {
		case err == nil && strings.TrimSpace(result.Text) != "":
			return result, nil
		case err != nil:
			e.logger.Debug("primary extractor failed", "error", err)
		default:
			e.logger.Debug("primary extractor produced no text")
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
	}

	r := pdftext.Extract(data, opts)
	return Result{
		Text:      r.Text,
		Extractor: Fallback,
		Pages:     r.Pages,
		Truncated: r.Truncated,
	}, nil
}

func (e *Engine) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(e.cfg.ParseTimeoutDuration())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

func (e *Engine) primary(ctx context.Context, data []byte, opts pdftext.Options) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPrimaryPanic, r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return Result{}, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return Result{}, fmt.Errorf("validate pdf: %w", err)
	}

	doc := pdftext.Parse(data, opts)
	texts := make([]string, 0, pctx.PageCount)
	truncated := false

	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if deadlinePassed(opts) {
			truncated = true
			break
		}

		content, err := pageContent(pctx, pageNr)
		if err != nil {
			return Result{}, fmt.Errorf("page %d content: %w", pageNr, err)
		}
		texts = append(texts, doc.PageText(pageNr, content))
	}

	for len(texts) > 0 && texts[len(texts)-1] == "" {
		texts = texts[:len(texts)-1]
	}

	return Result{
		Text:      strings.Join(texts, pdftext.PageSeparator),
		Extractor: Primary,
		Pages:     pctx.PageCount,
		Truncated: truncated || doc.Truncated(),
	}, nil
}

func pageContent(pctx *model.Context, pageNr int) ([]byte, error) {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	return io.ReadAll(r)
}

func deadlinePassed(opts pdftext.Options) bool {
	return !opts.Deadline.IsZero() && time.Now().After(opts.Deadline)
}

// PageCount returns the number of pages pdfcpu finds in data.
func PageCount(data []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return count, nil
}
