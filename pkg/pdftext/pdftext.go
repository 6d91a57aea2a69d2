// Package pdftext extracts readable text from raw PDF bytes without an
// external PDF library.
//
// The engine builds an object table with a flat scan for "N G obj ... endobj"
// records, walks the page tree, decodes ToUnicode CMaps and interprets page
// content streams. Malformed structure never produces an error: the engine
// degrades to whatever text it could recover, possibly none.
//
// Work is bounded by Options: a token cap and array cap per stream, a byte
// cap per decompressed stream, and a wall-clock deadline shared by the whole
// document. When a bound is hit the engine stops accumulating text and marks
// the Result as truncated.
package pdftext

import (
	"strings"
	"time"
)

// PageSeparator separates the text of consecutive pages in Result.Text.
const PageSeparator = "\f"

// Options bounds the work spent on one document.
type Options struct {
	Deadline       time.Time
	MaxTokens      int
	MaxArrayItems  int
	MaxStreamBytes int
}

// DefaultOptions returns the limits used when no configuration is supplied.
// The returned Options carry no deadline.
func DefaultOptions() Options {
	return Options{
		MaxTokens:      500_000,
		MaxArrayItems:  8192,
		MaxStreamBytes: 16 << 20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.MaxArrayItems <= 0 {
		o.MaxArrayItems = d.MaxArrayItems
	}
	if o.MaxStreamBytes <= 0 {
		o.MaxStreamBytes = d.MaxStreamBytes
	}
	return o
}

// Result is the outcome of an extraction.
type Result struct {
	Text      string
	Pages     int
	Chunks    int
	Truncated bool
}

// Extract parses data and returns its text. It is deterministic: identical
// input and limits yield identical output.
func Extract(data []byte, opts Options) Result {
	return Parse(data, opts).Extract()
}

// Document is a parsed PDF object table with its discovered pages.
type Document struct {
	data    []byte
	opts    Options
	budget  *budget
	objects map[int]*object
	ids     []int
	pages   []*page
	cmaps   map[int]*CMap

	truncated bool
	chunks    int
}

// Parse builds the object table and page list for data.
func Parse(data []byte, opts Options) *Document {
	opts = opts.withDefaults()
	d := &Document{
		data:    data,
		opts:    opts,
		budget:  &budget{deadline: opts.Deadline},
		objects: make(map[int]*object),
		cmaps:   make(map[int]*CMap),
	}
	d.scanObjects()
	d.expandObjectStreams()
	d.sortIDs()
	d.discoverPages()
	return d
}

// PageCount returns the number of pages discovered in the document.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// Truncated reports whether any work bound was hit so far.
func (d *Document) Truncated() bool {
	return d.truncated || d.budget.expired()
}

// Extract interprets every page content stream and returns the joined text.
// When no page content can be found it falls back to scanning every stream in
// the file for text objects.
func (d *Document) Extract() Result {
	texts := make([]string, 0, len(d.pages))
	found := false

	for _, p := range d.pages {
		if d.budget.expired() {
			break
		}
		content := d.pageContent(p)
		if len(content) > 0 {
			found = true
		}
		texts = append(texts, d.interpretPage(p, content))
	}

	if !found {
		texts = d.lastResort()
	}

	pages := len(d.pages)
	if pages == 0 {
		pages = len(texts)
	}

	return Result{
		Text:      joinPages(texts),
		Pages:     pages,
		Chunks:    d.chunks,
		Truncated: d.Truncated(),
	}
}

// PageText decodes a content stream obtained elsewhere using the fonts of
// page n (1-based). When n is outside the discovered pages, every font CMap in
// the document is used for the ambiguous-font fallback.
func (d *Document) PageText(n int, content []byte) string {
	if n >= 1 && n <= len(d.pages) {
		return d.interpretPage(d.pages[n-1], content)
	}
	return d.interpretPage(&page{fallback: d.documentCMaps()}, content)
}

func (d *Document) interpretPage(p *page, content []byte) string {
	if len(content) == 0 {
		return ""
	}
	it := newInterpreter(d, content, p)
	chunks := it.run()
	if it.lex.stopped() {
		d.truncated = true
	}
	chunks = sanitize(chunks)
	d.chunks += len(chunks)
	return assemble(chunks)
}

func joinPages(texts []string) string {
	for len(texts) > 0 && texts[len(texts)-1] == "" {
		texts = texts[:len(texts)-1]
	}
	return strings.Join(texts, PageSeparator)
}
