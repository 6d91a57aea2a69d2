// Package mining turns raw extracted text into schema candidates and maps
// them onto the global schema.
//
// Mining combines line-anchored label patterns, person-name heuristics for
// owner and veterinarian, a microchip digit-run heuristic and a date
// classifier driven by anchor keywords. Every candidate carries the evidence
// line it came from and a mapping id naming the heuristic that produced it.
//
// The confidence tiers, window sizes and anchor priorities below are
// hand-tuned and kept as named constants so they can be recalibrated.
package mining

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

const (
	// LabelConfidence applies when an explicit label or keyword context
	// was matched.
	LabelConfidence = 0.66
	// FallbackConfidence applies to keyword and shape matches without
	// explicit context.
	FallbackConfidence = 0.50

	// MaxRepeatable is the number of values kept for a repeatable key.
	MaxRepeatable = 3
	// maxValueRunes truncates long free-text values.
	maxValueRunes = 200
	// maxSnippetRunes truncates evidence snippets.
	maxSnippetRunes = 160
)

// Evidence points at the text a candidate was mined from.
type Evidence struct {
	Page    int    `json:"page"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// Candidate is a raw value proposed for a schema key before selection.
type Candidate struct {
	Key        string   `json:"key"`
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	Rank       float64  `json:"rank"`
	MappingID  string   `json:"mapping_id"`
	Evidence   Evidence `json:"evidence"`
}

// Candidates groups candidates by schema key in discovery order.
type Candidates map[string][]Candidate

type line struct {
	text   string
	page   int
	index  int
	offset int
}

// Miner extracts candidates for the keys of a schema contract.
type Miner struct {
	contract  *schema.Contract
	labelRe   *regexp.Regexp
	labelKeys map[string]string
	anchors   anchorSet
}

// New builds a miner for contract.
func New(contract *schema.Contract) *Miner {
	labels := contract.Labels()
	alts := make([]string, 0, len(labels))
	keys := make(map[string]string, len(labels))
	for _, l := range labels {
		if _, dup := keys[l.Text]; dup {
			continue
		}
		keys[l.Text] = l.Key
		alts = append(alts, labelPattern(l.Text))
	}

	return &Miner{
		contract:  contract,
		labelRe:   regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(alts, "|") + `)\s*[:：]`),
		labelKeys: keys,
		anchors:   dateAnchors(contract),
	}
}

func labelPattern(label string) string {
	parts := strings.Fields(label)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

// Mine extracts every candidate from text. Pages are separated by form
// feeds. The result is deterministic for identical input.
func (m *Miner) Mine(text string) Candidates {
	lines := splitLines(text)
	c := &collector{fold: cases.Fold(), seen: make(map[string]int), out: Candidates{}}

	m.mineLabels(lines, c)
	m.mineNames(lines, c)
	m.mineMicrochip(lines, c)
	m.mineDates(text, lines, c)
	m.mineFallbacks(lines, c)

	return c.out
}

type collector struct {
	fold cases.Caser
	seen map[string]int
	out  Candidates
}

// add records a candidate, keeping one per (key, case-folded value). A
// duplicate replaces the kept candidate only when it ranks higher.
func (c *collector) add(cand Candidate) {
	cand.Value = strings.TrimSpace(cand.Value)
	if cand.Value == "" {
		return
	}
	id := cand.Key + "\x00" + c.fold.String(cand.Value)
	if i, ok := c.seen[id]; ok {
		kept := &c.out[cand.Key][i]
		if cand.Rank > kept.Rank || (cand.Rank == kept.Rank && cand.Confidence > kept.Confidence) {
			*kept = cand
		}
		return
	}
	c.seen[id] = len(c.out[cand.Key])
	c.out[cand.Key] = append(c.out[cand.Key], cand)
}

func splitLines(text string) []line {
	var out []line
	offset := 0
	for p, pageText := range strings.Split(text, "\f") {
		for _, raw := range strings.Split(pageText, "\n") {
			out = append(out, line{text: raw, page: p + 1, index: len(out), offset: offset})
			offset += len(raw) + 1
		}
	}
	return out
}

func (l line) evidence() Evidence {
	return Evidence{Page: l.page, Line: l.index + 1, Snippet: truncate(strings.TrimSpace(l.text), maxSnippetRunes)}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":-–. ")
	s = strings.TrimRight(s, " ,;.-–:")
	return truncate(strings.Join(strings.Fields(s), " "), maxValueRunes)
}
