package mining

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

// Anchor priorities decide which date key a date token belongs to when
// several anchors fall inside its window.
const (
	PriorityVisit     = 4
	PriorityAdmission = 3
	PriorityDocument  = 2
	PriorityFallback  = 1

	// dateWindow is the number of characters inspected on each side of a
	// date token for anchor keywords.
	dateWindow = 70

	keyVisitDate    = "visit_date"
	keyDocumentDate = "document_date"
)

var anchorPriority = map[string]int{
	keyVisitDate:     PriorityVisit,
	"admission_date": PriorityAdmission,
	"discharge_date": PriorityAdmission,
	keyDocumentDate:  PriorityDocument,
}

const monthNames = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre|` +
	`ene|feb|mar|abr|may|jun|jul|ago|sep|sept|oct|nov|dic|` +
	`january|february|march|april|june|july|august|september|october|november|december|` +
	`jan|apr|aug|dec`

var (
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})\b`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(?:de\s+)?(` + monthNames + `)\.?,?\s+(?:de\s+|del\s+)?(\d{4})\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b(` + monthNames + `)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)

	dateTokenRe = regexp.MustCompile(`(?i)\b\d{4}-\d{1,2}-\d{1,2}\b|\b\d{1,2}[/.-]\d{1,2}[/.-](?:\d{4}|\d{2})\b|\b\d{1,2}\s+(?:de\s+)?(?:` + monthNames + `)\.?,?\s+(?:de\s+|del\s+)?\d{4}\b|\b(?:` + monthNames + `)\.?\s+\d{1,2},?\s+\d{4}\b`)

	birthContextRe = regexp.MustCompile(`(?i)(nacimiento|f\.\s?nac|nacid[oa]|birth|born|d\.o\.b|caducidad|expir|pr[oó]xima|next\s+due)`)
)

var months = map[string]time.Month{
	"enero": 1, "ene": 1, "january": 1, "jan": 1,
	"febrero": 2, "feb": 2, "february": 2,
	"marzo": 3, "mar": 3, "march": 3,
	"abril": 4, "abr": 4, "april": 4, "apr": 4,
	"mayo": 5, "may": 5,
	"junio": 6, "jun": 6, "june": 6,
	"julio": 7, "jul": 7, "july": 7,
	"agosto": 8, "ago": 8, "august": 8, "aug": 8,
	"septiembre": 9, "setiembre": 9, "sep": 9, "sept": 9, "september": 9,
	"octubre": 10, "oct": 10, "october": 10,
	"noviembre": 11, "nov": 11, "november": 11,
	"diciembre": 12, "dic": 12, "december": 12, "dec": 12,
}

type dateAnchor struct {
	key      string
	label    string
	priority int
}

type anchorSet struct {
	re      *regexp.Regexp
	byLabel map[string]dateAnchor
}

// dateAnchors collects the labels of every date key as anchor keywords,
// longest first.
func dateAnchors(contract *schema.Contract) anchorSet {
	var anchors []dateAnchor
	for _, k := range contract.KeysOf(schema.TypeDate) {
		priority, ok := anchorPriority[k.Key]
		if !ok {
			priority = PriorityDocument
		}
		for _, l := range k.Labels {
			anchors = append(anchors, dateAnchor{key: k.Key, label: strings.ToLower(l), priority: priority})
		}
	}
	slices.SortStableFunc(anchors, func(a, b dateAnchor) int {
		return utf8.RuneCountInString(b.label) - utf8.RuneCountInString(a.label)
	})

	set := anchorSet{byLabel: make(map[string]dateAnchor, len(anchors))}
	alts := make([]string, 0, len(anchors))
	for _, a := range anchors {
		if _, dup := set.byLabel[a.label]; dup {
			continue
		}
		set.byLabel[a.label] = a
		alts = append(alts, labelPattern(a.label))
	}
	if len(alts) > 0 {
		set.re = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(` + strings.Join(alts, "|") + `)(?:[^\p{L}]|$)`)
	}
	return set
}

type anchorHit struct {
	anchor    dateAnchor
	distance  int
	preceding bool
}

// mineDates classifies every date token by the anchors found within
// dateWindow characters. Unanchored dates fall back to document_date and are
// never promoted to visit_date.
func (m *Miner) mineDates(text string, lines []line, c *collector) {
	for _, loc := range dateTokenRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if birthContext(text, start) || NormalizeDate(text[start:end]) == "" {
			continue
		}
		l := lineAt(lines, start)

		hit, ok := m.nearestAnchor(text, start, end)
		if !ok {
			if m.contract.Has(keyDocumentDate) {
				c.add(Candidate{
					Key:        keyDocumentDate,
					Value:      text[start:end],
					Confidence: FallbackConfidence,
					Rank:       PriorityFallback,
					MappingID:  "date:fallback",
					Evidence:   l.evidence(),
				})
			}
			continue
		}
		c.add(Candidate{
			Key:        hit.anchor.key,
			Value:      text[start:end],
			Confidence: LabelConfidence,
			Rank:       float64(hit.anchor.priority),
			MappingID:  "anchor:" + hit.anchor.key + ":" + hit.anchor.label,
			Evidence:   l.evidence(),
		})
	}
}

// nearestAnchor returns the highest priority anchor in the window around
// [start, end). Equal priorities go to the closest anchor, preceding
// anchors winning a distance tie.
func (m *Miner) nearestAnchor(text string, start, end int) (anchorHit, bool) {
	if m.anchors.re == nil {
		return anchorHit{}, false
	}
	lo := runesBefore(text, start, dateWindow)
	hi := runesAfter(text, end, dateWindow)

	var hits []anchorHit
	collect := func(segment string, offset int, preceding bool) {
		for _, match := range m.anchors.re.FindAllStringSubmatchIndex(segment, -1) {
			label := strings.ToLower(strings.Join(strings.Fields(segment[match[2]:match[3]]), " "))
			a, ok := m.anchors.byLabel[label]
			if !ok {
				continue
			}
			h := anchorHit{anchor: a, preceding: preceding}
			if preceding {
				h.distance = utf8.RuneCountInString(text[offset+match[3] : start])
			} else {
				h.distance = utf8.RuneCountInString(text[end : offset+match[2]])
			}
			hits = append(hits, h)
		}
	}
	collect(text[lo:start], lo, true)
	collect(text[end:hi], end, false)
	if len(hits) == 0 {
		return anchorHit{}, false
	}

	slices.SortStableFunc(hits, func(a, b anchorHit) int {
		if a.anchor.priority != b.anchor.priority {
			return b.anchor.priority - a.anchor.priority
		}
		if a.distance != b.distance {
			return a.distance - b.distance
		}
		if a.preceding != b.preceding {
			if a.preceding {
				return -1
			}
			return 1
		}
		return 0
	})
	return hits[0], true
}

// birthContext reports whether the text on the same line before a date
// marks it as a birth or expiry date rather than a record date.
func birthContext(text string, start int) bool {
	lineStart := strings.LastIndexAny(text[:start], "\n\f") + 1
	return birthContextRe.MatchString(text[lineStart:start])
}

func lineAt(lines []line, offset int) line {
	i, found := slices.BinarySearchFunc(lines, offset, func(l line, off int) int {
		return l.offset - off
	})
	if !found {
		i--
	}
	return lines[max(0, i)]
}

// runesBefore returns the byte offset n characters before i.
func runesBefore(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

// runesAfter returns the byte offset n characters after i.
func runesAfter(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// NormalizeDate converts a raw date token to YYYY-MM-DD. Numeric dates are
// read day first unless the second part cannot be a month. Two-digit years
// below 70 are placed in the 2000s. It returns an empty string when s is not
// a valid calendar date.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	var y, mo, d int
	switch {
	case isoDateRe.MatchString(s):
		p := isoDateRe.FindStringSubmatch(s)
		y, mo, d = atoi(p[1]), atoi(p[2]), atoi(p[3])
	case numericDateRe.MatchString(s):
		p := numericDateRe.FindStringSubmatch(s)
		d, mo, y = atoi(p[1]), atoi(p[2]), atoi(p[3])
		if mo > 12 && d <= 12 {
			d, mo = mo, d
		}
		y = expandYear(p[3], y)
	case dayMonthRe.MatchString(s):
		p := dayMonthRe.FindStringSubmatch(s)
		d, mo, y = atoi(p[1]), int(months[strings.ToLower(p[2])]), atoi(p[3])
	case monthDayRe.MatchString(s):
		p := monthDayRe.FindStringSubmatch(s)
		mo, d, y = int(months[strings.ToLower(p[1])]), atoi(p[2]), atoi(p[3])
	default:
		return ""
	}

	if mo < 1 || mo > 12 || d < 1 {
		return ""
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != mo {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
}

func expandYear(raw string, y int) int {
	if len(raw) != 2 {
		return y
	}
	if y < 70 {
		return 2000 + y
	}
	return 1900 + y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
