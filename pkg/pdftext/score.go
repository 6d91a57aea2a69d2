package pdftext

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// emptyScore ranks empty text below any non-empty decoding.
const emptyScore = -2

// Readability limits applied to chunks decoded through the ambiguous-font
// fallback.
const (
	minLetterRatio   = 0.45
	maxDigitRatio    = 0.15
	maxPunctRatio    = 0.25
	minVowelRatio    = 0.25
	maxConsonantRun  = 5
	capsCheckMinLen  = 6
	maxUpperRatio    = 0.7
	capsMinVowelRate = 0.3
)

// isVowel reports whether r is a vowel in Spanish or English text, accented
// forms included.
func isVowel(r rune) bool {
	return strings.ContainsRune("aeiouáéíóúàèìòùäëïöüâêîôû", unicode.ToLower(r))
}

type textStats struct {
	total, letters, vowels, upper, digits, spaces, punct int
	consonantRun                                          int
}

func measure(s string) textStats {
	var st textStats
	run := 0
	for _, r := range s {
		st.total++
		switch {
		case unicode.IsLetter(r):
			st.letters++
			if unicode.IsUpper(r) {
				st.upper++
			}
			if isVowel(r) {
				st.vowels++
				run = 0
			} else {
				run++
				st.consonantRun = max(st.consonantRun, run)
			}
			continue
		case unicode.IsDigit(r):
			st.digits++
		case unicode.IsSpace(r):
			st.spaces++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			st.punct++
		}
		run = 0
	}
	return st
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// DecodeQuality scores a candidate decoding as
// letter + vowel + 0.5*space - 1.5*punctuation, where each term is a ratio
// over the whitespace-collapsed text and the vowel ratio is taken among
// letters.
func DecodeQuality(text string) float64 {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return emptyScore
	}
	st := measure(text)
	return ratio(st.letters, st.total) +
		ratio(st.vowels, st.letters) +
		0.5*ratio(st.spaces, st.total) -
		1.5*ratio(st.punct, st.total)
}

// Readable reports whether a decoded chunk looks like natural-language text.
func Readable(chunk string) bool {
	chunk = strings.TrimSpace(chunk)
	n := utf8.RuneCountInString(chunk)
	if n < 3 {
		if n == 0 {
			return false
		}
		for _, r := range chunk {
			if !unicode.IsLetter(r) {
				return false
			}
		}
		return true
	}

	st := measure(chunk)
	nonSpace := st.total - st.spaces
	switch {
	case ratio(st.letters, nonSpace) < minLetterRatio:
		return false
	case ratio(st.digits, nonSpace) > maxDigitRatio:
		return false
	case ratio(st.punct, nonSpace) > maxPunctRatio:
		return false
	case ratio(st.vowels, st.letters) < minVowelRatio:
		return false
	case st.consonantRun > maxConsonantRun:
		return false
	}
	if st.letters >= capsCheckMinLen &&
		ratio(st.upper, st.letters) > maxUpperRatio &&
		ratio(st.vowels, st.letters) < capsMinVowelRate {
		return false
	}
	return true
}

// numericChunk reports whether s is made of digits with date or amount
// separators only.
func numericChunk(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(" .,/:-", r):
		default:
			return false
		}
	}
	return digits > 0
}

// sanitize drops untrusted chunks that fail the readability test and chunks
// repeating the one just kept.
func sanitize(chunks []chunk) []chunk {
	out := chunks[:0]
	prev := ""
	pendingBreak := false
	for _, c := range chunks {
		pendingBreak = pendingBreak || c.newline
		text := strings.TrimSpace(c.text)
		if text == "" {
			if len(out) > 0 {
				out[len(out)-1].text += " "
			}
			continue
		}
		if !c.trusted && !numericChunk(text) && !Readable(text) {
			continue
		}
		if text == prev {
			continue
		}
		c.newline = pendingBreak
		pendingBreak = false
		prev = text
		out = append(out, c)
	}
	return out
}

// assemble stitches chunks line by line and collapses whitespace.
func assemble(chunks []chunk) string {
	var lines []string
	var line []string
	flush := func() {
		if s := collapse(Stitch(line)); s != "" {
			lines = append(lines, s)
		}
		line = line[:0]
	}
	for _, c := range chunks {
		if c.newline {
			flush()
		}
		line = append(line, c.text)
	}
	flush()
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Stitch concatenates chunks of one line. No space is inserted at a boundary
// formed by punctuation, brackets or hyphens, or between two short fragments
// that look like the halves of one split word. Any other boundary gets exactly
// one space.
func Stitch(chunks []string) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 && needsSpace(chunks[i-1], c) {
			b.WriteByte(' ')
		}
		b.WriteString(c)
	}
	return b.String()
}

func needsSpace(left, right string) bool {
	if left == "" || right == "" {
		return false
	}
	l, _ := utf8.DecodeLastRuneInString(left)
	r, _ := utf8.DecodeRuneInString(right)
	if unicode.IsSpace(l) || unicode.IsSpace(r) {
		return false
	}
	if strings.ContainsRune("([{-/", l) || strings.ContainsRune(".,;:!?)]}-/%", r) {
		return false
	}
	return !splitWord(left, right)
}

func splitWord(left, right string) bool {
	if !alphabetic(left) || !alphabetic(right) {
		return false
	}
	bothUpper := allUpper(left) && allUpper(right)
	r, _ := utf8.DecodeRuneInString(right)
	if unicode.IsUpper(r) && !bothUpper {
		return false
	}
	return utf8.RuneCountInString(left) <= 3 ||
		utf8.RuneCountInString(right) <= 2 ||
		bothUpper
}

func alphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func allUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
