// Package quality scores extracted text and rejects extractions that are too
// short, unreadable or visibly corrupted by OCR substitutions.
package quality

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Threshold is the minimum score for an extraction to pass.
const Threshold = 0.60

// Reason identifies why a text was rejected or penalized.
type Reason string

const (
	ReasonTooShort        Reason = "TOO_SHORT"
	ReasonUnreadable      Reason = "UNREADABLE"
	ReasonTooFewWords     Reason = "TOO_FEW_WORDS"
	ReasonLowVowelRatio   Reason = "LOW_VOWEL_RATIO"
	ReasonHighPunctuation Reason = "HIGH_PUNCTUATION"
	ReasonLowWhitespace   Reason = "LOW_WHITESPACE"
	ReasonMissingBreaks   Reason = "MISSING_LINEBREAKS"
	ReasonLongTokens      Reason = "LONG_TOKENS"
	ReasonSingleLetters   Reason = "SINGLE_LETTER_TOKENS"
	ReasonAllCaps         Reason = "ALL_CAPS"
	ReasonOCRArtifacts    Reason = "OCR_ARTIFACTS"
	ReasonBelowThreshold  Reason = "BELOW_THRESHOLD"
)

// Immediate reject limits.
const (
	minLength          = 20
	minPrintableRatio  = 0.9
	minLetterRatio     = 0.35
	maxStrangeRatio    = 0.15
	minWordLikeTokens  = 3
	wordLikeMinLetters = 3
)

// Penalty triggers and weights.
const (
	lowVowelRatio     = 0.30
	lowVowelPenalty   = 0.20
	highPunctRatio    = 0.25
	highPunctPenalty  = 0.25
	lowSpaceRatio     = 0.10
	lowSpacePenalty   = 0.20
	longTextChars     = 400
	minLineBreaks     = 2
	breaksPenalty     = 0.10
	longTokenLen      = 12
	longTokenRatio    = 0.20
	longTokenMinCount = 80
	longTokenPenalty  = 0.35
	singleRatio       = 0.045
	singleMinCount    = 120
	singlePenalty     = 0.35
	capsRatio         = 0.60
	capsMinWords      = 10
	capsPenalty       = 0.20
	artifactPenalty   = 0.40
)

// ocrArtifacts lists garbled forms of common clinical words produced by OCR
// digit and letter substitutions.
var ocrArtifacts = map[string]struct{}{
	"pac1ente":     {},
	"pacienle":     {},
	"d1agnostico":  {},
	"diagnostlco":  {},
	"m1crochip":    {},
	"rnicrochip":   {},
	"tratam1ento":  {},
	"tratarniento": {},
	"vacunac1on":   {},
	"0wner":        {},
	"c1inica":      {},
	"propietari0":  {},
	"histor1a":     {},
	"patlent":      {},
	"d0ctor":       {},
}

// Report is the outcome of evaluating a text.
type Report struct {
	Score   float64  `json:"score"`
	Pass    bool     `json:"pass"`
	Reasons []Reason `json:"reasons"`
	Stats   Stats    `json:"stats"`
}

// Stats summarizes the character and token composition of a text.
type Stats struct {
	Chars     int `json:"chars"`
	Tokens    int `json:"tokens"`
	WordLike  int `json:"word_like"`
	Lines     int `json:"lines"`
	Artifacts int `json:"artifacts"`
}

type counts struct {
	total, printable, letters, vowels, digits, spaces, punct, strange, breaks int
}

// Evaluate scores text in [0, 1]. Text passes when the score reaches
// Threshold and no OCR artifact was found.
func Evaluate(text string) Report {
	text = strings.TrimSpace(norm.NFKC.String(text))
	c := count(text)
	tokens := strings.Fields(text)

	r := Report{
		Reasons: []Reason{},
		Stats: Stats{
			Chars:  c.total,
			Tokens: len(tokens),
			Lines:  c.breaks + 1,
		},
	}
	if text == "" {
		r.Stats.Lines = 0
	}

	if c.total < minLength {
		return r.reject(ReasonTooShort)
	}
	nonSpace := c.total - c.spaces
	if ratio(c.printable, c.total) < minPrintableRatio ||
		ratio(c.letters, nonSpace) < minLetterRatio ||
		ratio(c.strange, nonSpace) >= maxStrangeRatio {
		return r.reject(ReasonUnreadable)
	}

	fold := cases.Fold()
	var wordLike, long, single, alpha, caps, capsWords int
	for _, tok := range tokens {
		word := strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		letters, upper := 0, 0
		allLetters := word != ""
		for _, ch := range word {
			if unicode.IsLetter(ch) {
				letters++
				if unicode.IsUpper(ch) {
					upper++
				}
			} else {
				allLetters = false
			}
		}
		if letters >= wordLikeMinLetters {
			wordLike++
			capsWords++
			if upper == letters {
				caps++
			}
		}
		if allLetters {
			alpha++
			if letters >= longTokenLen {
				long++
			}
			if letters == 1 {
				single++
			}
		}
		if _, ok := ocrArtifacts[fold.String(word)]; ok {
			r.Stats.Artifacts++
		}
	}
	r.Stats.WordLike = wordLike

	if wordLike < minWordLikeTokens {
		return r.reject(ReasonTooFewWords)
	}

	score := 1.0
	penalize := func(hit bool, weight float64, reason Reason) {
		if hit {
			score -= weight
			r.Reasons = append(r.Reasons, reason)
		}
	}

	penalize(ratio(c.vowels, c.letters) < lowVowelRatio, lowVowelPenalty, ReasonLowVowelRatio)
	penalize(ratio(c.punct, nonSpace) > highPunctRatio, highPunctPenalty, ReasonHighPunctuation)
	penalize(ratio(c.spaces, c.total) < lowSpaceRatio, lowSpacePenalty, ReasonLowWhitespace)
	penalize(c.total >= longTextChars && c.breaks < minLineBreaks, breaksPenalty, ReasonMissingBreaks)
	penalize(alpha >= longTokenMinCount && ratio(long, alpha) > longTokenRatio, longTokenPenalty, ReasonLongTokens)
	penalize(len(tokens) > singleMinCount && ratio(single, len(tokens)) > singleRatio, singlePenalty, ReasonSingleLetters)
	penalize(capsWords >= capsMinWords && ratio(caps, capsWords) > capsRatio, capsPenalty, ReasonAllCaps)
	penalize(r.Stats.Artifacts > 0, artifactPenalty, ReasonOCRArtifacts)

	r.Score = clamp(score)
	r.Pass = r.Score >= Threshold && r.Stats.Artifacts == 0
	if r.Score < Threshold {
		r.Reasons = append(r.Reasons, ReasonBelowThreshold)
	}
	return r
}

func (r Report) reject(reason Reason) Report {
	r.Score = 0
	r.Pass = false
	r.Reasons = append(r.Reasons, reason, ReasonBelowThreshold)
	return r
}

// HasReason reports whether the report lists reason.
func (r Report) HasReason(reason Reason) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

func count(text string) counts {
	var c counts
	for _, ch := range text {
		c.total++
		if unicode.IsPrint(ch) || unicode.IsSpace(ch) {
			c.printable++
		}
		switch {
		case unicode.IsLetter(ch):
			c.letters++
			if isVowel(ch) {
				c.vowels++
			}
		case unicode.IsDigit(ch):
			c.digits++
		case unicode.IsSpace(ch):
			c.spaces++
			if ch == '\n' || ch == '\f' {
				c.breaks++
			}
		case strings.ContainsRune(commonPunct, ch):
			c.punct++
		default:
			c.punct++
			c.strange++
		}
	}
	return c
}

const commonPunct = ".,;:!?¡¿()[]{}-_/\\'\"%°#&+*@=<>|$€ºª"

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiouáéíóúàèìòùäëïöüâêîôû", unicode.ToLower(r))
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
