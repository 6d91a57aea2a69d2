package mining

import (
	"regexp"
	"strings"
)

const (
	minChipDigits = 9
	maxChipDigits = 15
	// chipWindow is how many bytes after a chip keyword are searched for
	// the digit run.
	chipWindow = 60
)

var (
	chipKeywordRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(micro\s?-?chip|chip|transponder|identificaci[oó]n\s+electr[oó]nica)(?:[^\p{L}]|$)`)
	chipPrefixRe  = regexp.MustCompile(`(?i)(?:^|[^\p{L}])N\s?[°º]?\s*[:.]\s*(\d(?:[ .-]?\d){8,14})`)
	digitRunRe    = regexp.MustCompile(`\d(?:[ .-]?\d)*`)
)

// mineMicrochip extracts 9 to 15 digit runs that follow a chip keyword on
// the same line, or an OCR'd "N°:" prefix. Separators inside the run are
// dropped; the candidate rank is the share of digits in the raw match.
func (m *Miner) mineMicrochip(lines []line, c *collector) {
	if !m.contract.Has(keyMicrochip) {
		return
	}
	for _, l := range lines {
		for _, kw := range chipKeywordRe.FindAllStringSubmatchIndex(l.text, -1) {
			keyword := strings.ToLower(strings.Join(strings.Fields(l.text[kw[2]:kw[3]]), " "))
			end := min(len(l.text), kw[3]+chipWindow)
			for _, run := range digitRunRe.FindAllString(l.text[kw[3]:end], -1) {
				if value, purity, ok := chipDigits(run); ok {
					c.add(Candidate{
						Key:        keyMicrochip,
						Value:      value,
						Confidence: LabelConfidence,
						Rank:       purity,
						MappingID:  "label:" + keyMicrochip + ":" + keyword,
						Evidence:   l.evidence(),
					})
				}
			}
		}

		for _, match := range chipPrefixRe.FindAllStringSubmatch(l.text, -1) {
			if value, purity, ok := chipDigits(match[1]); ok {
				c.add(Candidate{
					Key:        keyMicrochip,
					Value:      value,
					Confidence: FallbackConfidence,
					Rank:       purity,
					MappingID:  "prefix:" + keyMicrochip,
					Evidence:   l.evidence(),
				})
			}
		}
	}
}

func chipDigits(run string) (string, float64, bool) {
	var b strings.Builder
	for _, r := range run {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < minChipDigits || len(digits) > maxChipDigits {
		return "", 0, false
	}
	return digits, float64(len(digits)) / float64(len(run)), true
}
