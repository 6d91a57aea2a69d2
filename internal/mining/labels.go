package mining

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

// mineLabels reads "Label: value" segments. Several labels may share one
// line; each value runs up to the next label.
func (m *Miner) mineLabels(lines []line, c *collector) {
	for _, l := range lines {
		matches := m.labelRe.FindAllStringSubmatchIndex(l.text, -1)
		for i, match := range matches {
			label := strings.ToLower(strings.Join(strings.Fields(l.text[match[2]:match[3]]), " "))
			key, ok := m.labelKeys[label]
			if !ok {
				continue
			}
			end := len(l.text)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			m.labeled(key, label, cleanValue(l.text[match[1]:end]), l, c)
		}
	}
}

func (m *Miner) labeled(key, label, value string, l line, c *collector) {
	def, ok := m.contract.Lookup(key)
	if !ok || value == "" || def.ValueType == schema.TypeDate || key == keyMicrochip {
		return
	}
	switch key {
	case keyOwner, keyVet:
		value = cleanPersonName(value)
		if !isPersonName(value) {
			return
		}
	}
	if !validValue(def.ValueType, value) {
		return
	}
	c.add(Candidate{
		Key:        key,
		Value:      value,
		Confidence: LabelConfidence,
		MappingID:  "label:" + key + ":" + label,
		Evidence:   l.evidence(),
	})
}

var (
	digitRe  = regexp.MustCompile(`\d`)
	numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

func validValue(t schema.ValueType, v string) bool {
	if !strings.ContainsFunc(v, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return false
	}
	switch t {
	case schema.TypeNumber:
		return numberRe.MatchString(v)
	case schema.TypePhone:
		return len(digitRe.FindAllString(v, -1)) >= 9
	case schema.TypeIdentifier:
		return len([]rune(v)) <= 40
	}
	return true
}

var (
	speciesRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(perr[oa]|canin[oa]|gat[oa]|felin[oa]|conejo|hur[oó]n|cobaya|h[aá]mster|loro|tortuga|equino|caballo|dog|cat|canine|feline|rabbit|ferret)(?:[^\p{L}]|$)`)
	sexRe     = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(macho|hembra|male|female)(?:\s+(castrad[oa]|esterilizad[oa]|neutered|spayed))?(?:[^\p{L}]|$)`)
	weightRe  = regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])(\d{1,3}(?:[.,]\d{1,3})?\s?(?:kg|kgs|kilos|g|gr))(?:[^\p{L}]|$)`)
	ageRe     = regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])(\d{1,2}\s?(?:años|año|meses|mes|years?|months?))(?:[^\p{L}]|$)`)
	phoneRe   = regexp.MustCompile(`(?:^|[^\d])((?:\+34[\s.]?)?[6789]\d{2}[\s.-]?\d{2,3}[\s.-]?\d{2,3}(?:[\s.-]?\d{2})?)(?:[^\d]|$)`)
)

// mineFallbacks adds keyword and shape matches for keys whose values have
// a recognizable form even without a label.
func (m *Miner) mineFallbacks(lines []line, c *collector) {
	shapes := []struct {
		key     string
		re      *regexp.Regexp
		mapping string
	}{
		{"species", speciesRe, "keyword:species"},
		{"sex", sexRe, "keyword:sex"},
		{"weight", weightRe, "shape:weight"},
		{"age", ageRe, "shape:age"},
		{"owner_phone", phoneRe, "shape:owner_phone"},
	}
	for _, s := range shapes {
		if !m.contract.Has(s.key) {
			continue
		}
		for _, l := range lines {
			for _, match := range s.re.FindAllStringSubmatch(l.text, -1) {
				value := strings.TrimSpace(match[1])
				if len(match) > 2 && match[2] != "" {
					value += " " + match[2]
				}
				if s.key == "owner_phone" && len(digitRe.FindAllString(value, -1)) < 9 {
					continue
				}
				c.add(Candidate{
					Key:        s.key,
					Value:      value,
					Confidence: FallbackConfidence,
					MappingID:  s.mapping,
					Evidence:   l.evidence(),
				})
			}
		}
	}
}
