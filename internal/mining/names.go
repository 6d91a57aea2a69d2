package mining

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	keyOwner     = "owner_name"
	keyVet       = "vet_name"
	keyPatient   = "patient_name"
	keyMicrochip = "microchip_id"

	// nameWindow is how many lines around a bare role keyword are searched
	// for a name.
	nameWindow = 2
	// headerLookback bounds the search for a section header above a
	// generic "Nombre:" line.
	headerLookback = 8
	// tabularScan bounds the forward scan below a section header.
	tabularScan = 8

	minNameTokens = 2
	maxNameTokens = 5
)

var (
	clientHeaderRe  = regexp.MustCompile(`(?i)^\W*(datos\s+del\s+(cliente|propietario|tutor|titular)|datos\s+propietario|client\s+(data|details|information)|owner\s+(data|details|information))\W*$`)
	patientHeaderRe = regexp.MustCompile(`(?i)^\W*(datos\s+del\s+(paciente|animal)|datos\s+de\s+la\s+mascota|patient\s+(data|details|information)|pet\s+(data|details))\W*$`)
	nameLabelRe     = regexp.MustCompile(`(?i)^\s*(?:nombre|name)\s*[:：]\s*(.+)$`)
	ownerKeywordRe  = regexp.MustCompile(`(?i)^\W*(propietari[oa]|dueñ[oa]|cliente|tutor|titular|owner|client)\W*$`)
	vetKeywordRe    = regexp.MustCompile(`(?i)^\W*(veterinari[oa]|m[ée]dico\s+veterinario|veterinarian|vet)\W*$`)
	titleRe         = regexp.MustCompile(`(?:^|[^\p{L}])(?:Dra?|DRA?)\.\s*(\p{Lu}[\p{L}'-]+(?:\s+(?:de\s+|del\s+|la\s+)?\p{Lu}[\p{L}'-]+){1,4})`)

	titlePrefixRe = regexp.MustCompile(`(?i)^(?:dra?\.?|sra?\.?|srta\.?|don|doña|d\.|dña\.?|mr\.?|mrs\.?|ms\.?)\s+`)
	nameCutRe     = regexp.MustCompile(`(?i)\s*(?:\(|,|;|\s-\s|\bn[º°o]\.?\s*col|\bcol\b|\bcolegiad|\blic\b).*$`)

	addressRe  = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(calle|c/|avda|avenida|av\.|plaza|pza|paseo|piso|portal|puerta|carretera|ctra|cp|c\.p\.|street|st\.|road|avenue|apt)(?:[^\p{L}]|$)|\d{5}`)
	licenseRe  = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(col\.|colegiado|colegiada|licencia|license|licence|n[º°]\s*col)`)
	clinicalRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(diagn[oó]stico|tratamiento|consulta|vacuna|cl[ií]nica|hospital|paciente|especie|raza|peso|microchip|fecha|motivo|s[ií]ntomas|diagnosis|treatment|clinic|patient|species|breed|weight)(?:[^\p{L}]|$)`)

	nameConnectors = map[string]bool{"de": true, "del": true, "la": true, "las": true, "los": true, "y": true, "i": true, "van": true, "von": true}
)

// mineNames finds owner, veterinarian and patient names that are not
// written as a direct "Label: value" pair.
func (m *Miner) mineNames(lines []line, c *collector) {
	for i, l := range lines {
		if clientHeaderRe.MatchString(l.text) {
			m.scanTabular(lines, i, keyOwner, c)
			continue
		}

		if match := nameLabelRe.FindStringSubmatch(l.text); match != nil {
			m.namedLine(lines, i, match[1], c)
			continue
		}

		switch {
		case ownerKeywordRe.MatchString(l.text):
			m.scanWindow(lines, i, keyOwner, c)
		case vetKeywordRe.MatchString(l.text):
			m.scanWindow(lines, i, keyVet, c)
		}

		for _, match := range titleRe.FindAllStringSubmatch(l.text, -1) {
			name := cleanPersonName(match[1])
			if isPersonName(name) {
				m.addName(keyVet, name, LabelConfidence, "title:"+keyVet, l, c)
			}
		}
	}
}

// scanTabular accepts the first bare name line below a section header.
func (m *Miner) scanTabular(lines []line, header int, key string, c *collector) {
	end := min(len(lines), header+1+tabularScan)
	for j := header + 1; j < end; j++ {
		text := lines[j].text
		if clientHeaderRe.MatchString(text) || patientHeaderRe.MatchString(text) {
			return
		}
		if match := nameLabelRe.FindStringSubmatch(text); match != nil {
			text = match[1]
		}
		name := cleanPersonName(text)
		if isPersonName(name) {
			m.addName(key, name, LabelConfidence, "header:"+key, lines[j], c)
			return
		}
	}
}

// namedLine resolves a generic "Nombre:" line through the nearest section
// header above it.
func (m *Miner) namedLine(lines []line, i int, value string, c *collector) {
	start := max(0, i-headerLookback)
	for j := i - 1; j >= start; j-- {
		switch {
		case clientHeaderRe.MatchString(lines[j].text):
			name := cleanPersonName(cleanValue(value))
			if isPersonName(name) {
				m.addName(keyOwner, name, LabelConfidence, "header:"+keyOwner, lines[i], c)
			}
			return
		case patientHeaderRe.MatchString(lines[j].text):
			name := cleanValue(value)
			if name != "" && !digitRe.MatchString(name) {
				m.addName(keyPatient, name, LabelConfidence, "header:"+keyPatient, lines[i], c)
			}
			return
		}
	}
}

// scanWindow looks for a name within nameWindow lines of a bare role
// keyword.
func (m *Miner) scanWindow(lines []line, i int, key string, c *collector) {
	for d := 1; d <= nameWindow; d++ {
		for _, j := range []int{i + d, i - d} {
			if j < 0 || j >= len(lines) {
				continue
			}
			name := cleanPersonName(lines[j].text)
			if isPersonName(name) {
				m.addName(key, name, FallbackConfidence, "window:"+key, lines[j], c)
				return
			}
		}
	}
}

func (m *Miner) addName(key, name string, confidence float64, mapping string, l line, c *collector) {
	if !m.contract.Has(key) {
		return
	}
	c.add(Candidate{
		Key:        key,
		Value:      name,
		Confidence: confidence,
		MappingID:  mapping,
		Evidence:   l.evidence(),
	})
}

// cleanPersonName strips honorifics and trailing license or contact details.
func cleanPersonName(s string) string {
	s = strings.TrimSpace(s)
	for {
		stripped := titlePrefixRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = nameCutRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(strings.Trim(s, " .:-")), " ")
}

// isPersonName reports whether s looks like a personal name: two to five
// alphabetic tokens, at least two of them capitalized, with nothing that
// reads as an address, a license number or clinical content.
func isPersonName(s string) bool {
	tokens := strings.Fields(s)
	if len(tokens) < minNameTokens || len(tokens) > maxNameTokens {
		return false
	}
	if strings.ContainsAny(s, ":@/") || digitRe.MatchString(s) {
		return false
	}
	if addressRe.MatchString(s) || licenseRe.MatchString(s) || clinicalRe.MatchString(s) {
		return false
	}

	capitalized := 0
	for _, tok := range tokens {
		if nameConnectors[strings.ToLower(tok)] {
			continue
		}
		for _, r := range tok {
			if !unicode.IsLetter(r) && r != '\'' && r != '-' && r != '.' {
				return false
			}
		}
		first := []rune(tok)[0]
		if unicode.IsUpper(first) {
			capitalized++
		}
	}
	return capitalized >= minNameTokens
}
