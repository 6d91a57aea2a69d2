package pdftext

import (
	"slices"
	"strings"
	"unicode/utf16"
)

const (
	// maxRangeSpan caps the number of codes one bfrange entry may expand to.
	maxRangeSpan = 1 << 16
	// maxCMapCodes caps the codes a whole CMap may expand to across all of
	// its bfrange and bfchar entries.
	maxCMapCodes = 1 << 17
	// deadlineStride is how many range codes are expanded between deadline
	// checks.
	deadlineStride = 1 << 10
)

// CMap maps character codes of a font to Unicode text, as described by a
// ToUnicode stream.
type CMap struct {
	entries map[string]string
	lengths []int
	budget  *budget
	codes   int
}

// Len returns the number of mapped codes.
func (m *CMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// ParseCMap reads the codespace ranges, bfchar and bfrange sections of a
// ToUnicode CMap. Unknown operators are ignored. A CMap with no mappings is
// returned as nil.
func ParseCMap(data []byte) *CMap {
	return parseCMap(data, nil)
}

// parseCMap parses under the document budget. Expansion stops once the
// deadline passes or the CMap reaches maxCMapCodes.
func parseCMap(data []byte, b *budget) *CMap {
	m := &CMap{entries: make(map[string]string), budget: b}
	lengths := make(map[int]struct{})
	lex := newLexer(data, b, DefaultOptions().MaxTokens)

	var operands []any
	for {
		tok := lex.next()
		switch tok.kind {
		case tokEOF:
			return m.finish(lengths)
		case tokString:
			operands = append(operands, []byte(tok.data))
		case tokArrayOpen:
			operands = append(operands, cmapArray(lex))
		case tokOperator:
			switch tok.text() {
			case "endcodespacerange":
				for i := 0; i+1 < len(operands); i += 2 {
					if lo, ok := operands[i].([]byte); ok && len(lo) > 0 {
						lengths[len(lo)] = struct{}{}
					}
				}
			case "endbfchar":
				for i := 0; i+1 < len(operands); i += 2 {
					src, ok1 := operands[i].([]byte)
					dst, ok2 := operands[i+1].([]byte)
					if ok1 && ok2 && len(src) > 0 && m.spend(1) {
						m.entries[string(src)] = decodeUTF16BE(dst)
						lengths[len(src)] = struct{}{}
					}
				}
			case "endbfrange":
				for i := 0; i+2 < len(operands); i += 3 {
					m.addRange(operands[i], operands[i+1], operands[i+2], lengths)
				}
			}
			operands = operands[:0]
		default:
			operands = append(operands, nil)
		}
	}
}

func (m *CMap) addRange(loV, hiV, dstV any, lengths map[int]struct{}) {
	lo, ok1 := loV.([]byte)
	hi, ok2 := hiV.([]byte)
	if !ok1 || !ok2 || len(lo) == 0 || len(lo) > 4 {
		return
	}
	start, end := bytesToInt(lo), bytesToInt(hi)
	if end < start || end-start >= maxRangeSpan {
		return
	}
	lengths[len(lo)] = struct{}{}

	switch dst := dstV.(type) {
	case [][]byte:
		for i := 0; i <= end-start && i < len(dst); i++ {
			if !m.spend(i) {
				return
			}
			m.entries[string(intToBytes(start+i, len(lo)))] = decodeUTF16BE(dst[i])
		}
	case []byte:
		if len(dst) == 0 {
			return
		}
		prefix, last := dst[:len(dst)-2+len(dst)%2], dst[len(dst)-2+len(dst)%2:]
		base := bytesToInt(last)
		for i := 0; i <= end-start; i++ {
			if !m.spend(i) {
				return
			}
			code := append(slices.Clone(prefix), intToBytes(base+i, len(last))...)
			m.entries[string(intToBytes(start+i, len(lo)))] = decodeUTF16BE(code)
		}
	}
}

// spend counts one expanded code and reports whether expansion may
// continue. The deadline is checked every deadlineStride codes of a range.
func (m *CMap) spend(i int) bool {
	if m.codes >= maxCMapCodes {
		return false
	}
	if i%deadlineStride == 0 && m.budget.expired() {
		return false
	}
	m.codes++
	return true
}

func (m *CMap) finish(lengths map[int]struct{}) *CMap {
	m.budget = nil
	if len(m.entries) == 0 {
		return nil
	}
	if len(lengths) == 0 {
		for k := range m.entries {
			lengths[len(k)] = struct{}{}
		}
	}
	for l := range lengths {
		m.lengths = append(m.lengths, l)
	}
	slices.Sort(m.lengths)
	slices.Reverse(m.lengths)
	return m
}

func cmapArray(lex *lexer) [][]byte {
	var out [][]byte
	for {
		tok := lex.next()
		switch tok.kind {
		case tokEOF, tokArrayClose:
			return out
		case tokString:
			out = append(out, []byte(tok.data))
		}
	}
}

// Decode maps code bytes to text, trying the longest code length first.
// Codes without a mapping are dropped, except single printable ASCII bytes
// which are kept as is.
func (m *CMap) Decode(data []byte) string {
	if m == nil {
		return ""
	}
	shortest := m.lengths[len(m.lengths)-1]
	var out strings.Builder
	for len(data) > 0 {
		matched := false
		for _, l := range m.lengths {
			if len(data) < l {
				continue
			}
			if val, ok := m.entries[string(data[:l])]; ok {
				out.WriteString(val)
				data = data[l:]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if shortest == 1 && data[0] >= 0x20 && data[0] < 0x7f {
			out.WriteByte(data[0])
		}
		data = data[min(shortest, len(data)):]
	}
	return out.String()
}

func decodeUTF16BE(b []byte) string {
	if len(b) >= 2 && b[0] == 0xfe && b[1] == 0xff {
		b = b[2:]
	}
	if len(b)%2 == 1 {
		b = append(slices.Clone(b), 0)
	}
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return strings.ReplaceAll(string(utf16.Decode(units)), "\x00", "")
}

func bytesToInt(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func intToBytes(v, length int) []byte {
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}
