package pdftext

import (
	"strconv"
	"time"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokName
	tokOperator
	tokArrayOpen
	tokArrayClose
	tokDictOpen
	tokDictClose
)

type token struct {
	kind   tokenKind
	data   []byte
	num    float64
	offset int
}

func (t token) text() string {
	return string(t.data)
}

// budget bounds the work spent on a single document. The deadline is shared
// by every lexer created for the document; the token cap applies per stream.
type budget struct {
	deadline  time.Time
	exhausted bool
}

func (b *budget) expired() bool {
	if b == nil {
		return false
	}
	if b.exhausted {
		return true
	}
	if !b.deadline.IsZero() && time.Now().After(b.deadline) {
		b.exhausted = true
	}
	return b.exhausted
}

type lexer struct {
	data      []byte
	pos       int
	budget    *budget
	tokens    int
	maxTokens int
	capped    bool
}

func newLexer(data []byte, b *budget, maxTokens int) *lexer {
	return &lexer{data: data, budget: b, maxTokens: maxTokens}
}

// stopped reports whether the lexer quit early because of the token cap or
// the document deadline.
func (l *lexer) stopped() bool {
	return l.capped || l.budget.expired()
}

func (l *lexer) spend() bool {
	if l.capped {
		return false
	}
	l.tokens++
	if l.maxTokens > 0 && l.tokens > l.maxTokens {
		l.capped = true
		return false
	}
	return !l.budget.expired()
}

func (l *lexer) mark() int { return l.pos }

func (l *lexer) reset(mark int) { l.pos = mark }

func (l *lexer) peekByte(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

func (l *lexer) next() token {
	for {
		l.skipSpace()
		if l.pos >= len(l.data) || !l.spend() {
			return token{kind: tokEOF, offset: l.pos}
		}

		start := l.pos
		c := l.data[l.pos]

		switch {
		case c == '(':
			return token{kind: tokString, data: l.literal(), offset: start}
		case c == '<':
			if l.peekByte(1) == '<' {
				l.pos += 2
				return token{kind: tokDictOpen, offset: start}
			}
			return token{kind: tokString, data: l.hexString(), offset: start}
		case c == '>':
			l.pos++
			if l.peekByte(0) == '>' {
				l.pos++
				return token{kind: tokDictClose, offset: start}
			}
		case c == '[':
			l.pos++
			return token{kind: tokArrayOpen, offset: start}
		case c == ']':
			l.pos++
			return token{kind: tokArrayClose, offset: start}
		case c == '/':
			return token{kind: tokName, data: l.name(), offset: start}
		case c == '{' || c == '}' || c == ')':
			l.pos++
		default:
			word := l.regular()
			if isNumeric(word) {
				if n, err := strconv.ParseFloat(string(word), 64); err == nil {
					return token{kind: tokNumber, num: n, data: word, offset: start}
				}
			}
			return token{kind: tokOperator, data: word, offset: start}
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) regular() []byte {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return l.data[start:l.pos]
}

func (l *lexer) name() []byte {
	l.pos++
	var out []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.data) && isHex(l.data[l.pos+1]) && isHex(l.data[l.pos+2]) {
			out = append(out, hexNibble(l.data[l.pos+1])<<4|hexNibble(l.data[l.pos+2]))
			l.pos += 3
			continue
		}
		out = append(out, c)
		l.pos++
	}
	return out
}

func (l *lexer) literal() []byte {
	l.pos++
	depth := 1
	out := make([]byte, 0, 32)

	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch c {
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				return out
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.peekByte(1) == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if isOctal(e) {
					v := int(e - '0')
					for n := 1; n < 3 && isOctal(l.peekByte(1)); n++ {
						l.pos++
						v = v*8 + int(l.data[l.pos]-'0')
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			l.pos++
		case '(':
			depth++
			out = append(out, c)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
			l.pos++
		}
	}
	return out
}

func (l *lexer) hexString() []byte {
	l.pos++
	out := make([]byte, 0, 16)
	var hi byte
	half := false

	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		if !isHex(c) {
			continue
		}
		if !half {
			hi = hexNibble(c)
			half = true
			continue
		}
		out = append(out, hi<<4|hexNibble(c))
		half = false
	}
	if half {
		out = append(out, hi<<4)
	}
	return out
}

// skipInlineImage advances past binary inline image data that follows an ID
// operator, up to and including the closing EI.
func (l *lexer) skipInlineImage() {
	if l.pos < len(l.data) && isSpace(l.data[l.pos]) {
		l.pos++
	}
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isSpace(l.data[l.pos-1])) &&
			(l.pos+2 == len(l.data) || isSpace(l.data[l.pos+2]) || isDelimiter(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func isNumeric(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	digits := 0
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case (c == '-' || c == '+') && i == 0:
		case c == '.':
		default:
			return false
		}
	}
	return digits > 0
}
