package pdftext

import "math"

const (
	// tjSpaceThreshold is the TJ displacement, in thousandths of text space,
	// below which a visual word gap is assumed.
	tjSpaceThreshold = -180
	// lineShift is the vertical movement treated as a new line.
	lineShift  = 0.5
	maxOperand = 64
)

type chunk struct {
	text    string
	trusted bool
	newline bool
}

type interpreter struct {
	doc  *Document
	lex  *lexer
	page *page

	operands []any
	font     string
	lineY    float64
	lastY    float64
	placed   bool
	breakNow bool
	chunks   []chunk
}

func newInterpreter(d *Document, content []byte, p *page) *interpreter {
	return &interpreter{
		doc:  d,
		lex:  newLexer(content, d.budget, d.opts.MaxTokens),
		page: p,
	}
}

func (it *interpreter) run() []chunk {
	for {
		tok := it.lex.next()
		switch tok.kind {
		case tokEOF:
			return it.chunks
		case tokOperator:
			it.operator(tok.text())
			it.operands = it.operands[:0]
		default:
			v, ok := it.doc.parseValue(it.lex, tok, 0)
			if !ok {
				continue
			}
			if len(it.operands) >= maxOperand {
				it.operands = it.operands[:0]
			}
			it.operands = append(it.operands, v)
		}
	}
}

func (it *interpreter) operator(op string) {
	switch op {
	case "BT":
		it.lineY = 0
	case "Tf":
		if n, ok := it.operand(2, 0).(name); ok {
			it.font = string(n)
		}
	case "Td", "TD":
		if ty, ok := it.operand(2, 1).(float64); ok {
			it.lineY += ty
			it.moveTo(it.lineY)
		}
	case "Tm":
		if f, ok := it.operand(6, 5).(float64); ok {
			it.lineY = f
			it.moveTo(f)
		}
	case "T*":
		it.breakNow = true
	case "Tj":
		if s, ok := it.lastOperand().(pdfString); ok {
			it.show(it.decode(s))
		}
	case "'", "\"":
		it.breakNow = true
		if s, ok := it.lastOperand().(pdfString); ok {
			it.show(it.decode(s))
		}
	case "TJ":
		if a, ok := it.lastOperand().(array); ok {
			it.showArray(a)
		}
	case "ID":
		it.lex.skipInlineImage()
	}
}

// operand returns operand i of an operator taking arity operands, ignoring
// any extra operands left before them.
func (it *interpreter) operand(arity, i int) any {
	start := len(it.operands) - arity
	if start < 0 {
		return nil
	}
	return it.operands[start+i]
}

func (it *interpreter) lastOperand() any {
	if len(it.operands) == 0 {
		return nil
	}
	return it.operands[len(it.operands)-1]
}

func (it *interpreter) moveTo(y float64) {
	if it.placed && math.Abs(y-it.lastY) > lineShift {
		it.breakNow = true
	}
	it.lastY = y
	it.placed = true
}

func (it *interpreter) showArray(a array) {
	var text []byte
	trusted := true
	for _, item := range a {
		switch v := item.(type) {
		case pdfString:
			s, ok := it.decode(v)
			trusted = trusted && ok
			text = append(text, s...)
		case float64:
			if v < tjSpaceThreshold {
				text = append(text, ' ')
			}
		}
	}
	it.show(string(text), trusted)
}

func (it *interpreter) show(text string, trusted bool) {
	if text == "" {
		return
	}
	it.chunks = append(it.chunks, chunk{text: text, trusted: trusted, newline: it.breakNow})
	it.breakNow = false
}

// decode turns string bytes into text using the current font. The boolean
// reports whether the font was resolved; text decoded through the
// ambiguous-font fallback is not trusted.
func (it *interpreter) decode(s pdfString) (string, bool) {
	f := it.page.fonts[it.font]
	switch {
	case f != nil && f.cmap != nil:
		return f.cmap.Decode(s), true
	case f != nil && !f.composite:
		return decodeRaw(s), true
	}
	return bestDecoding(s, it.page.fallback), false
}
