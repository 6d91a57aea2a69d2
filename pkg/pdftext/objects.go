package pdftext

import (
	"bytes"
	"regexp"
	"slices"
	"strconv"
)

// Parsed PDF values are represented with these types plus float64 for
// numbers, bool for booleans and nil for null.
type (
	name      string
	pdfString []byte
	array     []any
	dict      map[string]any
	ref       struct{ id, gen int }
)

const maxValueDepth = 32

type object struct {
	id     int
	value  any
	stream []byte
}

func (o *object) dict() dict {
	if o == nil {
		return nil
	}
	d, _ := o.value.(dict)
	return d
}

var (
	objHeader = regexp.MustCompile(`(\d+)\s+(\d+)\s+obj\b`)
	kwStream  = []byte("stream")
	kwEndStr  = []byte("endstream")
	kwEndObj  = []byte("endobj")
)

// scanObjects records every "N G obj ... endobj" span in file order. Later
// definitions of the same id replace earlier ones, matching incremental
// updates appended to the file.
func (d *Document) scanObjects() {
	pos := 0
	for pos < len(d.data) {
		if d.budget.expired() {
			d.truncated = true
			return
		}
		loc := objHeader.FindSubmatchIndex(d.data[pos:])
		if loc == nil {
			return
		}
		id, err := strconv.Atoi(string(d.data[pos+loc[2] : pos+loc[3]]))
		bodyStart := pos + loc[1]
		if err != nil {
			pos = bodyStart
			continue
		}

		obj, end := d.readObject(id, bodyStart)
		if obj != nil {
			d.objects[id] = obj
		}
		pos = max(end, bodyStart)
	}
}

// readObject parses the body that starts at offset start and returns the
// object and the offset just past its end.
func (d *Document) readObject(id, start int) (*object, int) {
	limit := len(d.data)
	if idx := bytes.Index(d.data[start:], kwEndObj); idx >= 0 {
		limit = start + idx
	}

	lex := newLexer(d.data[:limit], d.budget, d.opts.MaxTokens)
	lex.pos = start
	v, ok := d.parseValue(lex, lex.next(), 0)
	if lex.stopped() {
		d.truncated = true
	}
	if !ok {
		return nil, limit + len(kwEndObj)
	}
	obj := &object{id: id, value: v}

	lex.skipSpace()
	if !bytes.HasPrefix(d.data[lex.pos:], kwStream) {
		return obj, limit + len(kwEndObj)
	}

	dataStart := lex.pos + len(kwStream)
	if dataStart < len(d.data) && d.data[dataStart] == '\r' {
		dataStart++
	}
	if dataStart < len(d.data) && d.data[dataStart] == '\n' {
		dataStart++
	}

	dataEnd := -1
	if n, ok := obj.dict()["Length"].(float64); ok && n >= 0 && n <= float64(len(d.data)-dataStart) {
		end := dataStart + int(n)
		if end <= len(d.data) && endstreamFollows(d.data[end:]) {
			dataEnd = end
		}
	}
	if dataEnd < 0 {
		idx := bytes.Index(d.data[dataStart:], kwEndStr)
		if idx < 0 {
			obj.stream = d.data[dataStart:]
			return obj, len(d.data)
		}
		dataEnd = dataStart + idx
		for dataEnd > dataStart && (d.data[dataEnd-1] == '\n' || d.data[dataEnd-1] == '\r') {
			dataEnd--
		}
	}
	obj.stream = d.data[dataStart:dataEnd]

	end := len(d.data)
	if idx := bytes.Index(d.data[dataEnd:], kwEndObj); idx >= 0 {
		end = dataEnd + idx + len(kwEndObj)
	}
	return obj, end
}

func endstreamFollows(b []byte) bool {
	i := 0
	for i < len(b) && i < 4 && isSpace(b[i]) {
		i++
	}
	return bytes.HasPrefix(b[i:], kwEndStr)
}

// parseValue reads one value starting at the already consumed token tok.
func (d *Document) parseValue(lex *lexer, tok token, depth int) (any, bool) {
	if depth > maxValueDepth {
		return nil, false
	}
	switch tok.kind {
	case tokNumber:
		m := lex.mark()
		gen := lex.next()
		if gen.kind == tokNumber {
			r := lex.next()
			if r.kind == tokOperator && r.text() == "R" {
				return ref{id: int(tok.num), gen: int(gen.num)}, true
			}
		}
		lex.reset(m)
		return tok.num, true
	case tokString:
		return pdfString(tok.data), true
	case tokName:
		return name(tok.data), true
	case tokArrayOpen:
		return d.parseArray(lex, depth)
	case tokDictOpen:
		return d.parseDict(lex, depth)
	case tokOperator:
		switch tok.text() {
		case "true":
			return true, true
		case "false":
			return false, true
		case "null":
			return nil, true
		}
	}
	return nil, false
}

func (d *Document) parseArray(lex *lexer, depth int) (any, bool) {
	var out array
	for {
		tok := lex.next()
		switch tok.kind {
		case tokEOF:
			return out, true
		case tokArrayClose:
			return out, true
		}
		v, ok := d.parseValue(lex, tok, depth+1)
		if !ok {
			continue
		}
		if len(out) >= d.opts.MaxArrayItems {
			d.truncated = true
			continue
		}
		out = append(out, v)
	}
}

func (d *Document) parseDict(lex *lexer, depth int) (any, bool) {
	out := dict{}
	for {
		tok := lex.next()
		switch tok.kind {
		case tokEOF, tokDictClose:
			return out, true
		case tokName:
			m := lex.mark()
			next := lex.next()
			if next.kind == tokDictClose {
				return out, true
			}
			v, ok := d.parseValue(lex, next, depth+1)
			if !ok {
				lex.reset(m)
				continue
			}
			out[string(tok.data)] = v
		}
	}
}

// expandObjectStreams adds the objects compressed inside /Type /ObjStm
// streams. Objects already defined directly in the file take precedence.
func (d *Document) expandObjectStreams() {
	var containers []*object
	for _, obj := range d.objects {
		if obj.stream != nil && obj.dict()["Type"] == name("ObjStm") {
			containers = append(containers, obj)
		}
	}
	slices.SortFunc(containers, func(a, b *object) int { return a.id - b.id })

	for _, c := range containers {
		if d.budget.expired() {
			d.truncated = true
			return
		}
		d.expandObjectStream(c)
	}
}

func (d *Document) expandObjectStream(c *object) {
	hdr := c.dict()
	n, _ := hdr["N"].(float64)
	first, _ := hdr["First"].(float64)
	data := d.streamData(c, false)
	if n <= 0 || first <= 0 || first > float64(len(data)) {
		return
	}
	count := min(n, float64(len(data)/2))

	lex := newLexer(data[:int(first)], d.budget, d.opts.MaxTokens)
	type entry struct{ id, off int }
	entries := make([]entry, 0, int(count))
	for i := 0; i < int(count); i++ {
		a, b := lex.next(), lex.next()
		if a.kind != tokNumber || b.kind != tokNumber {
			break
		}
		entries = append(entries, entry{int(a.num), int(b.num)})
	}

	body := data[int(first):]
	for _, e := range entries {
		if _, exists := d.objects[e.id]; exists || e.off < 0 || e.off >= len(body) {
			continue
		}
		lex := newLexer(body, d.budget, d.opts.MaxTokens)
		lex.pos = e.off
		if v, ok := d.parseValue(lex, lex.next(), 0); ok {
			d.objects[e.id] = &object{id: e.id, value: v}
		}
	}
}

func (d *Document) sortIDs() {
	d.ids = make([]int, 0, len(d.objects))
	for id := range d.objects {
		d.ids = append(d.ids, id)
	}
	slices.Sort(d.ids)
}

const maxRefChain = 16

// resolve follows indirect references until a direct value is reached.
func (d *Document) resolve(v any) any {
	for range maxRefChain {
		r, ok := v.(ref)
		if !ok {
			return v
		}
		obj := d.objects[r.id]
		if obj == nil {
			return nil
		}
		v = obj.value
	}
	return nil
}

func (d *Document) resolveDict(v any) dict {
	out, _ := d.resolve(v).(dict)
	return out
}

func (d *Document) resolveObject(v any) *object {
	r, ok := v.(ref)
	if !ok {
		return nil
	}
	for range maxRefChain {
		obj := d.objects[r.id]
		if obj == nil {
			return nil
		}
		next, ok := obj.value.(ref)
		if !ok {
			return obj
		}
		r = next
	}
	return nil
}
