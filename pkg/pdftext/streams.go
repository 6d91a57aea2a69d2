package pdftext

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
)

// streamData returns the decoded bytes of obj's stream. Flate streams that
// fail to inflate are kept only when the raw bytes already look like text;
// content streams must additionally contain balanced BT/ET pairs.
func (d *Document) streamData(obj *object, content bool) []byte {
	if obj == nil || obj.stream == nil {
		return nil
	}
	raw := obj.stream
	if len(raw) > d.opts.MaxStreamBytes {
		raw = raw[:d.opts.MaxStreamBytes]
		d.truncated = true
	}

	filters := d.filters(obj.dict()["Filter"])
	if len(filters) == 0 {
		return raw
	}
	if filters[0] != "FlateDecode" && filters[0] != "Fl" {
		return nil
	}

	out, capped, err := inflate(raw, d.opts.MaxStreamBytes)
	if capped {
		d.truncated = true
	}
	if err == nil || len(out) > 0 {
		return out
	}
	if looksTextual(raw) && (!content || balancedText(raw)) {
		return raw
	}
	return nil
}

func (d *Document) filters(v any) []name {
	switch f := d.resolve(v).(type) {
	case name:
		return []name{f}
	case array:
		out := make([]name, 0, len(f))
		for _, item := range f {
			if n, ok := d.resolve(item).(name); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

// inflate decompresses zlib data up to limit bytes. Output decoded before a
// corrupt tail is returned together with the error.
func inflate(data []byte, limit int) ([]byte, bool, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	defer r.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, int64(limit)+1))
	out := buf.Bytes()
	if n > int64(limit) {
		return out[:limit], true, nil
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return out, false, err
	}
	return out, false, nil
}

func looksTextual(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	printable := 0
	for _, c := range b {
		if (c >= 0x20 && c < 0x7f) || c == '\n' || c == '\r' || c == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len(b)) >= 0.85
}

var (
	btOp = regexp.MustCompile(`(^|[\s\]>)])BT([\s/\[(<]|$)`)
	etOp = regexp.MustCompile(`(^|[\s\]>)])ET([\s/\[(<]|$)`)
)

// balancedText reports whether b contains at least one text object and as
// many BT as ET operators.
func balancedText(b []byte) bool {
	bt := len(btOp.FindAllIndex(b, -1))
	return bt > 0 && bt == len(etOp.FindAllIndex(b, -1))
}
