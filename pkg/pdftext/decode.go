package pdftext

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// decodeRaw decodes string bytes shown with a simple font that has no
// ToUnicode map: UTF-16BE when a byte order mark is present, otherwise
// Windows-1252. Control characters other than tab are dropped.
func decodeRaw(b []byte) string {
	var s string
	if len(b) >= 2 && b[0] == 0xfe && b[1] == 0xff {
		s = decodeUTF16BE(b)
	} else {
		out, err := charmap.Windows1252.NewDecoder().Bytes(b)
		if err != nil {
			return ""
		}
		s = string(out)
	}
	return strings.Map(func(r rune) rune {
		if r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}

// bestDecoding tries every candidate CMap, then the raw decoding, and keeps
// the highest scoring text. Ties keep the earliest candidate.
func bestDecoding(b []byte, candidates []*CMap) string {
	best := ""
	bestScore := 0.0
	first := true
	try := func(s string) {
		score := DecodeQuality(s)
		if first || score > bestScore {
			best, bestScore, first = s, score, false
		}
	}
	for _, m := range candidates {
		try(m.Decode(b))
	}
	try(decodeRaw(b))
	return best
}
