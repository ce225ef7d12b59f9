package core

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

var (
	utf16BOM = []byte{0xFE, 0xFF}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// pdfDocSpecial maps the PDFDocEncoding code points that differ from
// ISO Latin-1. Codes 0x9F and 0xAD are undefined.
var pdfDocSpecial = map[byte]rune{
	0x18: 0x02D8, 0x19: 0x02C7, 0x1A: 0x02C6, 0x1B: 0x02D9,
	0x1C: 0x02DD, 0x1D: 0x02DB, 0x1E: 0x02DA, 0x1F: 0x02DC,
	0x80: 0x2022, 0x81: 0x2020, 0x82: 0x2021, 0x83: 0x2026,
	0x84: 0x2014, 0x85: 0x2013, 0x86: 0x0192, 0x87: 0x2044,
	0x88: 0x2039, 0x89: 0x203A, 0x8A: 0x2212, 0x8B: 0x2030,
	0x8C: 0x201E, 0x8D: 0x201C, 0x8E: 0x201D, 0x8F: 0x2018,
	0x90: 0x2019, 0x91: 0x201A, 0x92: 0x2122, 0x93: 0xFB01,
	0x94: 0xFB02, 0x95: 0x0141, 0x96: 0x0152, 0x97: 0x0160,
	0x98: 0x0178, 0x99: 0x017D, 0x9A: 0x0131, 0x9B: 0x0142,
	0x9C: 0x0153, 0x9D: 0x0161, 0x9E: 0x017E, 0xA0: 0x20AC,
}

// NewTextString encodes s as a PDF text string. ASCII text is stored as
// is (ASCII is a subset of PDFDocEncoding); anything else becomes UTF-16BE
// with a byte order mark.
func NewTextString(s string) String {
	if isPlainASCII(s) {
		return String(s)
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.String(s)
	if err != nil {
		// invalid UTF-8 in s; keep the bytes
		return String(s)
	}
	return String(out)
}

// Text decodes the string as a PDF text string: UTF-16BE or UTF-8 when the
// matching byte order mark is present, PDFDocEncoding otherwise.
func (s String) Text() string {
	b := []byte(s)
	switch {
	case bytes.HasPrefix(b, utf16BOM):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(b)
		if err != nil {
			return decodePDFDoc(b)
		}
		return string(out)
	case bytes.HasPrefix(b, utf8BOM):
		return string(b[len(utf8BOM):])
	default:
		return decodePDFDoc(b)
	}
}

func decodePDFDoc(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if r, ok := pdfDocSpecial[c]; ok {
			sb.WriteRune(r)
			continue
		}
		switch {
		case c == 0x9F || c == 0xAD:
			sb.WriteRune(0xFFFD)
		default:
			sb.WriteRune(rune(c))
		}
	}
	return sb.String()
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}
