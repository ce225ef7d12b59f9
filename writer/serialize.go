package writer

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/tsawler/pdfcos/core"
)

// Encrypter encrypts strings and stream payloads of an encrypted
// document as they are written. Without one, such bytes are written as
// they are found in the graph, i.e. already encrypted.
type Encrypter interface {
	EncryptString(id core.ObjectID, s []byte) ([]byte, error)
	EncryptStream(id core.ObjectID, data []byte) ([]byte, error)
}

func writeBool(buf *bytes.Buffer, b core.Bool) {
	if b {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}
}

func writeInt(buf *bytes.Buffer, i core.Int) {
	buf.WriteString(strconv.FormatInt(int64(i), 10))
}

// writeReal writes r without an exponent and always with a decimal
// point, so it reads back as a real. NaN and infinities have no PDF form
// and are written as 0.0.
func writeReal(buf *bytes.Buffer, r core.Real) {
	f := float64(r)
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		buf.WriteString("0.0")
		return
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	buf.WriteString(s)
	if !strings.Contains(s, ".") {
		buf.WriteString(".0")
	}
}

// writeName writes /name, escaping delimiters, whitespace, '#' and bytes
// outside the printable range as #xx.
func writeName(buf *bytes.Buffer, n string) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			buf.WriteByte('#')
			buf.WriteString(hexByte(c))
			continue
		}
		buf.WriteByte(c)
	}
}

// writeString writes a literal string, or a hex string when more than a
// quarter of the bytes would need escaping.
func writeString(buf *bytes.Buffer, s []byte) {
	binary := 0
	for _, c := range s {
		if (c < 0x20 && !isStringEscape(c)) || c >= 0x7f {
			binary++
		}
	}
	if binary*4 > len(s) {
		writeHexString(buf, s)
		return
	}

	buf.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if c < 0x20 || c >= 0x7f {
				buf.WriteByte('\\')
				o := strconv.FormatUint(uint64(c), 8)
				for i := len(o); i < 3; i++ {
					buf.WriteByte('0')
				}
				buf.WriteString(o)
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

func writeHexString(buf *bytes.Buffer, s []byte) {
	buf.WriteByte('<')
	buf.WriteString(hex.EncodeToString(s))
	buf.WriteByte('>')
}

func writeRef(buf *bytes.Buffer, id core.ObjectID) {
	buf.WriteString(strconv.Itoa(id.Number))
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(id.Generation))
	buf.WriteString(" R")
}

func isStringEscape(c byte) bool {
	return c == '\n' || c == '\r' || c == '\t' || c == '\b' || c == '\f'
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func hexByte(c byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[c>>4], digits[c&0x0f]})
}
