package filters

import "fmt"

// ASCIIHexDecode decodes pairs of hexadecimal digits into bytes. White
// space is ignored and '>' ends the data. A final unpaired digit is
// decoded as if followed by 0.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var high byte
	half := false
	for _, c := range data {
		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		v, err := hexDigitToByte(c)
		if err != nil {
			return nil, err
		}
		if half {
			out = append(out, high<<4|v)
		} else {
			high = v
		}
		half = !half
	}
	if half {
		out = append(out, high<<4)
	}
	return out, nil
}

// ASCII85Decode decodes base-85 data: groups of five characters from '!'
// to 'u' give four bytes, 'z' alone stands for four zero bytes and "~>"
// ends the data. A final partial group of n characters gives n-1 bytes.
func ASCII85Decode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*4/5+4)
	var group [5]byte
	n := 0

scan:
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case isWhitespace(c):
		case c == '~' && i+1 < len(data) && data[i+1] == '>':
			break scan
		case c == 'z' && n == 0:
			out = append(out, 0, 0, 0, 0)
		case c < '!' || c > 'u':
			return nil, fmt.Errorf("invalid ASCII85 character: %c", c)
		default:
			group[n] = c - '!'
			n++
			if n == 5 {
				out = appendBase85(out, group, 4)
				n = 0
			}
		}
	}

	if n > 1 {
		for j := n; j < 5; j++ {
			group[j] = 84 // 'u'
		}
		out = appendBase85(out, group, n-1)
	}
	return out, nil
}

// appendBase85 appends the first count bytes of the big-endian value of
// group.
func appendBase85(out []byte, group [5]byte, count int) []byte {
	var v uint32
	for _, d := range group {
		v = v*85 + uint32(d)
	}
	for j := 0; j < count; j++ {
		out = append(out, byte(v>>(24-8*j)))
	}
	return out
}

// hexDigitToByte converts a hexadecimal character to its numeric value (0-15).
func hexDigitToByte(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit: %c", c)
	}
}

// isWhitespace reports whether c is a PDF whitespace character.
func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}
