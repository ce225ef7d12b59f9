package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Params represents decode parameters from PDF stream dictionaries.
// Common parameters include Predictor, Columns, Colors, and BitsPerComponent.
type Params map[string]interface{}

// FlateDecode decompresses zlib data and undoes the predictor named in
// params, if any.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	out, err := zlibDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}

	predictor := getIntParam(params, "Predictor", 1)
	if predictor == 1 {
		return out, nil
	}
	out, err = applyPredictor(out, predictor, params)
	if err != nil {
		return nil, fmt.Errorf("predictor failed: %w", err)
	}
	return out, nil
}

// FlateEncode compresses data with zlib at the default level. No predictor
// is applied.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	return buf.Bytes(), nil
}

func zlibDecompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

// rowLayout describes the sample rows a predictor works on.
type rowLayout struct {
	stride int // bytes per row, without the PNG tag byte
	bpp    int // bytes per pixel, rounded up to at least 1
	bpc    int
	colors int
}

func layoutFor(params Params) (rowLayout, error) {
	columns := getIntParam(params, "Columns", 1)
	colors := getIntParam(params, "Colors", 1)
	bpc := getIntParam(params, "BitsPerComponent", 8)

	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return rowLayout{}, fmt.Errorf("unsupported BitsPerComponent %d", bpc)
	}
	if columns < 1 || colors < 1 {
		return rowLayout{}, fmt.Errorf("invalid predictor geometry: %d columns, %d colors", columns, colors)
	}

	bits := colors * bpc
	return rowLayout{
		stride: (columns*bits + 7) / 8,
		bpp:    (bits + 7) / 8,
		bpc:    bpc,
		colors: colors,
	}, nil
}

// applyPredictor undoes predictor 2 (TIFF) or 10-15 (PNG, where the tag
// byte of each row picks the algorithm).
func applyPredictor(data []byte, predictor int, params Params) ([]byte, error) {
	layout, err := layoutFor(params)
	if err != nil {
		return nil, err
	}
	switch {
	case predictor == 2:
		return applyTIFFPredictor2(data, layout)
	case predictor >= 10 && predictor <= 15:
		return applyPNGPredictor(data, layout)
	}
	return nil, fmt.Errorf("unsupported predictor: %d", predictor)
}

// applyTIFFPredictor2 adds each 8-bit sample to the same component of the
// pixel on its left.
func applyTIFFPredictor2(data []byte, layout rowLayout) ([]byte, error) {
	if layout.bpc != 8 {
		return nil, fmt.Errorf("TIFF Predictor 2 only supports 8 bits per component, got %d", layout.bpc)
	}
	if len(data)%layout.stride != 0 {
		return nil, fmt.Errorf("data size %d is not a multiple of row size %d", len(data), layout.stride)
	}

	out := append([]byte(nil), data...)
	for start := 0; start < len(out); start += layout.stride {
		row := out[start : start+layout.stride]
		for i := layout.colors; i < len(row); i++ {
			row[i] += row[i-layout.colors]
		}
	}
	return out, nil
}

// applyPNGPredictor strips the tag byte from every row and reverses the
// filter it names.
func applyPNGPredictor(data []byte, layout rowLayout) ([]byte, error) {
	rowSize := layout.stride + 1
	if len(data)%rowSize != 0 {
		return nil, fmt.Errorf("data size %d is not a multiple of row size %d", len(data), rowSize)
	}

	out := make([]byte, 0, len(data)/rowSize*layout.stride)
	prev := make([]byte, layout.stride)
	for start := 0; start < len(data); start += rowSize {
		n := len(out)
		out = append(out, data[start+1:start+rowSize]...)
		cur := out[n:]
		if err := decodePNGRow(data[start], cur, prev, layout.bpp); err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", start/rowSize, err)
		}
		prev = cur
	}
	return out, nil
}

// decodePNGRow reverses one PNG filter in place. prev is the decoded row
// above, all zero for the first row.
func decodePNGRow(tag byte, cur, prev []byte, bpp int) error {
	switch tag {
	case 0: // None
	case 1: // Sub
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case 2: // Up
		for i := range cur {
			cur[i] += prev[i]
		}
	case 3: // Average
		for i := range cur {
			var left byte
			if i >= bpp {
				left = cur[i-bpp]
			}
			cur[i] += byte((int(left) + int(prev[i])) / 2)
		}
	case 4: // Paeth
		for i := range cur {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			cur[i] += paethPredictor(left, prev[i], upLeft)
		}
	default:
		return fmt.Errorf("unknown PNG predictor: %d", tag)
	}
	return nil
}

// paethPredictor returns whichever of left (a), above (b) and upper left
// (c) is closest to a+b-c, preferring them in that order.
func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

// getIntParam returns the integer params[key], or defaultValue when it is
// missing or not a number.
func getIntParam(params Params, key string, defaultValue int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultValue
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
