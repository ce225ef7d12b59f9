package filters

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/image/ccitt"
)

// faxParams holds the CCITTFaxDecode entries of a decode parameters
// dictionary.
type faxParams struct {
	k         int // <0 Group 4, 0 Group 3 1-D, >0 Group 3 2-D
	columns   int
	rows      int // 0 when the height is found from the data
	blackIs1  bool
	byteAlign bool
}

func parseFaxParams(params Params) faxParams {
	return faxParams{
		k:         getIntParam(params, "K", 0),
		columns:   getIntParam(params, "Columns", 1728),
		rows:      getIntParam(params, "Rows", 0),
		blackIs1:  getBoolParam(params, "BlackIs1", false),
		byteAlign: getBoolParam(params, "EncodedByteAlign", false),
	}
}

func (p faxParams) subFormat() ccitt.SubFormat {
	if p.k < 0 {
		return ccitt.Group4
	}
	return ccitt.Group3
}

// CCITTFaxDecode decodes CCITT Group 3 or Group 4 fax data into rows of
// one bit per pixel, most significant bit first. BlackIs1 inverts the
// output and EncodedByteAlign expects each row to start on a byte.
func CCITTFaxDecode(data []byte, params Params) ([]byte, error) {
	p := parseFaxParams(params)
	rows := p.rows
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}

	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, p.subFormat(), p.columns, rows,
		&ccitt.Options{Align: p.byteAlign, Invert: p.blackIs1})
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ccitt decode failed: %w", err)
	}
	return out, nil
}

// getBoolParam returns the boolean params[key], or defaultValue when it is
// missing or not a boolean.
func getBoolParam(params Params, key string, defaultValue bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return defaultValue
}
