package core

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"testing"
)

// zlibCompress compresses data for testing
func zlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func filterDict(filter Object, params Object) *Dict {
	d := NewDict()
	if filter != nil {
		d.Set("Filter", filter)
	}
	if params != nil {
		d.Set("DecodeParms", params)
	}
	return d
}

// TestStreamDecode tests single filters and filter chains
func TestStreamDecode(t *testing.T) {
	original := []byte("This is test data for the stream filters")
	hexOfFlate := []byte(hex.EncodeToString(zlibCompress(original)) + ">")

	predictor := NewDict()
	predictor.Set("Predictor", Int(1))

	tests := []struct {
		name   string
		filter Object
		params Object
		data   []byte
		want   []byte
	}{
		{"no filter", nil, nil, original, original},
		{"null filter", Null{}, nil, original, original},
		{"FlateDecode", Name("FlateDecode"), nil, zlibCompress(original), original},
		{"Fl abbreviation", Name("Fl"), nil, zlibCompress(original), original},
		{"FlateDecode with params", Name("FlateDecode"), predictor, zlibCompress(original), original},
		{"ASCIIHexDecode", Name("ASCIIHexDecode"), nil, []byte("48656C6C6F>"), []byte("Hello")},
		{"ASCII85Decode", Name("ASCII85Decode"), nil, []byte("87cURDZ~>"), []byte("Hello")},
		{"chain", NewArray(Name("ASCIIHexDecode"), Name("FlateDecode")), nil, hexOfFlate, original},
		{"chain with params", NewArray(Name("AHx"), Name("Fl")), NewArray(Null{}, predictor), hexOfFlate, original},
		{"DCTDecode passthrough", Name("DCTDecode"), nil, []byte("\xFF\xD8\xFF"), []byte("\xFF\xD8\xFF")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := NewStream(filterDict(tt.filter, tt.params), tt.data)
			decoded, err := stream.Decode()
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(decoded, tt.want) {
				t.Errorf("decoded = %q, want %q", decoded, tt.want)
			}
		})
	}
}

// TestStreamDecodeIndirectFilter tests filters given by reference
func TestStreamDecodeIndirectFilter(t *testing.T) {
	original := []byte("indirect")
	src := &mapSource{objects: map[ObjectID]Object{{4, 0}: Name("FlateDecode")}}
	stream := NewStream(filterDict(NewIndirectRef(ObjectID{4, 0}, src), nil), zlibCompress(original))

	decoded, err := stream.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded, original) {
		t.Errorf("decoded = %q", decoded)
	}
}

// TestStreamDecodeErrors tests error handling
func TestStreamDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter Object
	}{
		{"unknown filter", Name("UnknownFilter")},
		{"unsupported filter", Name("LZWDecode")},
		{"invalid filter type", Int(123)},
		{"non-name in chain", NewArray(Name("FlateDecode"), Int(1))},
		{"corrupt flate", Name("FlateDecode")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := NewStream(filterDict(tt.filter, nil), []byte("data"))
			if _, err := stream.Decode(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestDictToParams tests conversion of decode parameters
func TestDictToParams(t *testing.T) {
	if dictToParams(nil) != nil {
		t.Error("nil dict should give nil params")
	}

	d := NewDict()
	d.Set("Predictor", Int(12))
	d.Set("Scale", Real(0.5))
	d.Set("BlackIs1", Bool(true))
	d.Set("Name", Name("X"))

	params := dictToParams(d)
	if params["Predictor"] != 12 || params["Scale"] != 0.5 || params["BlackIs1"] != true || params["Name"] != "X" {
		t.Errorf("dictToParams() = %v", params)
	}

	if paramsObjToDict(Int(1)) != nil || paramsObjToDict(nil) != nil {
		t.Error("non-dictionaries should give nil")
	}
}
