package core

import (
	"fmt"

	"github.com/tsawler/pdfcos/internal/filters"
)

// Decode decodes the stream data according to the Filter(s) specified in the
// stream dictionary. It supports FlateDecode, ASCIIHexDecode, ASCII85Decode,
// CCITTFaxDecode and filter chains. Image filters are passed through.
func (s *Stream) Decode() ([]byte, error) {
	filterObj, err := Deref(s.Dict.Get("Filter"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Filter: %w", err)
	}
	if filterObj == nil || isNullish(filterObj) {
		return s.data, nil
	}

	paramsObj, err := Deref(s.Dict.Get("DecodeParms"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /DecodeParms: %w", err)
	}

	switch f := filterObj.(type) {
	case Name:
		return decodeWithFilter(s.data, string(f), paramsObjToDict(paramsObj))

	case *Array:
		data := s.data
		for i, item := range f.items {
			filterName, ok := item.(Name)
			if !ok {
				return nil, fmt.Errorf("filter %d is not a name: %T", i, item)
			}

			// Parameters are either per filter or shared
			var params *Dict
			if paramsArray, ok := paramsObj.(*Array); ok {
				if i < paramsArray.Len() {
					p, _ := Deref(paramsArray.Get(i))
					params = paramsObjToDict(p)
				}
			} else {
				params = paramsObjToDict(paramsObj)
			}

			data, err = decodeWithFilter(data, string(filterName), params)
			if err != nil {
				return nil, fmt.Errorf("filter %d (%s) failed: %w", i, filterName, err)
			}
		}
		return data, nil
	}

	return nil, fmt.Errorf("invalid Filter type: %T", filterObj)
}

// decodeWithFilter applies a single decompression filter to data.
func decodeWithFilter(data []byte, filterName string, params *Dict) ([]byte, error) {
	switch filterName {
	case "FlateDecode", "Fl":
		return filters.FlateDecode(data, dictToParams(params))

	case "ASCIIHexDecode", "AHx":
		return filters.ASCIIHexDecode(data)

	case "ASCII85Decode", "A85":
		return filters.ASCII85Decode(data)

	case "CCITTFaxDecode", "CCF":
		return filters.CCITTFaxDecode(data, dictToParams(params))

	case "DCTDecode", "DCT", "JPXDecode":
		// image payloads are handed back encoded
		return data, nil

	case "LZWDecode", "LZW", "RunLengthDecode", "RL", "JBIG2Decode", "Crypt":
		return nil, fmt.Errorf("%s not supported", filterName)

	default:
		return nil, fmt.Errorf("unknown filter: %s", filterName)
	}
}

// paramsObjToDict returns obj as a dictionary, or nil for anything else.
func paramsObjToDict(obj Object) *Dict {
	dict, _ := obj.(*Dict)
	return dict
}

// dictToParams converts a Dict to filters.Params, translating PDF object
// types to Go primitive types (Int->int, Real->float64, Bool->bool, etc.).
func dictToParams(dict *Dict) filters.Params {
	if dict == nil {
		return nil
	}

	params := make(filters.Params)
	for _, k := range dict.keys {
		v, err := Deref(dict.values[k])
		if err != nil {
			continue
		}
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case String:
			params[k] = string(obj)
		case Name:
			params[k] = string(obj)
		default:
			params[k] = v
		}
	}
	return params
}
