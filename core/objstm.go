package core

import (
	"bytes"
	"fmt"
	"strconv"
)

// ObjectStream is a decoded object stream (Type /ObjStm, PDF 1.5). The
// stream starts with N pairs of "number offset" and the objects follow
// from byte First on. Decoding happens on first access.
type ObjectStream struct {
	stream  *Stream
	n       int
	first   int
	extends *IndirectRef
	refs    RefTable

	data  []byte
	slots []objStmSlot
}

// objStmSlot is one header entry; obj caches the parsed object.
type objStmSlot struct {
	num    int
	offset int
	obj    Object
}

// NewObjectStream checks the dictionary of stream and wraps it. The stream
// is not decoded yet.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream is nil")
	}
	if typ, ok := stream.Dict.GetName("Type"); !ok || typ != "ObjStm" {
		return nil, fmt.Errorf("stream is not an object stream (Type %v)", stream.Dict.Get("Type"))
	}

	os := &ObjectStream{stream: stream}
	var err error
	if os.n, err = nonNegativeInt(stream.Dict, "N"); err != nil {
		return nil, err
	}
	if os.first, err = nonNegativeInt(stream.Dict, "First"); err != nil {
		return nil, err
	}
	if v := stream.Dict.Get("Extends"); v != nil {
		ref, ok := v.(*IndirectRef)
		if !ok {
			return nil, fmt.Errorf("invalid /Extends type: %T", v)
		}
		os.extends = ref
	}
	return os, nil
}

// nonNegativeInt reads a required integer entry, following a reference if
// necessary.
func nonNegativeInt(d *Dict, key string) (int, error) {
	v := d.Get(key)
	if v == nil {
		return 0, fmt.Errorf("object stream missing /%s", key)
	}
	v, err := Deref(v)
	if err != nil {
		return 0, fmt.Errorf("object stream /%s: %w", key, err)
	}
	i, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("invalid /%s type: %T", key, v)
	}
	if i < 0 {
		return 0, fmt.Errorf("invalid /%s value: %d", key, i)
	}
	return int(i), nil
}

// BindReferences makes references inside the contained objects resolve
// through t. It must be called before the first object is extracted.
func (os *ObjectStream) BindReferences(t RefTable) {
	os.refs = t
}

// N returns the number of objects stored in the stream.
func (os *ObjectStream) N() int { return os.n }

// First returns the offset of the first object in the decoded data.
func (os *ObjectStream) First() int { return os.first }

// Extends returns the object stream this one extends, or nil.
func (os *ObjectStream) Extends() *IndirectRef { return os.extends }

func (os *ObjectStream) load() error {
	if os.slots != nil {
		return nil
	}
	data, err := os.stream.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode object stream: %w", err)
	}
	slots, err := readObjStmHeader(data, os.n, os.first)
	if err != nil {
		return fmt.Errorf("failed to parse object stream header: %w", err)
	}
	os.data, os.slots = data, slots
	return nil
}

// readObjStmHeader reads n "number offset" pairs from data[:first].
func readObjStmHeader(data []byte, n, first int) ([]objStmSlot, error) {
	if first > len(data) {
		return nil, fmt.Errorf("First offset (%d) exceeds decoded data length (%d)", first, len(data))
	}
	lex := NewLexer(bytes.NewReader(data[:first]))
	next := func(what string, i int) (int, error) {
		tok, err := lex.NextToken()
		if err != nil {
			return 0, err
		}
		if tok.Type != TokenInteger {
			return 0, fmt.Errorf("%s %d: expected integer, got %v", what, i, tok.Type)
		}
		v, err := strconv.Atoi(string(tok.Value))
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%s %d: invalid value %q", what, i, tok.Value)
		}
		return v, nil
	}

	slots := make([]objStmSlot, n)
	for i := range slots {
		var err error
		if slots[i].num, err = next("object number", i); err != nil {
			return nil, err
		}
		if slots[i].offset, err = next("offset", i); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

// GetObjectByIndex parses the object at position index of the header and
// returns it with its object number.
func (os *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if err := os.load(); err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(os.slots) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(os.slots))
	}

	slot := &os.slots[index]
	if slot.obj != nil {
		return slot.obj, slot.num, nil
	}

	start := os.first + slot.offset
	end := len(os.data)
	if index+1 < len(os.slots) {
		if next := os.first + os.slots[index+1].offset; next < end {
			end = next
		}
	}
	if start >= len(os.data) || start > end {
		return nil, 0, fmt.Errorf("object %d: offset %d outside decoded data (%d bytes)", slot.num, start, len(os.data))
	}

	parser := NewParser(bytes.NewReader(os.data[start:end]))
	if os.refs != nil {
		parser.SetRefTable(os.refs)
	}
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object at index %d: %w", index, err)
	}
	slot.obj = obj
	return obj, slot.num, nil
}

// GetObjectByNumber parses object objNum and returns it with its index.
func (os *ObjectStream) GetObjectByNumber(objNum int) (Object, int, error) {
	if err := os.load(); err != nil {
		return nil, 0, err
	}
	for i := range os.slots {
		if os.slots[i].num == objNum {
			obj, _, err := os.GetObjectByIndex(i)
			return obj, i, err
		}
	}
	return nil, 0, fmt.Errorf("object %d not found in object stream", objNum)
}

// ObjectNumbers lists the object numbers in header order.
func (os *ObjectStream) ObjectNumbers() ([]int, error) {
	if err := os.load(); err != nil {
		return nil, err
	}
	nums := make([]int, len(os.slots))
	for i, s := range os.slots {
		nums[i] = s.num
	}
	return nums, nil
}

// ContainsObject reports whether objNum is stored in this stream.
func (os *ObjectStream) ContainsObject(objNum int) (bool, error) {
	nums, err := os.ObjectNumbers()
	if err != nil {
		return false, err
	}
	for _, n := range nums {
		if n == objNum {
			return true, nil
		}
	}
	return false, nil
}
