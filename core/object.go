package core

import (
	"strconv"
	"strings"
)

// Object represents a PDF object
type Object interface {
	Type() ObjectType
	String() string
}

// ObjectType represents the type of PDF object
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBool
	ObjInt
	ObjReal
	ObjString
	ObjName
	ObjArray
	ObjDict
	ObjStream
	ObjIndirect
)

// String returns the string representation of the object type
func (t ObjectType) String() string {
	switch t {
	case ObjNull:
		return "Null"
	case ObjBool:
		return "Bool"
	case ObjInt:
		return "Int"
	case ObjReal:
		return "Real"
	case ObjString:
		return "String"
	case ObjName:
		return "Name"
	case ObjArray:
		return "Array"
	case ObjDict:
		return "Dict"
	case ObjStream:
		return "Stream"
	case ObjIndirect:
		return "IndirectRef"
	default:
		return "Unknown"
	}
}

// Null represents a PDF null object
type Null struct{}

func (n Null) Type() ObjectType { return ObjNull }
func (n Null) String() string   { return "null" }

// Bool represents a PDF boolean
type Bool bool

func (b Bool) Type() ObjectType { return ObjBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int represents a PDF integer
type Int int64

func (i Int) Type() ObjectType { return ObjInt }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String represents a PDF string. The value holds the raw bytes; see
// NewTextString and Text for the text string encodings.
type String string

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string   { return string(s) }

// Name represents a PDF name
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + string(n) }

// Array represents a PDF array. Arrays are reference types: two parents
// holding the same *Array share one node of the object graph.
type Array struct {
	items    []Object
	indirect bool
	dirty    bool
}

// NewArray creates an array holding items in order.
func NewArray(items ...Object) *Array {
	return &Array{items: items}
}

func (a *Array) Type() ObjectType { return ObjArray }
func (a *Array) String() string {
	var sb strings.Builder
	format(&sb, a, make(map[Object]bool))
	return sb.String()
}

// Len returns the length of the array
func (a *Array) Len() int {
	return len(a.items)
}

// Get retrieves an element at the given index
func (a *Array) Get(index int) Object {
	if index < 0 || index >= len(a.items) {
		return nil
	}
	return a.items[index]
}

// GetInt retrieves an integer at the given index
func (a *Array) GetInt(index int) (Int, bool) {
	i, ok := a.Get(index).(Int)
	return i, ok
}

// GetReal retrieves a real number at the given index
func (a *Array) GetReal(index int) (Real, bool) {
	r, ok := a.Get(index).(Real)
	return r, ok
}

// GetName retrieves a name at the given index
func (a *Array) GetName(index int) (Name, bool) {
	n, ok := a.Get(index).(Name)
	return n, ok
}

// Items returns a copy of the elements.
func (a *Array) Items() []Object {
	out := make([]Object, len(a.items))
	copy(out, a.items)
	return out
}

// Append adds elements to the end of the array
func (a *Array) Append(objs ...Object) {
	a.items = append(a.items, objs...)
	a.dirty = true
}

// Set replaces the element at index. Out of range indexes are ignored.
func (a *Array) Set(index int, obj Object) {
	if index < 0 || index >= len(a.items) {
		return
	}
	a.items[index] = obj
	a.dirty = true
}

// Remove deletes the element at index.
func (a *Array) Remove(index int) {
	if index < 0 || index >= len(a.items) {
		return
	}
	a.items = append(a.items[:index], a.items[index+1:]...)
	a.dirty = true
}

// IsIndirect reports whether the array was marked to be written as an
// indirect object.
func (a *Array) IsIndirect() bool { return a.indirect }

// SetIndirect requests that the array be written as an indirect object
// even when only one parent refers to it.
func (a *Array) SetIndirect(v bool) { a.indirect = v }

// Dict represents a PDF dictionary. Keys keep their insertion order so a
// parsed dictionary is written back in the order it was read.
type Dict struct {
	keys     []string
	values   map[string]Object
	indirect bool
	dirty    bool
}

// NewDict creates an empty dictionary
func NewDict() *Dict {
	return &Dict{values: make(map[string]Object)}
}

func (d *Dict) Type() ObjectType { return ObjDict }
func (d *Dict) String() string {
	var sb strings.Builder
	format(&sb, d, make(map[Object]bool))
	return sb.String()
}

// Get retrieves a value from the dictionary
func (d *Dict) Get(key string) Object {
	return d.values[key]
}

// GetName retrieves a name value
func (d *Dict) GetName(key string) (Name, bool) {
	n, ok := d.values[key].(Name)
	return n, ok
}

// GetInt retrieves an integer value
func (d *Dict) GetInt(key string) (Int, bool) {
	i, ok := d.values[key].(Int)
	return i, ok
}

// GetReal retrieves a real number value
func (d *Dict) GetReal(key string) (Real, bool) {
	r, ok := d.values[key].(Real)
	return r, ok
}

// GetString retrieves a string value
func (d *Dict) GetString(key string) (String, bool) {
	s, ok := d.values[key].(String)
	return s, ok
}

// GetBool retrieves a boolean value
func (d *Dict) GetBool(key string) (Bool, bool) {
	b, ok := d.values[key].(Bool)
	return b, ok
}

// GetDict retrieves a dictionary value stored directly under key.
// It does not follow references; use ResolveDict for parsed documents.
func (d *Dict) GetDict(key string) (*Dict, bool) {
	v, ok := d.values[key].(*Dict)
	return v, ok
}

// GetArray retrieves an array value stored directly under key.
// It does not follow references; use ResolveArray for parsed documents.
func (d *Dict) GetArray(key string) (*Array, bool) {
	v, ok := d.values[key].(*Array)
	return v, ok
}

// GetStream retrieves a stream value stored directly under key.
// It does not follow references; use ResolveStream for parsed documents.
func (d *Dict) GetStream(key string) (*Stream, bool) {
	v, ok := d.values[key].(*Stream)
	return v, ok
}

// GetIndirectRef retrieves an indirect reference
func (d *Dict) GetIndirectRef(key string) (*IndirectRef, bool) {
	v, ok := d.values[key].(*IndirectRef)
	return v, ok
}

// Has checks if a key exists in the dictionary
func (d *Dict) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Set sets a value in the dictionary. A nil value removes the key.
func (d *Dict) Set(key string, value Object) {
	if value == nil {
		d.Delete(key)
		return
	}
	if d.values == nil {
		d.values = make(map[string]Object)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	d.dirty = true
}

// Delete removes a key from the dictionary
func (d *Dict) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	d.dirty = true
}

// Keys returns all keys in insertion order
func (d *Dict) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Len returns the number of entries
func (d *Dict) Len() int {
	return len(d.keys)
}

// IsIndirect reports whether the dictionary was marked to be written as
// an indirect object.
func (d *Dict) IsIndirect() bool { return d.indirect }

// SetIndirect requests that the dictionary be written as an indirect
// object even when only one parent refers to it.
func (d *Dict) SetIndirect(v bool) { d.indirect = v }

// Stream represents a PDF stream object. Data holds the payload exactly as
// stored in the file, i.e. after the filters named in the dictionary.
type Stream struct {
	Dict  *Dict
	data  []byte
	dirty bool
}

// NewStream creates a stream from a dictionary and its encoded payload.
// A nil dictionary is replaced by an empty one.
func NewStream(dict *Dict, data []byte) *Stream {
	if dict == nil {
		dict = NewDict()
	}
	return &Stream{Dict: dict, data: data}
}

func (s *Stream) Type() ObjectType { return ObjStream }
func (s *Stream) String() string {
	return "stream " + s.Dict.String() + " (" + strconv.Itoa(len(s.data)) + " bytes)"
}

// Data returns the raw (still encoded) payload.
func (s *Stream) Data() []byte {
	return s.data
}

// SetData replaces the raw payload. The caller is responsible for keeping
// the Filter entry consistent with the new bytes.
func (s *Stream) SetData(data []byte) {
	s.data = data
	s.dirty = true
}

// format writes a debug rendering of obj. Nodes already on the current
// path print as "..." so cyclic graphs terminate.
func format(sb *strings.Builder, obj Object, path map[Object]bool) {
	switch v := obj.(type) {
	case *Array:
		if path[v] {
			sb.WriteString("...")
			return
		}
		path[v] = true
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			format(sb, item, path)
		}
		sb.WriteByte(']')
		delete(path, v)
	case *Dict:
		if path[v] {
			sb.WriteString("...")
			return
		}
		path[v] = true
		sb.WriteString("<<")
		for i, k := range v.keys {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString("/" + k + " ")
			format(sb, v.values[k], path)
		}
		sb.WriteString(">>")
		delete(path, v)
	case nil:
		sb.WriteString("null")
	default:
		sb.WriteString(v.String())
	}
}
