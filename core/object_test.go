package core

import (
	"strings"
	"testing"
)

// TestObjectType tests the Type method and its string form for each object
func TestObjectType(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want ObjectType
		str  string
	}{
		{"null", Null{}, ObjNull, "Null"},
		{"bool", Bool(true), ObjBool, "Bool"},
		{"int", Int(1), ObjInt, "Int"},
		{"real", Real(1.5), ObjReal, "Real"},
		{"string", String("x"), ObjString, "String"},
		{"name", Name("X"), ObjName, "Name"},
		{"array", NewArray(), ObjArray, "Array"},
		{"dict", NewDict(), ObjDict, "Dict"},
		{"stream", NewStream(nil, nil), ObjStream, "Stream"},
		{"indirect", NewIndirectRef(ObjectID{1, 0}, nil), ObjIndirect, "IndirectRef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.obj.Type(); got != tt.want {
				t.Errorf("Type() = %v, want %v", got, tt.want)
			}
			if got := tt.want.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
		})
	}
}

// TestPrimitiveString tests the String method on primitive objects
func TestPrimitiveString(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"null", Null{}, "null"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"int", Int(-42), "-42"},
		{"real", Real(3.25), "3.25"},
		{"real integral", Real(2), "2"},
		{"string", String("hi"), "hi"},
		{"name", Name("Type"), "/Type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.obj.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestArray tests array accessors and mutators
func TestArray(t *testing.T) {
	arr := NewArray(Int(1), Real(2.5), Name("N"))

	if arr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", arr.Len())
	}
	if v, ok := arr.GetInt(0); !ok || v != 1 {
		t.Errorf("GetInt(0) = %v, %v", v, ok)
	}
	if v, ok := arr.GetReal(1); !ok || v != 2.5 {
		t.Errorf("GetReal(1) = %v, %v", v, ok)
	}
	if v, ok := arr.GetName(2); !ok || v != "N" {
		t.Errorf("GetName(2) = %v, %v", v, ok)
	}
	if _, ok := arr.GetInt(1); ok {
		t.Error("GetInt(1) on a real should fail")
	}
	if arr.Get(-1) != nil || arr.Get(3) != nil {
		t.Error("out of range Get should return nil")
	}

	arr.Append(Bool(true))
	arr.Set(0, Int(10))
	arr.Remove(1)
	if arr.Len() != 3 {
		t.Fatalf("Len() after edits = %d, want 3", arr.Len())
	}
	if v, _ := arr.GetInt(0); v != 10 {
		t.Errorf("Get(0) = %v, want 10", v)
	}
	if _, ok := arr.Get(2).(Bool); !ok {
		t.Errorf("Get(2) = %T, want Bool", arr.Get(2))
	}

	items := arr.Items()
	items[0] = Int(99)
	if v, _ := arr.GetInt(0); v != 10 {
		t.Error("Items() should return a copy")
	}

	if got := NewArray(Int(1), Name("A")).String(); got != "[1 /A]" {
		t.Errorf("String() = %q", got)
	}
}

// TestDict tests dictionary accessors and key ordering
func TestDict(t *testing.T) {
	d := NewDict()
	d.Set("Type", Name("Page"))
	d.Set("Count", Int(3))
	d.Set("Scale", Real(0.5))
	d.Set("Title", String("t"))
	d.Set("Open", Bool(true))
	d.Set("Kids", NewArray())
	d.Set("Res", NewDict())
	d.Set("Content", NewStream(nil, []byte("q Q")))
	d.Set("Parent", NewIndirectRef(ObjectID{3, 0}, nil))

	if v, ok := d.GetName("Type"); !ok || v != "Page" {
		t.Errorf("GetName = %v, %v", v, ok)
	}
	if v, ok := d.GetInt("Count"); !ok || v != 3 {
		t.Errorf("GetInt = %v, %v", v, ok)
	}
	if v, ok := d.GetReal("Scale"); !ok || v != 0.5 {
		t.Errorf("GetReal = %v, %v", v, ok)
	}
	if v, ok := d.GetString("Title"); !ok || v != "t" {
		t.Errorf("GetString = %v, %v", v, ok)
	}
	if v, ok := d.GetBool("Open"); !ok || !bool(v) {
		t.Errorf("GetBool = %v, %v", v, ok)
	}
	if _, ok := d.GetArray("Kids"); !ok {
		t.Error("GetArray failed")
	}
	if _, ok := d.GetDict("Res"); !ok {
		t.Error("GetDict failed")
	}
	if _, ok := d.GetStream("Content"); !ok {
		t.Error("GetStream failed")
	}
	if r, ok := d.GetIndirectRef("Parent"); !ok || r.ID() != (ObjectID{3, 0}) {
		t.Error("GetIndirectRef failed")
	}
	if _, ok := d.GetInt("Type"); ok {
		t.Error("GetInt on a name should fail")
	}

	want := []string{"Type", "Count", "Scale", "Title", "Open", "Kids", "Res", "Content", "Parent"}
	if got := d.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	// Overwriting keeps position; deleting removes it
	d.Set("Type", Name("Pages"))
	d.Delete("Count")
	d.Set("Scale", nil)
	want = []string{"Type", "Title", "Open", "Kids", "Res", "Content", "Parent"}
	if got := d.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Keys() after edits = %v, want %v", got, want)
	}
	if d.Has("Count") || d.Len() != 7 {
		t.Errorf("Has(Count) = %v, Len() = %d", d.Has("Count"), d.Len())
	}
}

// TestDictString tests formatting of nested and cyclic dictionaries
func TestDictString(t *testing.T) {
	d := NewDict()
	d.Set("Type", Name("Catalog"))
	d.Set("Pages", NewIndirectRef(ObjectID{2, 0}, nil))
	if got := d.String(); got != "<</Type /Catalog /Pages 2 0 R>>" {
		t.Errorf("String() = %q", got)
	}

	a := NewDict()
	b := NewDict()
	a.Set("Next", b)
	b.Set("Next", a)
	if got := a.String(); !strings.Contains(got, "...") {
		t.Errorf("cyclic String() = %q, want a cycle marker", got)
	}
}

// TestStream tests stream construction and data replacement
func TestStream(t *testing.T) {
	s := NewStream(nil, []byte("abc"))
	if s.Dict == nil {
		t.Fatal("NewStream(nil, ...) should allocate a dictionary")
	}
	if string(s.Data()) != "abc" {
		t.Errorf("Data() = %q", s.Data())
	}
	s.SetData([]byte("defg"))
	if string(s.Data()) != "defg" {
		t.Errorf("Data() after SetData = %q", s.Data())
	}
}

// TestIndirectMarking tests the SetIndirect request on composites
func TestIndirectMarking(t *testing.T) {
	d := NewDict()
	a := NewArray()
	if d.IsIndirect() || a.IsIndirect() {
		t.Fatal("new composites should be direct")
	}
	d.SetIndirect(true)
	a.SetIndirect(true)
	if !d.IsIndirect() || !a.IsIndirect() {
		t.Error("SetIndirect(true) not recorded")
	}
}

// TestSharedNodes tests that composites are shared by reference
func TestSharedNodes(t *testing.T) {
	shared := NewDict()
	p1 := NewArray(shared)
	p2 := NewDict()
	p2.Set("X", shared)

	shared.Set("Font", Name("F1"))
	got, _ := p2.GetDict("X")
	if got != shared || p1.Get(0) != Object(shared) {
		t.Fatal("parents should hold the same node")
	}
	if !got.Has("Font") {
		t.Error("mutation through one parent should be visible through the other")
	}
}
