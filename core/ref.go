package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrObjectNotFound is returned by an ObjectSource for numbers that are
	// free or absent from the cross-reference table.
	ErrObjectNotFound = errors.New("pdf: object not found")

	// ErrUnbound is returned when resolving a reference that has no source.
	ErrUnbound = errors.New("pdf: reference is not bound to a source")
)

// maxDerefChain bounds how many references Deref follows in a row.
const maxDerefChain = 32

// ObjectID identifies an indirect object by number and generation.
type ObjectID struct {
	Number     int
	Generation int
}

// String returns the reference form, e.g. "12 0 R".
func (id ObjectID) String() string {
	return fmt.Sprintf("%d %d R", id.Number, id.Generation)
}

// ObjectSource loads indirect objects by ID. It is implemented by the
// reader's object table and owns every object it returns.
type ObjectSource interface {
	Load(id ObjectID) (Object, error)
}

// RefTable hands out the single shared reference node for an ID, so that
// every occurrence of "n g R" in a document is the same graph node.
type RefTable interface {
	Ref(id ObjectID) *IndirectRef
}

// IndirectRef is a node whose identity was assigned by a previously parsed
// file. It remembers its object number and generation and resolves its
// target lazily through the source it was bound to, without owning it.
type IndirectRef struct {
	id  ObjectID
	src ObjectSource

	mu       sync.Mutex
	loaded   bool
	target   Object
	replaced bool
}

// NewIndirectRef creates a reference to id resolved through src. A nil
// src yields a reference that can only be resolved after Replace.
func NewIndirectRef(id ObjectID, src ObjectSource) *IndirectRef {
	return &IndirectRef{id: id, src: src}
}

func (r *IndirectRef) Type() ObjectType { return ObjIndirect }
func (r *IndirectRef) String() string   { return r.id.String() }

// ID returns the object number and generation from the source file.
func (r *IndirectRef) ID() ObjectID { return r.id }

// Resolve returns the referenced object, loading it on first use.
// References to free or missing objects resolve to Null.
func (r *IndirectRef) Resolve() (Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return r.target, nil
	}
	if r.src == nil {
		return nil, fmt.Errorf("resolve %s: %w", r.id, ErrUnbound)
	}

	obj, err := r.src.Load(r.id)
	if errors.Is(err, ErrObjectNotFound) {
		obj, err = Null{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", r.id, err)
	}
	r.target = obj
	r.loaded = true
	return obj, nil
}

// Loaded reports whether the target has been loaded or replaced.
func (r *IndirectRef) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Replace installs obj as the new content of this object number. An
// incremental write emits the new content under the original number.
func (r *IndirectRef) Replace(obj Object) {
	if obj == nil {
		obj = Null{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = obj
	r.loaded = true
	r.replaced = true
}

// Modified reports whether the content behind this reference differs from
// what was loaded: either it was replaced, or the loaded target or one of
// its direct (non-reference) descendants was mutated. Unloaded references
// are never modified.
func (r *IndirectRef) Modified() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaced {
		return true
	}
	if !r.loaded {
		return false
	}
	return isModified(r.target, make(map[Object]bool))
}

// Deref follows references until it reaches a direct object.
func Deref(obj Object) (Object, error) {
	for i := 0; i < maxDerefChain; i++ {
		ref, ok := obj.(*IndirectRef)
		if !ok {
			return obj, nil
		}
		resolved, err := ref.Resolve()
		if err != nil {
			return nil, err
		}
		obj = resolved
	}
	return nil, fmt.Errorf("reference chain longer than %d", maxDerefChain)
}

// Resolve returns the value under key with references followed. Missing
// keys and references to free objects both give Null.
func (d *Dict) Resolve(key string) (Object, error) {
	v := d.Get(key)
	if v == nil {
		return Null{}, nil
	}
	return Deref(v)
}

// ResolveDict returns the dictionary under key, following references. It
// returns nil and no error when the key is absent or null.
func (d *Dict) ResolveDict(key string) (*Dict, error) {
	v, err := d.resolveTyped(key)
	if v == nil || err != nil {
		return nil, err
	}
	dict, ok := v.(*Dict)
	if !ok {
		return nil, fmt.Errorf("/%s is %T, not a dictionary", key, v)
	}
	return dict, nil
}

// ResolveArray is ResolveDict for arrays.
func (d *Dict) ResolveArray(key string) (*Array, error) {
	v, err := d.resolveTyped(key)
	if v == nil || err != nil {
		return nil, err
	}
	arr, ok := v.(*Array)
	if !ok {
		return nil, fmt.Errorf("/%s is %T, not an array", key, v)
	}
	return arr, nil
}

// ResolveStream is ResolveDict for streams.
func (d *Dict) ResolveStream(key string) (*Stream, error) {
	v, err := d.resolveTyped(key)
	if v == nil || err != nil {
		return nil, err
	}
	s, ok := v.(*Stream)
	if !ok {
		return nil, fmt.Errorf("/%s is %T, not a stream", key, v)
	}
	return s, nil
}

// resolveTyped resolves key, mapping Null to a nil object.
func (d *Dict) resolveTyped(key string) (Object, error) {
	v, err := d.Resolve(key)
	if err != nil {
		return nil, fmt.Errorf("/%s: %w", key, err)
	}
	if _, null := v.(Null); null {
		return nil, nil
	}
	return v, nil
}

// IsModified reports whether obj or one of its direct (non-reference)
// descendants was mutated since it was parsed or marked clean.
func IsModified(obj Object) bool {
	return isModified(obj, make(map[Object]bool))
}

// isModified walks direct descendants looking for a dirty node.
func isModified(obj Object, seen map[Object]bool) bool {
	switch v := obj.(type) {
	case *Dict:
		if seen[v] {
			return false
		}
		seen[v] = true
		if v.dirty {
			return true
		}
		for _, k := range v.keys {
			if isModified(v.values[k], seen) {
				return true
			}
		}
	case *Array:
		if seen[v] {
			return false
		}
		seen[v] = true
		if v.dirty {
			return true
		}
		for _, item := range v.items {
			if isModified(item, seen) {
				return true
			}
		}
	case *Stream:
		if seen[v] {
			return false
		}
		seen[v] = true
		return v.dirty || isModified(v.Dict, seen)
	}
	return false
}

// MarkClean clears the modification flags of obj and its direct
// descendants. Object sources call it on freshly parsed objects.
func MarkClean(obj Object) {
	markClean(obj, make(map[Object]bool))
}

func markClean(obj Object, seen map[Object]bool) {
	switch v := obj.(type) {
	case *Dict:
		if seen[v] {
			return
		}
		seen[v] = true
		v.dirty = false
		for _, k := range v.keys {
			markClean(v.values[k], seen)
		}
	case *Array:
		if seen[v] {
			return
		}
		seen[v] = true
		v.dirty = false
		for _, item := range v.items {
			markClean(item, seen)
		}
	case *Stream:
		if seen[v] {
			return
		}
		seen[v] = true
		v.dirty = false
		markClean(v.Dict, seen)
	}
}
