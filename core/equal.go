package core

import "bytes"

// Equal reports whether two object graphs are observably the same:
// identical dictionary keys and values, array order and stream bytes.
// References are followed on both sides, so a graph re-read from a file
// compares equal to the graph it was written from regardless of object
// numbering. Cycles are tolerated; a pair already under comparison is
// assumed equal. Resolution errors make the graphs unequal.
func Equal(a, b Object) bool {
	return equal(a, b, make(map[[2]Object]bool))
}

func equal(a, b Object, inProgress map[[2]Object]bool) bool {
	a, errA := Deref(a)
	b, errB := Deref(b)
	if errA != nil || errB != nil {
		return false
	}
	if a == nil || b == nil {
		return isNullish(a) && isNullish(b)
	}
	if a.Type() != b.Type() {
		return false
	}

	switch va := a.(type) {
	case *Dict:
		vb := b.(*Dict)
		key := [2]Object{va, vb}
		if inProgress[key] {
			return true
		}
		inProgress[key] = true
		return equalDict(va, vb, inProgress, "")

	case *Array:
		vb := b.(*Array)
		key := [2]Object{va, vb}
		if inProgress[key] {
			return true
		}
		inProgress[key] = true
		if len(va.items) != len(vb.items) {
			return false
		}
		for i := range va.items {
			if !equal(va.items[i], vb.items[i], inProgress) {
				return false
			}
		}
		return true

	case *Stream:
		vb := b.(*Stream)
		key := [2]Object{va, vb}
		if inProgress[key] {
			return true
		}
		inProgress[key] = true
		// Length is derived from the payload and rewritten on output
		return bytes.Equal(va.data, vb.data) && equalDict(va.Dict, vb.Dict, inProgress, "Length")

	default:
		// primitives are comparable values
		return a == b
	}
}

func equalDict(a, b *Dict, inProgress map[[2]Object]bool, skip string) bool {
	count := func(d *Dict) int {
		if skip != "" && d.Has(skip) {
			return len(d.keys) - 1
		}
		return len(d.keys)
	}
	if count(a) != count(b) {
		return false
	}
	for _, k := range a.keys {
		if skip != "" && k == skip {
			continue
		}
		vb, ok := b.values[k]
		if !ok {
			return false
		}
		if !equal(a.values[k], vb, inProgress) {
			return false
		}
	}
	return true
}

func isNullish(o Object) bool {
	if o == nil {
		return true
	}
	_, ok := o.(Null)
	return ok
}
