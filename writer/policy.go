package writer

import "github.com/tsawler/pdfcos/core"

// IndirectionPolicy decides which object ID an indirect node is written
// under and whether its body has to be emitted.
type IndirectionPolicy interface {
	// CreateIndirectReferenceIfNeeded returns the ID for obj and whether
	// its body must be written in this output.
	CreateIndirectReferenceIfNeeded(ctx *Context, obj core.Object) (core.ObjectID, bool)

	// Retained reports whether obj and everything below it are stored
	// unchanged in the base file, in which case nothing below it is
	// visited.
	Retained(obj core.Object) bool
}

// FullPolicy numbers every indirect node afresh. References from a parsed
// file are renumbered like any other node.
type FullPolicy struct{}

func (FullPolicy) CreateIndirectReferenceIfNeeded(ctx *Context, obj core.Object) (core.ObjectID, bool) {
	id, _ := ctx.NumberFor(obj)
	return id, true
}

func (FullPolicy) Retained(core.Object) bool { return false }

// IncrementalPolicy keeps the numbers of objects from the base file.
// Unmodified references are written by reference only; modified ones are
// rewritten under their original number and generation, superseding the
// old xref entry. Everything else gets a number above the base file's.
type IncrementalPolicy struct{}

func (p IncrementalPolicy) CreateIndirectReferenceIfNeeded(ctx *Context, obj core.Object) (core.ObjectID, bool) {
	ref, ok := obj.(*core.IndirectRef)
	if !ok {
		id, _ := ctx.NumberFor(obj)
		return id, true
	}
	ctx.RegisterExisting(ref.ID(), ref)
	return ref.ID(), ref.Modified()
}

// Retained only prunes references that were never loaded. A loaded
// reference may be unchanged itself while an object below it was edited.
func (IncrementalPolicy) Retained(obj core.Object) bool {
	ref, ok := obj.(*core.IndirectRef)
	return ok && !ref.Loaded()
}
