package core

import (
	"errors"
	"fmt"
	"io"
)

// ErrMissingCatalog is returned when the trailer has no Root entry or it
// does not lead to a dictionary.
var ErrMissingCatalog = errors.New("pdf: catalog cannot be found")

// Origin describes the file a document was parsed from. Incremental writes
// copy its bytes and append to them.
type Origin interface {
	io.ReaderAt

	// Size returns the length of the source file in bytes.
	Size() int64

	// StartXRef returns the offset of the newest cross-reference section.
	StartXRef() int64

	// NextObjectNumber returns a number greater than every object number
	// used by the source file.
	NextObjectNumber() int

	// Owner returns the reference whose loaded target is obj, if any.
	Owner(obj Object) (*IndirectRef, bool)
}

// Document is the root of a PDF object graph: the trailer dictionary plus
// the header version and the kind of cross-reference section to write.
type Document struct {
	trailer    *Dict
	version    float64
	xrefStream bool
	origin     Origin
}

// NewDocument creates a document with an empty catalog and version 1.4.
func NewDocument() *Document {
	catalog := NewDict()
	catalog.Set("Type", Name("Catalog"))
	trailer := NewDict()
	trailer.Set("Root", catalog)
	return NewDocumentWithTrailer(trailer, 1.4)
}

// NewDocumentWithTrailer wraps an existing trailer dictionary.
func NewDocumentWithTrailer(trailer *Dict, version float64) *Document {
	if trailer == nil {
		panic("core: trailer cannot be nil")
	}
	return &Document{trailer: trailer, version: version}
}

// Trailer returns the trailer dictionary
func (d *Document) Trailer() *Dict {
	return d.trailer
}

// Version returns the header version, e.g. 1.7
func (d *Document) Version() float64 {
	return d.version
}

// SetVersion sets the header version. It is validated when written.
func (d *Document) SetVersion(v float64) {
	d.version = v
}

// IsXRefStream reports whether the cross-reference section is written as
// a stream (PDF 1.5) rather than a classic table.
func (d *Document) IsXRefStream() bool {
	return d.xrefStream
}

// SetXRefStream selects the cross-reference encoding.
func (d *Document) SetXRefStream(v bool) {
	d.xrefStream = v
}

// Origin returns the source file description, or nil for documents built
// in memory.
func (d *Document) Origin() Origin {
	return d.origin
}

// SetOrigin records the file the document was parsed from.
func (d *Document) SetOrigin(o Origin) {
	d.origin = o
}

// Catalog returns the document catalog, following any references from the
// trailer's Root entry. The result must be a dictionary; its /Type is not
// checked, since producers omit or misspell it in otherwise valid files.
func (d *Document) Catalog() (*Dict, error) {
	root := d.trailer.Get("Root")
	if root == nil {
		return nil, fmt.Errorf("trailer has no /Root: %w", ErrMissingCatalog)
	}
	obj, err := Deref(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}
	catalog, ok := obj.(*Dict)
	if !ok {
		return nil, fmt.Errorf("/Root is %T: %w", obj, ErrMissingCatalog)
	}
	return catalog, nil
}

// IsEncrypted reports whether the trailer has an Encrypt entry, whether or
// not it can be resolved.
func (d *Document) IsEncrypted() bool {
	return d.trailer.Has("Encrypt")
}

// EncryptionDictionary returns the Encrypt dictionary, or nil if absent.
func (d *Document) EncryptionDictionary() (*Dict, error) {
	obj, err := d.lookup("Encrypt")
	if err != nil || obj == nil {
		return nil, err
	}
	dict, ok := obj.(*Dict)
	if !ok {
		return nil, fmt.Errorf("/Encrypt is %T, expected dictionary", obj)
	}
	return dict, nil
}

// SetEncryptionDictionary installs dict as a direct Encrypt entry. It is
// meant to be called while encrypting a document.
func (d *Document) SetEncryptionDictionary(dict *Dict) {
	if dict == nil {
		d.trailer.Delete("Encrypt")
		return
	}
	d.trailer.Set("Encrypt", dict)
}

// DocumentID returns the two-string ID array, or nil if absent.
func (d *Document) DocumentID() (*Array, error) {
	obj, err := d.lookup("ID")
	if err != nil || obj == nil {
		return nil, err
	}
	arr, ok := obj.(*Array)
	if !ok {
		return nil, fmt.Errorf("/ID is %T, expected array", obj)
	}
	return arr, nil
}

// SetDocumentID sets the ID array.
func (d *Document) SetDocumentID(id *Array) {
	if id == nil {
		d.trailer.Delete("ID")
		return
	}
	d.trailer.Set("ID", id)
}

// lookup dereferences a trailer entry; absent and null entries yield nil.
func (d *Document) lookup(key string) (Object, error) {
	v := d.trailer.Get(key)
	if v == nil {
		return nil, nil
	}
	obj, err := Deref(v)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /%s: %w", key, err)
	}
	if _, ok := obj.(Null); ok {
		return nil, nil
	}
	return obj, nil
}
