package pdfcos

import (
	"fmt"
	"io"

	"github.com/tsawler/pdfcos/core"
	"github.com/tsawler/pdfcos/observability"
	"github.com/tsawler/pdfcos/reader"
	"github.com/tsawler/pdfcos/writer"
)

// EditFunc changes a document in place.
type EditFunc func(doc *core.Document) error

// Editor provides a fluent interface for changing a PDF and saving it.
// Each configuration method returns a new Editor instance, allowing method
// chaining; edits are applied in order when a terminal operation runs.
type Editor struct {
	// Source
	filename string

	reader *reader.Reader
	doc    *core.Document

	// Lifecycle
	ownsReader   bool // true if we opened the reader and should close it
	readerOpened bool // true if reader has been opened

	// Configuration
	options SaveOptions
	edits   []EditFunc
	applied int

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Editor with a deep copy of options.
func (e *Editor) clone() *Editor {
	return &Editor{
		filename:     e.filename,
		reader:       e.reader,
		doc:          e.doc,
		ownsReader:   e.ownsReader,
		readerOpened: e.readerOpened,
		options:      e.options.clone(),
		edits:        append([]EditFunc(nil), e.edits...),
		applied:      e.applied,
		err:          e.err,
	}
}

// ensureReader opens the reader if not already open.
func (e *Editor) ensureReader() error {
	if e.readerOpened {
		return nil
	}
	if e.filename == "" {
		return fmt.Errorf("no filename specified")
	}

	r, err := reader.Open(e.filename, e.options.readerOptions()...)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	e.reader = r
	e.doc = r.Document()
	e.ownsReader = true
	e.readerOpened = true
	return nil
}

// Close releases resources associated with the Editor.
// It is safe to call Close multiple times.
func (e *Editor) Close() error {
	if e.ownsReader && e.reader != nil {
		err := e.reader.Close()
		e.reader = nil
		e.ownsReader = false
		return err
	}
	return nil
}

// ============================================================================
// Configuration Methods (return new Editor instance)
// ============================================================================

// XRefStream writes a cross-reference stream instead of a classic table.
//
// Example:
//
//	err := pdfcos.FromDocument(doc).XRefStream().Save("out.pdf")
func (e *Editor) XRefStream() *Editor {
	newEd := e.clone()
	v := true
	newEd.options.xrefStream = &v
	return newEd
}

// ClassicXRef writes a classic cross-reference table even when the source
// used a stream.
func (e *Editor) ClassicXRef() *Editor {
	newEd := e.clone()
	v := false
	newEd.options.xrefStream = &v
	return newEd
}

// Incremental appends the changes to a copy of the source file instead of
// rewriting it. Only editors created by Open or FromReader have a source.
//
// Example:
//
//	err := pdfcos.Open("in.pdf").SetInfo("Title", "New").Incremental().Save("out.pdf")
func (e *Editor) Incremental() *Editor {
	newEd := e.clone()
	newEd.options.incremental = true
	return newEd
}

// DeterministicID derives the file identifier from the content, so saving
// the same document twice gives identical bytes.
func (e *Editor) DeterministicID() *Editor {
	newEd := e.clone()
	newEd.options.deterministicID = true
	return newEd
}

// Logger sets the logger used while reading and writing.
func (e *Editor) Logger(l observability.Logger) *Editor {
	newEd := e.clone()
	newEd.options.logger = l
	return newEd
}

// Tracer sets the tracer used while reading and writing.
func (e *Editor) Tracer(t observability.Tracer) *Editor {
	newEd := e.clone()
	newEd.options.tracer = t
	return newEd
}

// Update queues fn to run against the document before it is saved.
//
// Example:
//
//	err := pdfcos.Open("in.pdf").Update(func(doc *core.Document) error {
//	    catalog, err := doc.Catalog()
//	    if err != nil {
//	        return err
//	    }
//	    catalog.Set("PageMode", core.Name("UseOutlines"))
//	    return nil
//	}).Incremental().Save("out.pdf")
func (e *Editor) Update(fn EditFunc) *Editor {
	newEd := e.clone()
	newEd.edits = append(newEd.edits, fn)
	return newEd
}

// SetInfo sets an entry of the document information dictionary to a text
// string, creating the dictionary when the document has none.
func (e *Editor) SetInfo(key, value string) *Editor {
	return e.Update(func(doc *core.Document) error {
		info, err := infoDict(doc)
		if err != nil {
			return err
		}
		info.Set(key, core.NewTextString(value))
		return nil
	})
}

// ============================================================================
// Terminal and Inspection Methods
// ============================================================================

// Document returns the document with all queued edits applied.
// Note: This does NOT close the reader, since the document loads objects
// from it lazily.
func (e *Editor) Document() (*core.Document, error) {
	if e.err != nil {
		return nil, e.err
	}
	if err := e.ensureReader(); err != nil {
		return nil, err
	}
	if err := e.applyEdits(); err != nil {
		return nil, err
	}
	return e.doc, nil
}

// Write writes the edited document to w. This is a terminal operation
// that closes the underlying reader.
func (e *Editor) Write(w io.Writer) error {
	doc, err := e.Document()
	defer e.Close()
	if err != nil {
		return err
	}
	return writer.Write(w, doc, e.options.writerOptions()...)
}

// Save writes the edited document to path, replacing it only once the
// whole file was written. This is a terminal operation that closes the
// underlying reader.
//
// Example:
//
//	err := pdfcos.Open("document.pdf").SetInfo("Title", "Draft").Save("document.pdf")
func (e *Editor) Save(path string) error {
	doc, err := e.Document()
	defer e.Close()
	if err != nil {
		return err
	}
	return writer.WriteFile(path, doc, e.options.writerOptions()...)
}

// applyEdits runs the edits not yet applied to the document.
func (e *Editor) applyEdits() error {
	for ; e.applied < len(e.edits); e.applied++ {
		if err := e.edits[e.applied](e.doc); err != nil {
			e.err = fmt.Errorf("edit %d: %w", e.applied+1, err)
			return e.err
		}
	}
	return nil
}

// infoDict returns the document information dictionary, adding an empty
// one to the trailer when absent.
func infoDict(doc *core.Document) (*core.Dict, error) {
	v := doc.Trailer().Get("Info")
	if v == nil {
		info := core.NewDict()
		doc.Trailer().Set("Info", info)
		return info, nil
	}
	obj, err := core.Deref(v)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Info: %w", err)
	}
	info, ok := obj.(*core.Dict)
	if !ok {
		return nil, fmt.Errorf("/Info is %T, expected dictionary", obj)
	}
	return info, nil
}
