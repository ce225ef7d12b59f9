// Package pdfcos provides a fluent API for editing and writing PDF object
// graphs.
//
// Basic usage:
//
//	err := pdfcos.Open("in.pdf").
//	    SetInfo("Title", "Quarterly Report").
//	    Incremental().
//	    Save("out.pdf")
//
// Building a document from scratch:
//
//	doc := core.NewDocument()
//	catalog, _ := doc.Catalog()
//	catalog.Set("Pages", pages)
//	err := pdfcos.FromDocument(doc).XRefStream().Save("new.pdf")
//
// For advanced use cases, the lower-level core, reader and writer packages
// are also available.
package pdfcos

import (
	"github.com/tsawler/pdfcos/core"
	"github.com/tsawler/pdfcos/reader"
)

// Open opens a PDF file and returns an Editor for fluent configuration.
// The file is read lazily; the returned Editor must be closed when done,
// either explicitly via Close() or implicitly by a terminal operation like
// Save().
//
// Example:
//
//	err := pdfcos.Open("document.pdf").SetInfo("Author", "Me").Save("copy.pdf")
func Open(filename string) *Editor {
	return &Editor{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromReader creates an Editor from an already-opened reader.Reader.
// Note: The caller is responsible for closing the reader.
//
// Example:
//
//	r, err := reader.Open("document.pdf")
//	if err != nil {
//	    // handle error
//	}
//	defer r.Close()
//	err = pdfcos.FromReader(r).Incremental().Save("updated.pdf")
func FromReader(r *reader.Reader) *Editor {
	return &Editor{
		reader:       r,
		doc:          r.Document(),
		ownsReader:   false,
		readerOpened: true,
		options:      defaultOptions(),
	}
}

// FromDocument creates an Editor for a document built in memory or
// obtained elsewhere.
func FromDocument(doc *core.Document) *Editor {
	return &Editor{
		doc:          doc,
		readerOpened: true,
		options:      defaultOptions(),
	}
}
