// Package writer serializes core object graphs into PDF files.
//
// # Numbering
//
// A write walks the graph from the trailer and decides, for every
// array, dictionary and stream, whether it is written inline or as an
// indirect object. Streams, dictionaries held by the trailer, nodes with
// more than one parent, nodes on a cycle and nodes marked with SetIndirect
// become indirect; everything else is written inline. Each indirect node
// is numbered once through a [Context] and its body is written once, so
// shared sub-objects are not duplicated and cyclic graphs terminate.
//
// How numbers are chosen is left to an [IndirectionPolicy]. [FullPolicy]
// numbers everything afresh from 1. [IncrementalPolicy] keeps the numbers
// of objects that came from a parsed file: unchanged ones are only
// referenced, changed ones are rewritten under their old number, and new
// ones are numbered above every number the base file uses.
//
// # Writing Files
//
//	doc := core.NewDocument()
//	catalog, _ := doc.Catalog()
//	catalog.Set("Pages", pages)
//	if err := writer.WriteFile("out.pdf", doc); err != nil {
//	    log.Fatal(err)
//	}
//
// [Write] produces a complete file with a classic cross-reference table
// or a cross-reference stream. [WriteIncremental] copies the file a
// document was read from and appends only what changed:
//
//	r, _ := reader.Open("in.pdf")
//	doc := r.Document()
//	info, _ := doc.Trailer().GetIndirectRef("Info")
//	...
//	err := writer.WriteIncremental(out, doc)
//
// Objects are written as they are numbered, so memory use is bounded by
// the largest object rather than the document. An I/O failure aborts the
// write with a [*WriteError] and leaves partial output behind; use
// [WriteFile] to write through a temporary file that is renamed into
// place on success.
//
// A Context and BodyWriter serve one write. Writing the same document
// from several goroutines is fine as long as nobody mutates the graph
// meanwhile.
package writer
