// Package reader parses PDF files into core object graphs.
//
// # Opening PDF Files
//
// Use [Open] to open a PDF file for reading:
//
//	r, err := reader.Open("document.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
// Or use [NewReader] with any io.ReaderAt and its size.
//
// # Cross-Reference Sections
//
// The Reader follows startxref and every /Prev link, folds in the /XRefStm
// section of hybrid files, and merges classic tables and cross-reference
// streams so that the newest entry for each object number wins.
//
// # Object Loading
//
// Objects are loaded lazily. [Reader.Document] returns a [core.Document]
// whose trailer values are [core.IndirectRef] nodes bound to the Reader;
// resolving one parses the object at its offset or extracts it from its
// object stream. The Reader hands out exactly one reference node per
// object number and caches every loaded object, so the same number always
// yields the same node.
//
// The Reader also serves as the document's [core.Origin]: it exposes the
// source bytes, the newest startxref offset and the next free object
// number, and maps loaded objects back to their references with
// [Reader.Owner]. The writer uses this to append incremental updates.
//
// Loading is safe for concurrent use.
package reader
