package core

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// XRefEntryType distinguishes the three kinds of cross-reference entries.
type XRefEntryType int

const (
	XRefEntryFree         XRefEntryType = iota // type 0: free object
	XRefEntryUncompressed                      // type 1: object at a byte offset
	XRefEntryCompressed                        // type 2: object inside an object stream
)

func (t XRefEntryType) String() string {
	switch t {
	case XRefEntryFree:
		return "free"
	case XRefEntryUncompressed:
		return "uncompressed"
	case XRefEntryCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("XRefEntryType(%d)", int(t))
	}
}

// XRefEntry represents a single cross-reference table entry.
//
// For compressed entries Offset holds the number of the object stream and
// Generation the index of the object within it.
type XRefEntry struct {
	Type       XRefEntryType
	Offset     int64 // Byte offset in file, next free object number, or object stream number
	Generation int   // Generation number, or index within the object stream
	InUse      bool  // true unless the entry is free
}

// XRefTable represents one cross-reference section: a classic table or an
// xref stream, and the trailer that came with it.
type XRefTable struct {
	Entries  map[int]*XRefEntry // Map from object number to XRef entry
	Trailer  *Dict              // Trailer dictionary (the stream dictionary for xref streams)
	IsStream bool               // true when the section was an xref stream
}

// NewXRefTable creates a new empty XRef table
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]*XRefEntry),
		Trailer: NewDict(),
	}
}

// Get retrieves an XRef entry by object number
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	entry, ok := x.Entries[objNum]
	return entry, ok
}

// Set adds or updates an XRef entry
func (x *XRefTable) Set(objNum int, entry *XRefEntry) {
	x.Entries[objNum] = entry
}

// Size returns the number of entries in the table
func (x *XRefTable) Size() int {
	return len(x.Entries)
}

// MaxObjectNumber returns the highest object number with an entry, or -1.
func (x *XRefTable) MaxObjectNumber() int {
	max := -1
	for n := range x.Entries {
		if n > max {
			max = n
		}
	}
	return max
}

// XRefParser parses PDF cross-reference sections
type XRefParser struct {
	reader   io.ReadSeeker
	resolver ReferenceResolver
	refs     RefTable
}

// NewXRefParser creates a new XRef parser
func NewXRefParser(r io.ReadSeeker) *XRefParser {
	return &XRefParser{
		reader: r,
	}
}

// SetReferenceResolver is used to resolve an indirect /Length on an xref
// stream.
func (x *XRefParser) SetReferenceResolver(r ReferenceResolver) {
	x.resolver = r
}

// SetRefTable binds references in trailers to the nodes handed out by t.
func (x *XRefParser) SetRefTable(t RefTable) {
	x.refs = t
}

// FindXRef finds the byte offset of the newest XRef section by scanning from
// EOF. PDFs end with "startxref\n<offset>\n%%EOF".
func (x *XRefParser) FindXRef() (int64, error) {
	fileSize, err := x.reader.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to seek to end: %w", err)
	}

	// Read last 1024 bytes (should be enough for startxref section)
	readSize := int64(1024)
	if fileSize < readSize {
		readSize = fileSize
	}

	if _, err := x.reader.Seek(fileSize-readSize, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to startxref area: %w", err)
	}

	buf := make([]byte, readSize)
	n, err := io.ReadFull(x.reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("failed to read startxref area: %w", err)
	}
	buf = buf[:n]

	content := string(buf)
	idx := strings.LastIndex(content, "startxref")
	if idx == -1 {
		return 0, fmt.Errorf("startxref not found in PDF")
	}

	// Any EOL style may separate the keyword from the offset
	fields := strings.Fields(content[idx+len("startxref"):])
	if len(fields) == 0 {
		return 0, fmt.Errorf("invalid startxref format")
	}

	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid xref offset: %w", err)
	}
	if offset < 0 || offset >= fileSize {
		return 0, fmt.Errorf("xref offset %d outside file of %d bytes", offset, fileSize)
	}

	return offset, nil
}

// ParseXRef parses the XRef section at the given byte offset, which may be
// either a classic table or an xref stream.
func (x *XRefParser) ParseXRef(offset int64) (*XRefTable, error) {
	if _, err := x.reader.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to xref: %w", err)
	}

	isStream, err := x.isXRefStream()
	if err != nil {
		return nil, err
	}
	if isStream {
		return x.parseXRefStream()
	}
	return x.parseXRefTable()
}

// isXRefStream looks at the section at the current position without
// consuming it. Classic tables start with "xref"; xref streams start with an
// object header "n g obj".
func (x *XRefParser) isXRefStream() (bool, error) {
	start, err := x.reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, fmt.Errorf("failed to get position: %w", err)
	}
	defer x.reader.Seek(start, io.SeekStart)

	lexer := NewLexer(x.reader)
	tok, err := lexer.NextToken()
	if err != nil {
		return false, fmt.Errorf("failed to read xref section: %w", err)
	}
	switch {
	case tok.Type == TokenKeyword && string(tok.Value) == "xref":
		return false, nil
	case tok.Type == TokenInteger:
		return true, nil
	default:
		return false, fmt.Errorf("expected 'xref' or an xref stream, got %q", tok.Value)
	}
}

// parseXRefTable parses a classic table at the current position.
func (x *XRefParser) parseXRefTable() (*XRefTable, error) {
	lexer := NewLexer(x.reader)

	tok, err := lexer.NextToken()
	if err != nil {
		return nil, fmt.Errorf("failed to read xref keyword: %w", err)
	}
	if tok.Type != TokenKeyword || string(tok.Value) != "xref" {
		return nil, fmt.Errorf("expected 'xref' keyword, got '%s'", tok.Value)
	}

	table := NewXRefTable()
	for {
		tok, err := lexer.NextToken()
		if err != nil {
			return nil, fmt.Errorf("failed to read xref subsection: %w", err)
		}

		if tok.Type == TokenKeyword && string(tok.Value) == "trailer" {
			parser := newParserFromLexer(lexer)
			if x.refs != nil {
				parser.SetRefTable(x.refs)
			}
			obj, err := parser.ParseObject()
			if err != nil {
				return nil, fmt.Errorf("failed to parse trailer dictionary: %w", err)
			}
			trailer, ok := obj.(*Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is not a dictionary, got %T", obj)
			}
			table.Trailer = trailer
			return table, nil
		}

		if tok.Type == TokenEOF {
			return nil, fmt.Errorf("xref table missing trailer")
		}

		// Subsection header: first object number and count
		first, err := tokenInt(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid first object number: %w", err)
		}
		countTok, err := lexer.NextToken()
		if err != nil {
			return nil, fmt.Errorf("failed to read subsection count: %w", err)
		}
		count, err := tokenInt(countTok)
		if err != nil {
			return nil, fmt.Errorf("invalid count: %w", err)
		}

		for i := 0; i < int(count); i++ {
			entry, err := parseEntry(lexer)
			if err != nil {
				return nil, fmt.Errorf("failed to parse xref entry %d: %w", int(first)+i, err)
			}
			table.Set(int(first)+i, entry)
		}
	}
}

// parseEntry parses one table entry: "nnnnnnnnnn ggggg n" or "... f".
func parseEntry(lexer *Lexer) (*XRefEntry, error) {
	offTok, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	offset, err := tokenInt(offTok)
	if err != nil {
		return nil, fmt.Errorf("invalid offset: %w", err)
	}

	genTok, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	generation, err := tokenInt(genTok)
	if err != nil {
		return nil, fmt.Errorf("invalid generation: %w", err)
	}

	flagTok, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if flagTok.Type != TokenKeyword {
		return nil, fmt.Errorf("invalid in-use flag: %q", flagTok.Value)
	}

	switch string(flagTok.Value) {
	case "n":
		return &XRefEntry{Type: XRefEntryUncompressed, Offset: offset, Generation: int(generation), InUse: true}, nil
	case "f":
		return &XRefEntry{Type: XRefEntryFree, Offset: offset, Generation: int(generation)}, nil
	default:
		return nil, fmt.Errorf("invalid in-use flag: %q", flagTok.Value)
	}
}

func tokenInt(tok *Token) (int64, error) {
	if tok.Type != TokenInteger {
		return 0, fmt.Errorf("expected integer, got %q", tok.Value)
	}
	return strconv.ParseInt(string(tok.Value), 10, 64)
}

// parseXRefStream parses an xref stream object at the current position.
func (x *XRefParser) parseXRefStream() (*XRefTable, error) {
	parser := NewParser(x.reader)
	if x.resolver != nil {
		parser.SetReferenceResolver(x.resolver)
	}
	if x.refs != nil {
		parser.SetRefTable(x.refs)
	}

	indirect, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref stream object: %w", err)
	}
	stream, ok := indirect.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("xref stream object is %T, expected stream", indirect.Object)
	}

	dict := stream.Dict
	if typ, _ := dict.GetName("Type"); typ != "XRef" {
		return nil, fmt.Errorf("stream is not an xref stream, got type: %v", dict.Get("Type"))
	}

	size, ok := dict.GetInt("Size")
	if !ok || size < 0 {
		return nil, fmt.Errorf("xref stream missing /Size")
	}

	wArr, ok := dict.GetArray("W")
	if !ok {
		return nil, fmt.Errorf("xref stream missing /W")
	}
	if wArr.Len() != 3 {
		return nil, fmt.Errorf("xref stream /W has %d elements, want 3", wArr.Len())
	}
	w := make([]int, 3)
	for i := range w {
		v, ok := wArr.GetInt(i)
		if !ok || v < 0 || v > 8 {
			return nil, fmt.Errorf("invalid /W element %d: %v", i, wArr.Get(i))
		}
		w[i] = int(v)
	}

	// /Index defaults to a single subsection [0 Size]
	index := []int{0, int(size)}
	if idxArr, ok := dict.GetArray("Index"); ok {
		if idxArr.Len()%2 != 0 {
			return nil, fmt.Errorf("xref stream /Index has odd length %d", idxArr.Len())
		}
		index = index[:0]
		for i := 0; i < idxArr.Len(); i++ {
			v, ok := idxArr.GetInt(i)
			if !ok || v < 0 {
				return nil, fmt.Errorf("invalid /Index element %d: %v", i, idxArr.Get(i))
			}
			index = append(index, int(v))
		}
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}

	table := NewXRefTable()
	table.IsStream = true
	table.Trailer = dict

	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			entry, n, err := x.parseXRefStreamEntry(data[pos:], w)
			if err != nil {
				return nil, fmt.Errorf("xref stream entry %d: %w", first+j, err)
			}
			pos += n
			if entry != nil {
				table.Set(first+j, entry)
			}
		}
	}

	return table, nil
}

// parseXRefStreamEntry decodes one binary row of an xref stream. It returns
// the entry, the number of bytes consumed, and an error when data is too
// short. Entries of unknown type yield a nil entry, so the object reads as
// null.
func (x *XRefParser) parseXRefStreamEntry(data []byte, w []int) (*XRefEntry, int, error) {
	rowLen := w[0] + w[1] + w[2]
	if len(data) < rowLen {
		return nil, 0, fmt.Errorf("need %d bytes, have %d", rowLen, len(data))
	}

	// A zero-width type field means type 1
	typ := int64(1)
	if w[0] > 0 {
		typ = readBigEndianInt(data, w[0])
	}
	field2 := readBigEndianInt(data[w[0]:], w[1])
	field3 := readBigEndianInt(data[w[0]+w[1]:], w[2])

	switch typ {
	case 0:
		return &XRefEntry{Type: XRefEntryFree, Offset: field2, Generation: int(field3)}, rowLen, nil
	case 1:
		return &XRefEntry{Type: XRefEntryUncompressed, Offset: field2, Generation: int(field3), InUse: true}, rowLen, nil
	case 2:
		return &XRefEntry{Type: XRefEntryCompressed, Offset: field2, Generation: int(field3), InUse: true}, rowLen, nil
	default:
		return nil, rowLen, nil
	}
}

// readBigEndianInt reads a big-endian unsigned integer of the given width.
func readBigEndianInt(data []byte, width int) int64 {
	var v int64
	for i := 0; i < width && i < len(data); i++ {
		v = v<<8 | int64(data[i])
	}
	return v
}

// ParseXRefFromEOF finds and parses the newest XRef section.
func (x *XRefParser) ParseXRefFromEOF() (*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, fmt.Errorf("failed to find xref: %w", err)
	}

	table, err := x.ParseXRef(offset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref: %w", err)
	}

	return table, nil
}

// ParsePrevXRef parses the section named by the trailer's /Prev entry, or
// returns nil when there is none. This handles incremental updates.
func (x *XRefParser) ParsePrevXRef(table *XRefTable) (*XRefTable, error) {
	prevOffset, ok, err := trailerOffset(table.Trailer, "Prev")
	if err != nil || !ok {
		return nil, err
	}

	prevTable, err := x.ParseXRef(prevOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse previous xref: %w", err)
	}

	return prevTable, nil
}

// mergeHybrid folds the xref stream named by /XRefStm into a classic table.
// The table's in-use entries take precedence.
func (x *XRefParser) mergeHybrid(table *XRefTable) error {
	offset, ok, err := trailerOffset(table.Trailer, "XRefStm")
	if err != nil || !ok {
		return err
	}
	stm, err := x.ParseXRef(offset)
	if err != nil {
		return fmt.Errorf("failed to parse /XRefStm section: %w", err)
	}
	for num, entry := range stm.Entries {
		if existing, ok := table.Entries[num]; ok && existing.InUse {
			continue
		}
		table.Entries[num] = entry
	}
	return nil
}

func trailerOffset(trailer *Dict, key string) (int64, bool, error) {
	if trailer == nil {
		return 0, false, nil
	}
	obj := trailer.Get(key)
	if obj == nil {
		return 0, false, nil
	}
	v, ok := obj.(Int)
	if !ok {
		return 0, false, fmt.Errorf("invalid /%s entry type: %T", key, obj)
	}
	if v < 0 {
		return 0, false, fmt.Errorf("invalid /%s offset: %d", key, v)
	}
	return int64(v), true, nil
}

// MergeXRefTables merges multiple XRef tables (from incremental updates).
// Tables are given oldest first; later entries override earlier ones and the
// newest trailer is kept.
func MergeXRefTables(tables ...*XRefTable) *XRefTable {
	merged := NewXRefTable()

	for _, table := range tables {
		for objNum, entry := range table.Entries {
			merged.Set(objNum, entry)
		}
		merged.Trailer = table.Trailer
		merged.IsStream = table.IsStream
	}

	return merged
}

// ParseAllXRefs parses the newest XRef section and every section reachable
// through /Prev, returning them oldest first. Hybrid sections have their
// /XRefStm entries folded in. A /Prev chain that loops is an error.
func (x *XRefParser) ParseAllXRefs() ([]*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, fmt.Errorf("failed to find xref: %w", err)
	}

	var tables []*XRefTable
	seen := make(map[int64]bool)
	for {
		if seen[offset] {
			return nil, fmt.Errorf("xref /Prev chain loops at offset %d", offset)
		}
		seen[offset] = true

		table, err := x.ParseXRef(offset)
		if err != nil {
			return nil, fmt.Errorf("failed to parse xref at offset %d: %w", offset, err)
		}
		if !table.IsStream {
			if err := x.mergeHybrid(table); err != nil {
				return nil, err
			}
		}

		// Prepend (we want oldest first)
		tables = append([]*XRefTable{table}, tables...)

		prev, ok, err := trailerOffset(table.Trailer, "Prev")
		if err != nil {
			return nil, fmt.Errorf("failed to parse prev xref: %w", err)
		}
		if !ok {
			break
		}
		offset = prev
	}

	return tables, nil
}

// xrefStreamKeys are the entries of an xref stream dictionary that describe
// the stream itself rather than the document.
var xrefStreamKeys = []string{"Type", "W", "Index", "Length", "Filter", "DecodeParms", "Prev", "XRefStm"}

// DocumentTrailer returns a copy of the trailer with cross-reference
// bookkeeping (/Prev, /XRefStm and the xref stream's own entries) removed.
func (x *XRefTable) DocumentTrailer() *Dict {
	out := NewDict()
	skip := make(map[string]bool, len(xrefStreamKeys))
	for _, k := range xrefStreamKeys {
		skip[k] = true
	}
	for _, k := range x.Trailer.keys {
		if skip[k] {
			continue
		}
		out.Set(k, x.Trailer.values[k])
	}
	out.dirty = false
	return out
}
