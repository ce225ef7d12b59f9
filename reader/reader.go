package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/tsawler/pdfcos/core"
	"github.com/tsawler/pdfcos/observability"
)

// maxLoadDepth bounds nested loads triggered while parsing one object,
// e.g. an indirect stream /Length that itself lives in an object stream.
const maxLoadDepth = 100

var (
	// ErrInvalidHeader is returned when the file does not start with %PDF-x.y
	ErrInvalidHeader = errors.New("pdf: invalid file header")

	// ErrLoadDepth is returned when loading recurses too deeply.
	ErrLoadDepth = errors.New("pdf: object load recursion too deep")
)

var headerVersion = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// Reader represents a parsed PDF file. It owns every object it loads and
// hands out one shared reference node per object number.
type Reader struct {
	r         io.ReaderAt
	closer    io.Closer
	size      int64
	version   float64
	xref      *core.XRefTable
	startXRef int64
	logger    observability.Logger
	tracer    observability.Tracer
	doc       *core.Document

	mu      sync.Mutex
	refs    map[core.ObjectID]*core.IndirectRef
	objects map[core.ObjectID]core.Object
	owners  map[core.Object]core.ObjectID
	objStms map[int]*core.ObjectStream

	// stmMu serializes extraction from object streams, which cache
	// parsed objects without locking.
	stmMu sync.Mutex
}

var (
	_ core.ObjectSource = (*Reader)(nil)
	_ core.RefTable     = (*Reader)(nil)
	_ core.Origin       = (*Reader)(nil)
)

// Open memory-maps a PDF file and returns a Reader over it. Close unmaps
// and closes the file; objects loaded before Close stay valid, but the
// Reader can no longer load objects or serve as an origin afterwards.
func Open(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if info.Size() == 0 {
		file.Close()
		return nil, fmt.Errorf("%s: %w", filename, ErrInvalidHeader)
	}

	m, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to map file: %w", err)
	}

	reader, err := NewReader(bytes.NewReader(m), int64(len(m)), opts...)
	if err != nil {
		m.Unmap()
		file.Close()
		return nil, err
	}
	reader.closer = &mappedFile{file: file, m: m}

	return reader, nil
}

// mappedFile releases a mapping and its file.
type mappedFile struct {
	file *os.File
	m    mmap.MMap
}

func (f *mappedFile) Close() error {
	err := f.m.Unmap()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// NewReader parses the header and cross-reference sections of the size
// bytes readable from r. Objects are loaded on demand.
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	reader := &Reader{
		r:       r,
		size:    size,
		logger:  observability.NopLogger{},
		tracer:  observability.NopTracer(),
		refs:    make(map[core.ObjectID]*core.IndirectRef),
		objects: make(map[core.ObjectID]core.Object),
		owners:  make(map[core.Object]core.ObjectID),
		objStms: make(map[int]*core.ObjectStream),
	}
	for _, opt := range opts {
		opt(reader)
	}

	_, span := reader.tracer.StartSpan(context.Background(), observability.SpanOpen)
	defer span.Finish()

	version, err := reader.parseHeader()
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	reader.version = version

	if err := reader.loadXRef(); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load xref: %w", err)
	}

	doc := core.NewDocumentWithTrailer(reader.xref.DocumentTrailer(), version)
	doc.SetXRefStream(reader.xref.IsStream)
	doc.SetOrigin(reader)
	reader.doc = doc

	span.SetTag("objects", len(reader.xref.Entries))
	reader.logger.Debug("opened document",
		observability.String("version", strconv.FormatFloat(version, 'f', 1, 64)),
		observability.Int("entries", len(reader.xref.Entries)),
		observability.Int64("startxref", reader.startXRef))

	return reader, nil
}

// Close closes the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// parseHeader parses the PDF header (%PDF-x.y). Some producers put junk
// before it, so the first kilobyte is searched.
func (r *Reader) parseHeader() (float64, error) {
	n := int64(1024)
	if r.size < n {
		n = r.size
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	if i := bytes.Index(buf, []byte("%PDF-")); i < 0 {
		return 0, ErrInvalidHeader
	}

	m := headerVersion.FindSubmatch(buf)
	if m == nil {
		return 0, fmt.Errorf("%w: no version after %%PDF-", ErrInvalidHeader)
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	return v, nil
}

// loadXRef walks every cross-reference section from startxref through the
// /Prev chain and merges them, newest entries winning.
func (r *Reader) loadXRef() error {
	xrefParser := core.NewXRefParser(io.NewSectionReader(r.r, 0, r.size))
	xrefParser.SetRefTable(r)

	start, err := xrefParser.FindXRef()
	if err != nil {
		return err
	}
	r.startXRef = start

	tables, err := xrefParser.ParseAllXRefs()
	if err != nil {
		return err
	}
	if len(tables) > 1 {
		r.logger.Debug("merged incremental sections", observability.Int("sections", len(tables)))
	}
	r.xref = core.MergeXRefTables(tables...)
	return nil
}

// Version returns the header version, e.g. 1.7
func (r *Reader) Version() float64 {
	return r.version
}

// Document returns the document rooted at the file's trailer. Its trailer
// values are references bound to this Reader and its origin is the
// Reader, so it can be written back incrementally. The same Document is
// returned on every call.
func (r *Reader) Document() *core.Document {
	return r.doc
}

// XRefTable returns the merged cross-reference table.
// Exposed for debugging/inspection
func (r *Reader) XRefTable() *core.XRefTable {
	return r.xref
}

// ReadAt implements io.ReaderAt over the source bytes.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

// Size returns the size of the PDF file in bytes
func (r *Reader) Size() int64 {
	return r.size
}

// StartXRef returns the offset of the newest cross-reference section.
func (r *Reader) StartXRef() int64 {
	return r.startXRef
}

// NextObjectNumber returns the first number not used by the file: the
// trailer's /Size or one past the highest table entry, whichever is larger.
func (r *Reader) NextObjectNumber() int {
	next := r.xref.MaxObjectNumber() + 1
	if size, ok := r.xref.Trailer.GetInt("Size"); ok && int(size) > next {
		next = int(size)
	}
	return next
}

// Ref returns the single reference node for id.
func (r *Reader) Ref(id core.ObjectID) *core.IndirectRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refs[id]
	if !ok {
		ref = core.NewIndirectRef(id, r)
		r.refs[id] = ref
	}
	return ref
}

// Owner returns the reference whose current target is obj. Objects that
// were never loaded by this Reader, or whose reference has since been
// replaced, have no owner.
func (r *Reader) Owner(obj core.Object) (*core.IndirectRef, bool) {
	if !isComposite(obj) {
		return nil, false
	}
	r.mu.Lock()
	id, ok := r.owners[obj]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	ref := r.Ref(id)
	target, err := ref.Resolve()
	if err != nil || target != obj {
		return nil, false
	}
	return ref, true
}

// Load implements core.ObjectSource. Free and missing objects, and
// references whose generation does not match the table, return
// core.ErrObjectNotFound.
func (r *Reader) Load(id core.ObjectID) (core.Object, error) {
	return r.load(id, 0)
}

// ResolveReference implements core.ReferenceResolver for callers that want
// an object without going through its reference node.
func (r *Reader) ResolveReference(id core.ObjectID) (core.Object, error) {
	return r.load(id, 0)
}

// CacheSize returns the number of loaded objects
func (r *Reader) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

func (r *Reader) load(id core.ObjectID, depth int) (core.Object, error) {
	if depth > maxLoadDepth {
		return nil, fmt.Errorf("object %s: %w", id, ErrLoadDepth)
	}
	if r.xref == nil {
		return nil, fmt.Errorf("object %s: cross-reference table not loaded", id)
	}

	r.mu.Lock()
	obj, ok := r.objects[id]
	r.mu.Unlock()
	if ok {
		return obj, nil
	}

	entry, ok := r.xref.Get(id.Number)
	if !ok || entry == nil || !entry.InUse {
		return nil, fmt.Errorf("object %s: %w", id, core.ErrObjectNotFound)
	}

	var err error
	switch entry.Type {
	case core.XRefEntryCompressed:
		if id.Generation != 0 {
			return nil, fmt.Errorf("object %s: %w", id, core.ErrObjectNotFound)
		}
		obj, err = r.loadCompressed(id, entry, depth)
	default:
		if id.Generation != entry.Generation {
			return nil, fmt.Errorf("object %s: %w", id, core.ErrObjectNotFound)
		}
		obj, err = r.loadAt(id, entry.Offset, depth)
	}
	if err != nil {
		r.logger.Warn("failed to load object", observability.String("id", id.String()), observability.Error("error", err))
		return nil, err
	}

	return r.store(id, obj), nil
}

// store caches obj unless another goroutine got there first, in which case
// the earlier object wins so every caller sees one node.
func (r *Reader) store(id core.ObjectID, obj core.Object) core.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.objects[id]; ok {
		return existing
	}
	r.objects[id] = obj
	if isComposite(obj) {
		r.owners[obj] = id
	}
	return obj
}

// loadAt parses the indirect object defined at offset.
func (r *Reader) loadAt(id core.ObjectID, offset int64, depth int) (core.Object, error) {
	if offset < 0 || offset >= r.size {
		return nil, fmt.Errorf("object %s: offset %d outside file", id, offset)
	}

	parser := core.NewParser(io.NewSectionReader(r.r, offset, r.size-offset))
	parser.SetRefTable(r)
	parser.SetReferenceResolver(&nestedResolver{r: r, depth: depth + 1})

	indObj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse object %s: %w", id, err)
	}
	if indObj.ID.Number != id.Number {
		return nil, fmt.Errorf("object number mismatch: expected %d, got %d", id.Number, indObj.ID.Number)
	}

	return indObj.Object, nil
}

// loadCompressed extracts an object stored in an object stream.
func (r *Reader) loadCompressed(id core.ObjectID, entry *core.XRefEntry, depth int) (core.Object, error) {
	stmNum := int(entry.Offset)
	if stmNum == id.Number {
		return nil, fmt.Errorf("object %s: object stream contains itself", id)
	}
	objStm, err := r.objectStream(stmNum, depth)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}

	r.stmMu.Lock()
	defer r.stmMu.Unlock()

	obj, num, err := objStm.GetObjectByIndex(entry.Generation)
	if err == nil && num == id.Number {
		return obj, nil
	}
	// The index is only a hint; fall back to the header.
	obj, _, err = objStm.GetObjectByNumber(id.Number)
	if err != nil {
		return nil, fmt.Errorf("object %s in object stream %d: %w", id, stmNum, err)
	}
	return obj, nil
}

// objectStream loads and decodes object stream number num.
func (r *Reader) objectStream(num int, depth int) (*core.ObjectStream, error) {
	r.mu.Lock()
	objStm, ok := r.objStms[num]
	r.mu.Unlock()
	if ok {
		return objStm, nil
	}

	obj, err := r.load(core.ObjectID{Number: num}, depth+1)
	if err != nil {
		return nil, fmt.Errorf("failed to load object stream %d: %w", num, err)
	}
	stream, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is %T", num, obj)
	}

	objStm, err = core.NewObjectStream(stream)
	if err != nil {
		return nil, err
	}
	objStm.BindReferences(r)
	// Decode now so later extraction never loads other objects.
	if _, err := objStm.ObjectNumbers(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.objStms[num]; ok {
		return existing, nil
	}
	r.objStms[num] = objStm
	return objStm, nil
}

// nestedResolver loads objects needed while another object is being
// parsed, bypassing reference nodes whose lock may already be held.
type nestedResolver struct {
	r     *Reader
	depth int
}

func (n *nestedResolver) ResolveReference(id core.ObjectID) (core.Object, error) {
	return n.r.load(id, n.depth)
}

func isComposite(obj core.Object) bool {
	switch obj.(type) {
	case *core.Dict, *core.Array, *core.Stream:
		return true
	}
	return false
}
