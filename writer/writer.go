package writer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tsawler/pdfcos/core"
	"github.com/tsawler/pdfcos/observability"
)

// binaryMarker follows the header so transfer tools treat the file as binary.
const binaryMarker = "%\xE2\xE3\xCF\xD3\n"

// bookkeepingKeys are trailer entries computed for every section rather
// than copied from the document.
var bookkeepingKeys = map[string]bool{
	"Size": true, "Prev": true, "XRefStm": true, "ID": true,
	"Type": true, "W": true, "Index": true, "Length": true, "Filter": true, "DecodeParms": true,
}

// Write serializes doc to w as a complete file, or as an incremental
// update when WithIncremental is given.
func Write(w io.Writer, doc *core.Document, opts ...Option) error {
	o := newOptions(opts)
	if o.incremental {
		return writeIncremental(w, doc, o)
	}
	return writeFull(w, doc, o)
}

// WriteIncremental appends an update to the bytes of doc's origin: the
// base file is copied unchanged, followed by new and modified objects, a
// cross-reference section covering just those objects, and a trailer
// linking back to the base file's section.
func WriteIncremental(w io.Writer, doc *core.Document, opts ...Option) error {
	return writeIncremental(w, doc, newOptions(opts))
}

// WriteFile writes doc to path through a temporary file in the same
// directory that is renamed into place only after the whole write
// succeeded.
func WriteFile(path string, doc *core.Document, opts ...Option) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = Write(bw, doc, opts...); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return &WriteError{Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &WriteError{Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &WriteError{Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// job holds the state of one write call.
type job struct {
	o     *options
	doc   *core.Document
	cw    *countingWriter
	ctx   *Context
	body  *BodyWriter
	keys  []string
	prev  int64
	floor int
}

func writeFull(w io.Writer, doc *core.Document, o *options) (err error) {
	_, span := o.tracer.StartSpan(context.Background(), observability.SpanWrite)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	if _, err := doc.Catalog(); err != nil {
		return err
	}
	version := doc.Version()
	if version < 1.0 || version > 2.0 {
		return fmt.Errorf("%w: %v", ErrInvalidVersion, version)
	}

	j := newJob(w, doc, o, NewContext(1), FullPolicy{})
	j.prev = -1
	if _, err := fmt.Fprintf(j.cw, "%%PDF-%s\n%s", formatVersion(version), binaryMarker); err != nil {
		return &WriteError{Err: err}
	}

	entries, err := j.scan()
	if err != nil {
		return err
	}
	if err := j.finish(entries, true); err != nil {
		return err
	}
	span.SetTag("objects", j.body.Written())
	return nil
}

func writeIncremental(w io.Writer, doc *core.Document, o *options) (err error) {
	_, span := o.tracer.StartSpan(context.Background(), observability.SpanWriteIncremental)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	origin := doc.Origin()
	if origin == nil {
		return ErrNoOrigin
	}
	if _, err := doc.Catalog(); err != nil {
		return err
	}

	j := newJob(w, doc, o, NewContext(origin.NextObjectNumber()), IncrementalPolicy{})
	j.prev = origin.StartXRef()
	j.floor = origin.NextObjectNumber()

	entries, err := j.scan()
	if err != nil {
		return err
	}
	j.body.ScheduleChanged()

	if _, err := io.Copy(j.cw, io.NewSectionReader(origin, 0, origin.Size())); err != nil {
		return &WriteError{Err: fmt.Errorf("failed to copy base file: %w", err)}
	}
	if j.body.Pending() == 0 && !core.IsModified(doc.Trailer()) {
		o.logger.Debug("incremental write has no changes", observability.Int64("size", origin.Size()))
		return nil
	}
	if err := ensureEOL(j.cw, origin); err != nil {
		return err
	}

	if err := j.finish(entries, false); err != nil {
		return err
	}
	span.SetTag("objects", j.body.Written())
	return nil
}

func newJob(w io.Writer, doc *core.Document, o *options, ctx *Context, policy IndirectionPolicy) *job {
	cw := &countingWriter{w: w}
	j := &job{
		o:    o,
		doc:  doc,
		cw:   cw,
		ctx:  ctx,
		body: NewBodyWriter(cw, ctx, policy),
	}
	if origin := doc.Origin(); origin != nil {
		j.body.SetOrigin(origin)
	}
	for _, k := range doc.Trailer().Keys() {
		if !bookkeepingKeys[k] {
			j.keys = append(j.keys, k)
		}
	}
	return j
}

// scan decides indirection for the whole graph and serializes the
// document entries of the trailer, which numbers and schedules the
// trailer's indirect values.
func (j *job) scan() ([]byte, error) {
	if j.o.encrypter != nil && j.doc.IsEncrypted() {
		j.body.SetEncrypter(j.o.encrypter, j.doc.Trailer().Get("Encrypt"))
	}
	trailer := j.doc.Trailer()
	if err := j.body.Scan(trailer, j.keys); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, k := range j.keys {
		buf.WriteByte(' ')
		writeName(&buf, k)
		buf.WriteByte(' ')
		if err := j.body.WriteValue(&buf, trailer.Get(k)); err != nil {
			return nil, fmt.Errorf("failed to write trailer /%s: %w", k, err)
		}
	}
	return buf.Bytes(), nil
}

// finish writes the scheduled bodies, the cross-reference section and the
// trailer.
func (j *job) finish(trailerEntries []byte, complete bool) error {
	if err := j.body.Flush(); err != nil {
		return err
	}

	useStream := j.doc.IsXRefStream()
	if j.o.xrefStream != nil {
		useStream = *j.o.xrefStream
	}

	var xrefNum int
	if useStream {
		xrefNum = j.ctx.allocate()
	}
	xrefOffset := j.cw.n

	entries := sortedEntries(j.ctx)
	if useStream {
		entries = append(entries, xrefEntry{num: xrefNum, offset: xrefOffset})
	}
	size := j.floor
	if n := len(entries); n > 0 && entries[n-1].num+1 > size {
		size = entries[n-1].num + 1
	}
	if size < 1 {
		size = 1
	}

	id, err := j.fileID(trailerEntries, size)
	if err != nil {
		return err
	}

	var tail bytes.Buffer
	tail.Write(trailerEntries)
	tail.WriteString(" /ID [")
	writeHexString(&tail, id[0])
	tail.WriteByte(' ')
	writeHexString(&tail, id[1])
	tail.WriteByte(']')
	if j.prev >= 0 {
		tail.WriteString(" /Prev " + strconv.FormatInt(j.prev, 10))
	}

	var buf bytes.Buffer
	if useStream {
		if err := writeXRefStream(&buf, xrefNum, entries, size, complete, tail.Bytes()); err != nil {
			return err
		}
	} else {
		writeXRefTable(&buf, entries, size, complete)
		fmt.Fprintf(&buf, "trailer\n<</Size %d", size)
		buf.Write(tail.Bytes())
		buf.WriteString(">>\n")
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	if _, err := j.cw.Write(buf.Bytes()); err != nil {
		return &WriteError{Err: err}
	}

	reused := 0
	for num := range j.ctx.Objects() {
		if j.ctx.IsExisting(num) {
			if _, emitted := j.ctx.offsets[num]; !emitted {
				reused++
			}
		}
	}
	j.o.logger.Debug("wrote document",
		observability.Int("objects", j.body.Written()),
		observability.Int("reused", reused),
		observability.Int("size", size),
		observability.Int64("xref", xrefOffset))
	return nil
}

// fileID returns the two identifiers of the trailer /ID. The first is
// kept from the document when present, the second changes every write.
func (j *job) fileID(trailerEntries []byte, size int) ([2][]byte, error) {
	var fresh []byte
	if j.o.deterministicID {
		h := sha256.New()
		fmt.Fprintf(h, "%s|%d|%d|", formatVersion(j.doc.Version()), size, j.prev)
		h.Write(trailerEntries)
		fresh = h.Sum(nil)[:16]
	} else {
		fresh = make([]byte, 16)
		if _, err := rand.Read(fresh); err != nil {
			return [2][]byte{}, fmt.Errorf("failed to generate file ID: %w", err)
		}
	}

	first := fresh
	if arr, err := j.doc.DocumentID(); err == nil && arr != nil && arr.Len() == 2 {
		if obj, err := core.Deref(arr.Get(0)); err == nil {
			if s, ok := obj.(core.String); ok && len(s) > 0 {
				first = []byte(s)
			}
		}
	}
	return [2][]byte{first, fresh}, nil
}

// ensureEOL terminates the base file's last line so the update starts on
// a line of its own.
func ensureEOL(w io.Writer, origin core.Origin) error {
	if origin.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := origin.ReadAt(last, origin.Size()-1); err != nil && err != io.EOF {
		return &WriteError{Err: fmt.Errorf("failed to read base file: %w", err)}
	}
	if last[0] == '\n' || last[0] == '\r' {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

func formatVersion(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
