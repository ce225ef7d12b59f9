package writer

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/digitorus/pdf"

	"github.com/tsawler/pdfcos/core"
)

// baseFile writes the example document with an info dictionary. The
// catalog is object 1, info 2, pages 3 and the shared resources 4.
func baseFile(t *testing.T, opts ...Option) []byte {
	t.Helper()
	doc, _ := exampleDocument()
	info := core.NewDict()
	info.Set("Title", core.String("Base"))
	doc.Trailer().Set("Info", info)
	return writeDocument(t, doc, opts...)
}

func writeUpdate(t *testing.T, doc *core.Document, opts ...Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteIncremental(&buf, doc, opts...); err != nil {
		t.Fatalf("WriteIncremental() error = %v", err)
	}
	return buf.Bytes()
}

// appended returns the bytes after base, failing if out does not start
// with base unchanged.
func appended(t *testing.T, base, out []byte) []byte {
	t.Helper()
	if !bytes.HasPrefix(out, base) {
		t.Fatal("update does not start with the base file")
	}
	return out[len(base):]
}

func infoDict(t *testing.T, doc *core.Document) (*core.IndirectRef, *core.Dict) {
	t.Helper()
	ref, ok := doc.Trailer().GetIndirectRef("Info")
	if !ok {
		t.Fatal("trailer /Info is not a reference")
	}
	return ref, deref(t, ref).(*core.Dict)
}

var prevEntry = regexp.MustCompile(`/Prev (\d+)`)

// TestIncrementalNoChanges tests that an untouched document gives back
// the base file
func TestIncrementalNoChanges(t *testing.T) {
	for _, stream := range []bool{false, true} {
		t.Run("xref stream "+strconv.FormatBool(stream), func(t *testing.T) {
			base := baseFile(t, WithXRefStream(stream))
			r := readDocument(t, base)
			doc := r.Document()

			// loading objects does not count as a change
			catalog, _ := doc.Catalog()
			deref(t, catalog.Get("Pages"))
			infoDict(t, doc)

			out := writeUpdate(t, doc)
			if !bytes.Equal(out, base) {
				t.Errorf("update appended %q", out[len(base):])
			}
		})
	}
}

// TestIncrementalModifiedObject tests rewriting a changed object under
// its own number
func TestIncrementalModifiedObject(t *testing.T) {
	base := baseFile(t)
	r := readDocument(t, base)
	doc := r.Document()
	ref, info := infoDict(t, doc)
	info.Set("Title", core.String("Changed"))

	out := writeUpdate(t, doc)
	tail := appended(t, base, out)

	headers := objectHeaders(tail)
	want := fmt.Sprintf("%d %d obj", ref.ID().Number, ref.ID().Generation)
	if len(headers) != 1 || headers[0] != want {
		t.Fatalf("appended objects %v, want [%s]", headers, want)
	}
	if !bytes.Contains(tail, []byte("/Root 1 0 R")) {
		t.Error("trailer does not keep the catalog reference")
	}
	m := prevEntry.FindSubmatch(tail)
	if m == nil || string(m[1]) != strconv.FormatInt(r.StartXRef(), 10) {
		t.Errorf("/Prev = %s, want %d", m, r.StartXRef())
	}

	updated := readDocument(t, out)
	_, got := infoDict(t, updated.Document())
	if title, _ := got.GetString("Title"); title != "Changed" {
		t.Errorf("Title = %q after update", title)
	}
	if updated.NextObjectNumber() != r.NextObjectNumber() {
		t.Errorf("NextObjectNumber() = %d, want %d", updated.NextObjectNumber(), r.NextObjectNumber())
	}

	oldID, _ := doc.DocumentID()
	newID, _ := updated.Document().DocumentID()
	if newID.Get(0) != oldID.Get(0) {
		t.Error("ID[0] changed by an incremental update")
	}
	if newID.Get(1) == oldID.Get(1) {
		t.Error("ID[1] not regenerated")
	}
}

// TestIncrementalNewObjects tests numbering of objects added to a parsed
// document
func TestIncrementalNewObjects(t *testing.T) {
	base := baseFile(t)
	r := readDocument(t, base)
	doc := r.Document()
	catalog, _ := doc.Catalog()

	outlines := core.NewDict()
	outlines.SetIndirect(true)
	outlines.Set("Type", core.Name("Outlines"))
	outlines.Set("Count", core.Int(0))
	catalog.Set("Outlines", outlines)

	out := writeUpdate(t, doc)
	tail := appended(t, base, out)

	headers := objectHeaders(tail)
	if len(headers) != 2 {
		t.Fatalf("appended objects %v, want the catalog and the outlines", headers)
	}
	if headers[0] != "1 0 obj" {
		t.Errorf("catalog written as %q", headers[0])
	}
	newNum, _ := strconv.Atoi(strings.Fields(headers[1])[0])
	if newNum < r.NextObjectNumber() {
		t.Errorf("new object numbered %d, below the base file's %d", newNum, r.NextObjectNumber())
	}
	if !bytes.Contains(tail, []byte("/Pages 3 0 R")) {
		t.Error("rewritten catalog does not keep the page tree reference")
	}

	updated := readDocument(t, out)
	got, _ := updated.Document().Catalog()
	o := deref(t, got.Get("Outlines")).(*core.Dict)
	if typ, _ := o.GetName("Type"); typ != "Outlines" {
		t.Errorf("Outlines /Type = %v", typ)
	}
	size, _ := updated.Document().Trailer().GetInt("Size")
	if int(size) != newNum+1 {
		t.Errorf("/Size = %d, want %d", size, newNum+1)
	}
}

// TestIncrementalLoadedNodeReference tests that a loaded dictionary placed
// directly into the graph is written as a reference to its number
func TestIncrementalLoadedNodeReference(t *testing.T) {
	base := baseFile(t)
	doc := readDocument(t, base).Document()
	catalog, _ := doc.Catalog()
	_, info := infoDict(t, doc)
	info.Set("Catalog", catalog)

	tail := appended(t, base, writeUpdate(t, doc))
	if !bytes.Contains(tail, []byte("/Catalog 1 0 R")) {
		t.Errorf("loaded catalog not written by reference:\n%s", tail)
	}
	if n := len(objectHeaders(tail)); n != 1 {
		t.Errorf("appended %d objects, want 1", n)
	}
}

// TestIncrementalReplace tests replacing the content of a reference
func TestIncrementalReplace(t *testing.T) {
	base := baseFile(t)
	doc := readDocument(t, base).Document()
	ref, _ := infoDict(t, doc)

	info := core.NewDict()
	info.Set("Author", core.String("Someone"))
	ref.Replace(info)

	out := writeUpdate(t, doc)
	headers := objectHeaders(appended(t, base, out))
	if len(headers) != 1 || headers[0] != "2 0 obj" {
		t.Errorf("appended objects %v, want [2 0 obj]", headers)
	}

	_, got := infoDict(t, readDocument(t, out).Document())
	if got.Has("Title") || !got.Has("Author") {
		t.Errorf("Info = %v after replacing", got)
	}
}

// TestIncrementalXRefStream tests that an xref stream base gets an xref
// stream update
func TestIncrementalXRefStream(t *testing.T) {
	base := baseFile(t, WithXRefStream(true))
	doc := readDocument(t, base).Document()
	_, info := infoDict(t, doc)
	info.Set("Title", core.String("Streamed"))

	out := writeUpdate(t, doc)
	tail := appended(t, base, out)
	if n := bytes.Count(out, []byte("/Type /XRef")); n != 2 {
		t.Errorf("found %d xref streams, want 2", n)
	}
	if !bytes.Contains(tail, []byte("/Index [")) {
		t.Error("update xref stream has no /Index")
	}
	if bytes.Contains(tail, []byte("\nxref\n")) {
		t.Error("update has a classic table")
	}

	updated := readDocument(t, out)
	if !updated.Document().IsXRefStream() {
		t.Error("IsXRefStream() = false after update")
	}
	_, got := infoDict(t, updated.Document())
	if title, _ := got.GetString("Title"); title != "Streamed" {
		t.Errorf("Title = %q", title)
	}
}

// TestIncrementalGeneration tests that a changed object keeps a non-zero
// generation
func TestIncrementalGeneration(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := []int{}
	for _, obj := range []string{
		"1 0 obj\n<</Type /Catalog /Pages 2 0 R>>\nendobj\n",
		"2 0 obj\n<</Type /Pages /Kids [] /Count 0>>\nendobj\n",
		"3 2 obj\n<</Title (Old)>>\nendobj\n",
	} {
		offsets = append(offsets, b.Len())
		b.WriteString(obj)
	}
	start := b.Len()
	b.WriteString("xref\n0 4\n0000000000 65535 f \n")
	gens := []int{0, 0, 2}
	for i, off := range offsets {
		fmt.Fprintf(&b, "%010d %05d n \n", off, gens[i])
	}
	fmt.Fprintf(&b, "trailer\n<</Size 4 /Root 1 0 R /Info 3 2 R>>\nstartxref\n%d\n%%%%EOF", start)
	base := b.Bytes()

	doc := readDocument(t, base).Document()
	_, info := infoDict(t, doc)
	info.Set("Title", core.String("New"))

	out := writeUpdate(t, doc)
	tail := appended(t, base, out)
	if !bytes.HasPrefix(tail, []byte("\n3 2 obj\n")) {
		t.Errorf("update starts with %q", tail[:10])
	}
	if !bytes.Contains(tail, []byte("3 1\n")) || !bytes.Contains(tail, []byte(" 00002 n \n")) {
		t.Errorf("xref section does not keep generation 2:\n%s", tail)
	}
	if !bytes.Contains(tail, []byte("/Info 3 2 R")) {
		t.Error("trailer does not reference generation 2")
	}

	_, got := infoDict(t, readDocument(t, out).Document())
	if title, _ := got.GetString("Title"); title != "New" {
		t.Errorf("Title = %q", title)
	}
}

// TestFullRewriteOfParsedDocument tests that a parsed document written in
// full has every object once
func TestFullRewriteOfParsedDocument(t *testing.T) {
	base := baseFile(t)
	doc := readDocument(t, base).Document()
	catalog, _ := doc.Catalog()
	pages := deref(t, catalog.Get("Pages"))
	catalog.Set("PagesAgain", pages)

	data := writeDocument(t, doc)
	headers := objectHeaders(data)
	if len(headers) != 4 {
		t.Errorf("got objects %v, want 4", headers)
	}
	if !bytes.Contains(data, []byte("/Pages 3 0 R /PagesAgain 3 0 R")) {
		t.Errorf("page tree not shared:\n%s", data)
	}
	parsed := readDocument(t, data).Document()
	if !core.Equal(doc.Trailer().Get("Root"), parsed.Trailer().Get("Root")) {
		t.Error("catalog changed by a full rewrite")
	}
}

// TestIncrementalIndependentReader checks an update with a separate parser
func TestIncrementalIndependentReader(t *testing.T) {
	for _, stream := range []bool{false, true} {
		t.Run("xref stream "+strconv.FormatBool(stream), func(t *testing.T) {
			base := baseFile(t, WithXRefStream(stream))
			doc := readDocument(t, base).Document()
			_, info := infoDict(t, doc)
			info.Set("Title", core.String("Checked"))
			out := writeUpdate(t, doc)

			r, err := pdf.NewReader(bytes.NewReader(out), int64(len(out)))
			if err != nil {
				t.Fatalf("pdf.NewReader() error = %v", err)
			}
			if title := r.Trailer().Key("Info").Key("Title").RawString(); title != "Checked" {
				t.Errorf("Title = %q", title)
			}
			if r.NumPage() != 2 {
				t.Errorf("NumPage() = %d, want 2", r.NumPage())
			}
		})
	}
}

// TestIncrementalOptionDispatch tests Write with WithIncremental
func TestIncrementalOptionDispatch(t *testing.T) {
	base := baseFile(t)
	doc := readDocument(t, base).Document()
	_, info := infoDict(t, doc)
	info.Set("Title", core.String("Dispatched"))

	var a, b bytes.Buffer
	if err := Write(&a, doc, WithIncremental(), WithDeterministicID()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := WriteIncremental(&b, doc, WithDeterministicID()); err != nil {
		t.Fatalf("WriteIncremental() error = %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("Write(WithIncremental) and WriteIncremental differ")
	}

	var failed bytes.Buffer
	err := Write(&failed, core.NewDocument(), WithIncremental())
	if !errors.Is(err, ErrNoOrigin) {
		t.Errorf("Write() error = %v, want ErrNoOrigin", err)
	}
}

// TestIncrementalNestedEdit tests that objects edited below an unchanged
// reference are rewritten
func TestIncrementalNestedEdit(t *testing.T) {
	tests := []struct {
		name string
		edit func(t *testing.T, catalog *core.Dict) *core.Dict
		want string
	}{
		{
			name: "pages below the catalog",
			edit: func(t *testing.T, catalog *core.Dict) *core.Dict {
				pages, err := catalog.ResolveDict("Pages")
				if err != nil {
					t.Fatalf("ResolveDict(Pages) error = %v", err)
				}
				return pages
			},
			want: "3 0 obj",
		},
		{
			name: "resources two references down",
			edit: func(t *testing.T, catalog *core.Dict) *core.Dict {
				pages, _ := catalog.ResolveDict("Pages")
				kids, _ := pages.ResolveArray("Kids")
				page := deref(t, kids.Get(0)).(*core.Dict)
				res, err := page.ResolveDict("Resources")
				if err != nil {
					t.Fatalf("ResolveDict(Resources) error = %v", err)
				}
				return res
			},
			want: "4 0 obj",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := baseFile(t)
			r := readDocument(t, base)
			doc := r.Document()
			catalog, err := doc.Catalog()
			if err != nil {
				t.Fatalf("Catalog() error = %v", err)
			}

			target := tt.edit(t, catalog)
			target.Set("Edited", core.Bool(true))

			out := writeUpdate(t, doc)
			tail := appended(t, base, out)
			if headers := objectHeaders(tail); len(headers) != 1 || headers[0] != tt.want {
				t.Fatalf("appended objects %v, want [%s]", headers, tt.want)
			}

			updated := readDocument(t, out)
			num, _ := strconv.Atoi(strings.Fields(tt.want)[0])
			reread := deref(t, updated.Ref(core.ObjectID{Number: num})).(*core.Dict)
			if v, _ := reread.GetBool("Edited"); !bool(v) {
				t.Errorf("object %d lost the edit: %v", num, reread)
			}
		})
	}
}
