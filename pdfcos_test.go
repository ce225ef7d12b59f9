package pdfcos

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/pdfcos/core"
	"github.com/tsawler/pdfcos/reader"
	"github.com/tsawler/pdfcos/writer"
)

func newDocument() *core.Document {
	doc := core.NewDocument()
	catalog, _ := doc.Catalog()
	pages := core.NewDict()
	pages.SetIndirect(true)
	pages.Set("Type", core.Name("Pages"))
	pages.Set("Kids", core.NewArray())
	pages.Set("Count", core.Int(0))
	catalog.Set("Pages", pages)
	return doc
}

// savedFile writes newDocument to a temporary file
func savedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.pdf")
	if err := FromDocument(newDocument()).SetInfo("Title", "Base").Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return path
}

func readInfo(t *testing.T, path string) *core.Dict {
	t.Helper()
	r, err := reader.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	obj, err := core.Deref(r.Document().Trailer().Get("Info"))
	if err != nil {
		t.Fatalf("Deref(/Info) error = %v", err)
	}
	info, ok := obj.(*core.Dict)
	if !ok {
		t.Fatalf("/Info is %T", obj)
	}
	return info
}

func TestOpen(t *testing.T) {
	// Test with non-existent file
	err := Open("nonexistent.pdf").Save(filepath.Join(t.TempDir(), "out.pdf"))
	if err == nil {
		t.Error("expected error for non-existent file")
	}

	if _, err := Open("").Document(); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestFromDocumentSave(t *testing.T) {
	path := savedFile(t)

	info := readInfo(t, path)
	if title, _ := info.GetString("Title"); title.Text() != "Base" {
		t.Errorf("Title = %q, want Base", title.Text())
	}
}

func TestIncrementalSave(t *testing.T) {
	path := savedFile(t)
	base, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "updated.pdf")
	err = Open(path).SetInfo("Title", "Updated").SetInfo("Subject", "Tests").Incremental().Save(out)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, base) || len(data) == len(base) {
		t.Error("incremental save did not append to the base file")
	}

	info := readInfo(t, out)
	if title, _ := info.GetString("Title"); title.Text() != "Updated" {
		t.Errorf("Title = %q, want Updated", title.Text())
	}
	if subject, _ := info.GetString("Subject"); subject.Text() != "Tests" {
		t.Errorf("Subject = %q, want Tests", subject.Text())
	}
}

func TestSaveInPlace(t *testing.T) {
	path := savedFile(t)
	if err := Open(path).SetInfo("Title", "Again").Incremental().Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if title, _ := readInfo(t, path).GetString("Title"); title.Text() != "Again" {
		t.Errorf("Title = %q, want Again", title.Text())
	}
}

func TestUpdateError(t *testing.T) {
	errEdit := errors.New("edit failed")
	out := filepath.Join(t.TempDir(), "out.pdf")

	err := Open(savedFile(t)).
		Update(func(*core.Document) error { return errEdit }).
		Save(out)
	if !errors.Is(err, errEdit) {
		t.Errorf("Save() error = %v, want the edit error", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("failed edit produced an output file")
	}
}

func TestIncrementalWithoutSource(t *testing.T) {
	var buf bytes.Buffer
	err := FromDocument(newDocument()).Incremental().Write(&buf)
	if !errors.Is(err, writer.ErrNoOrigin) {
		t.Errorf("Write() error = %v, want ErrNoOrigin", err)
	}
}

func TestChainingIsImmutable(t *testing.T) {
	base := FromDocument(newDocument()).DeterministicID()
	classic := base.ClassicXRef()
	streamed := base.XRefStream()

	var a, b bytes.Buffer
	if err := classic.Write(&a); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := streamed.Write(&b); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Contains(a.Bytes(), []byte("\nxref\n")) {
		t.Error("classic editor did not write a table")
	}
	if !bytes.Contains(b.Bytes(), []byte("/Type /XRef")) {
		t.Error("stream editor did not write an xref stream")
	}
	if base.options.xrefStream != nil {
		t.Error("configuring a copy changed the original editor")
	}
}

func TestFromReader(t *testing.T) {
	r, err := reader.Open(savedFile(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	ed := FromReader(r).SetInfo("Author", "Reader")
	doc, err := ed.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc != r.Document() {
		t.Error("editor does not edit the reader's document")
	}
	if err := ed.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// the reader belongs to the caller and stays usable
	if _, err := r.Document().Catalog(); err != nil {
		t.Errorf("Catalog() after Close() error = %v", err)
	}
}

func TestInfoDictErrors(t *testing.T) {
	doc := newDocument()
	doc.Trailer().Set("Info", core.Int(3))
	if _, err := FromDocument(doc).SetInfo("Title", "x").Document(); err == nil {
		t.Error("expected error for a non-dictionary /Info")
	}
}
