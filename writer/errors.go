package writer

import (
	"errors"
	"fmt"
	"io"

	"github.com/tsawler/pdfcos/core"
)

var (
	// ErrInvalidVersion is returned when the header version is outside 1.0-2.0.
	ErrInvalidVersion = errors.New("pdf: invalid header version")

	// ErrNoOrigin is returned by incremental writes of documents that were
	// not parsed from a file.
	ErrNoOrigin = errors.New("pdf: incremental write needs a parsed document")
)

// WriteError reports an I/O failure that aborted a write. Output written
// before the failure is left as is.
type WriteError struct {
	ID  core.ObjectID // object being written, zero outside the body
	Err error
}

func (e *WriteError) Error() string {
	if e.ID.Number > 0 {
		return fmt.Sprintf("pdf: write object %d %d: %v", e.ID.Number, e.ID.Generation, e.Err)
	}
	return fmt.Sprintf("pdf: write: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// countingWriter tracks the absolute output offset and keeps the first
// error so later writes become no-ops.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		c.err = err
	}
	return n, err
}

func (c *countingWriter) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}
