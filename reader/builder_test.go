package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// pdfBuilder assembles test files with correct byte offsets.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
	pending []int
}

func newPDF(version string) *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	b.buf.WriteString("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")
	return b
}

// obj writes "num gen obj body endobj".
func (b *pdfBuilder) objGen(num, gen int, body string) {
	b.offsets[num] = b.buf.Len()
	b.pending = append(b.pending, num)
	fmt.Fprintf(&b.buf, "%d %d obj\n%s\nendobj\n", num, gen, body)
}

func (b *pdfBuilder) obj(num int, body string) {
	b.objGen(num, 0, body)
}

// stream writes a stream object with a direct /Length.
func (b *pdfBuilder) stream(num int, dict string, data string) {
	b.obj(num, fmt.Sprintf("<<%s /Length %d>>\nstream\n%s\nendstream", dict, len(data), data))
}

// objStm writes an uncompressed object stream holding the given objects,
// keyed by object number.
func (b *pdfBuilder) objStm(num int, nums []int, bodies []string) {
	var header, body strings.Builder
	for i, n := range nums {
		fmt.Fprintf(&header, "%d %d ", n, body.Len())
		body.WriteString(bodies[i])
		body.WriteByte('\n')
	}
	data := header.String() + body.String()
	b.stream(num, fmt.Sprintf("/Type /ObjStm /N %d /First %d", len(nums), header.Len()), data)
}

// xref writes a classic table covering the objects written since the last
// section, then the trailer. It returns the table's offset.
func (b *pdfBuilder) xref(trailer string, first bool) int {
	start := b.buf.Len()
	b.buf.WriteString("xref\n")
	if first {
		b.buf.WriteString("0 1\n0000000000 65535 f \n")
	}
	sort.Ints(b.pending)
	for _, num := range b.pending {
		fmt.Fprintf(&b.buf, "%d 1\n%010d %05d n \n", num, b.offsets[num], 0)
	}
	b.pending = nil
	fmt.Fprintf(&b.buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, start)
	return start
}

// xrefRow is one entry of an xref stream.
type xrefRow struct {
	num, typ, f2, f3 int
}

// xrefStream writes an uncompressed xref stream object with /W [1 4 2].
// Type 1 rows without an offset get the builder's recorded offset.
func (b *pdfBuilder) xrefStream(num int, rows []xrefRow, extra string) int {
	start := b.buf.Len()
	rows = append(rows, xrefRow{num: num, typ: 1, f2: start})
	sort.Slice(rows, func(i, j int) bool { return rows[i].num < rows[j].num })

	var data bytes.Buffer
	var index strings.Builder
	size := 0
	for _, row := range rows {
		if row.typ == 1 && row.f2 == 0 {
			row.f2 = b.offsets[row.num]
		}
		var cell [4]byte
		data.WriteByte(byte(row.typ))
		binary.BigEndian.PutUint32(cell[:], uint32(row.f2))
		data.Write(cell[:])
		data.WriteByte(byte(row.f3 >> 8))
		data.WriteByte(byte(row.f3))
		fmt.Fprintf(&index, "%d 1 ", row.num)
		if row.num+1 > size {
			size = row.num + 1
		}
	}

	fmt.Fprintf(&b.buf, "%d 0 obj\n<</Type /XRef /Size %d /W [1 4 2] /Index [%s] /Length %d%s>>\nstream\n",
		num, size, strings.TrimSpace(index.String()), data.Len(), extra)
	b.buf.Write(data.Bytes())
	fmt.Fprintf(&b.buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", start)
	b.pending = nil
	return start
}

func (b *pdfBuilder) bytes() []byte {
	return b.buf.Bytes()
}
