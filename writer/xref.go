package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/tsawler/pdfcos/internal/filters"
)

// xrefEntry is an in-use entry of the section being written.
type xrefEntry struct {
	num    int
	gen    int
	offset int64
}

// sortedEntries returns the emitted objects of ctx ordered by number.
func sortedEntries(ctx *Context) []xrefEntry {
	offsets := ctx.Offsets()
	entries := make([]xrefEntry, 0, len(offsets))
	for num, off := range offsets {
		entries = append(entries, xrefEntry{num: num, gen: ctx.generation(num), offset: off})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].num < entries[j].num })
	return entries
}

// subsections groups entries into runs of consecutive numbers.
func subsections(entries []xrefEntry) [][]xrefEntry {
	var runs [][]xrefEntry
	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].num == entries[j-1].num+1 {
			j++
		}
		runs = append(runs, entries[i:j])
		i = j
	}
	return runs
}

// writeXRefTable writes a classic table. A complete table starts with the
// head of the free list and marks every gap up to size as free; an
// update lists only its own subsections.
func writeXRefTable(buf *bytes.Buffer, entries []xrefEntry, size int, complete bool) {
	buf.WriteString("xref\n")
	if complete {
		fmt.Fprintf(buf, "0 %d\n", size)
		buf.WriteString("0000000000 65535 f \n")
		next := 0
		for num := 1; num < size; num++ {
			if next < len(entries) && entries[next].num == num {
				fmt.Fprintf(buf, "%010d %05d n \n", entries[next].offset, entries[next].gen)
				next++
				continue
			}
			buf.WriteString("0000000000 00000 f \n")
		}
		return
	}
	for _, run := range subsections(entries) {
		fmt.Fprintf(buf, "%d %d\n", run[0].num, len(run))
		for _, e := range run {
			fmt.Fprintf(buf, "%010d %05d n \n", e.offset, e.gen)
		}
	}
}

// xrefStreamData encodes the rows of a cross-reference stream with field
// widths w. A complete section covers 0..size-1 and its /Index is
// omitted; otherwise the returned index lists the subsections.
func xrefStreamData(entries []xrefEntry, size int, complete bool) (data []byte, w [3]int, index []int) {
	var maxOffset int64
	maxGen := 0
	for _, e := range entries {
		if e.offset > maxOffset {
			maxOffset = e.offset
		}
		if e.gen > maxGen {
			maxGen = e.gen
		}
	}
	w = [3]int{1, byteWidth(maxOffset, 4), byteWidth(int64(maxGen), 2)}

	var buf bytes.Buffer
	row := func(typ byte, f2 int64, f3 int) {
		buf.WriteByte(typ)
		putBigEndian(&buf, f2, w[1])
		putBigEndian(&buf, int64(f3), w[2])
	}

	if complete {
		next := 0
		row(0, 0, 0xFFFF)
		for num := 1; num < size; num++ {
			if next < len(entries) && entries[next].num == num {
				row(1, entries[next].offset, entries[next].gen)
				next++
				continue
			}
			row(0, 0, 0)
		}
		return buf.Bytes(), w, nil
	}

	for _, run := range subsections(entries) {
		index = append(index, run[0].num, len(run))
		for _, e := range run {
			row(1, e.offset, e.gen)
		}
	}
	return buf.Bytes(), w, index
}

// writeXRefStream writes the cross-reference stream object num. Its own
// entry must already be among entries. trailer holds the serialized
// document entries of the trailer.
func writeXRefStream(buf *bytes.Buffer, num int, entries []xrefEntry, size int, complete bool, trailer []byte) error {
	data, w, index := xrefStreamData(entries, size, complete)
	compressed, err := filters.FlateEncode(data)
	if err != nil {
		return fmt.Errorf("failed to compress xref stream: %w", err)
	}

	fmt.Fprintf(buf, "%d 0 obj\n<</Type /XRef /Size %d /W [%d %d %d]", num, size, w[0], w[1], w[2])
	if index != nil {
		buf.WriteString(" /Index [")
		for i, v := range index {
			if i > 0 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(buf, "%d", v)
		}
		buf.WriteByte(']')
	}
	fmt.Fprintf(buf, " /Filter /FlateDecode /Length %d", len(compressed))
	buf.Write(trailer)
	buf.WriteString(">>\nstream\n")
	buf.Write(compressed)
	buf.WriteString("\nendstream\nendobj\n")
	return nil
}

// byteWidth returns the bytes needed for v, at least min.
func byteWidth(v int64, min int) int {
	n := 0
	for ; v > 0; v >>= 8 {
		n++
	}
	if n < min {
		n = min
	}
	return n
}

func putBigEndian(buf *bytes.Buffer, v int64, width int) {
	for i := width - 1; i >= 0; i-- {
		buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}
