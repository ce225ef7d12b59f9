package writer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/tsawler/pdfcos/core"
)

// BodyWriter writes the indirect objects reachable from a trailer.
//
// Writing happens in two phases. Scan walks the graph once, counting the
// parents of every composite node and finding cycles, which together
// decide which nodes are indirect. Flush then emits the scheduled objects
// in traversal order; indirect children are written as "n g R" and
// scheduled once, direct children are written inline.
type BodyWriter struct {
	w      *countingWriter
	ctx    *Context
	policy IndirectionPolicy
	origin core.Origin

	enc     Encrypter
	encNode core.Object

	parents map[core.Object]int
	cyclic  map[core.Object]bool
	roots   map[core.Object]bool
	owned   map[core.Object]*core.IndirectRef
	refs    []*core.IndirectRef // references met by Scan, in order

	queue   []core.Object
	written int

	buf        bytes.Buffer
	cur        core.ObjectID
	encrypting bool
}

// NewBodyWriter creates a body writer numbering through ctx. Offsets are
// counted from the bytes already written through w when w is the
// writer's own counting writer, otherwise from zero.
func NewBodyWriter(w io.Writer, ctx *Context, policy IndirectionPolicy) *BodyWriter {
	cw, ok := w.(*countingWriter)
	if !ok {
		cw = &countingWriter{w: w}
	}
	if policy == nil {
		policy = FullPolicy{}
	}
	return &BodyWriter{
		w:       cw,
		ctx:     ctx,
		policy:  policy,
		parents: make(map[core.Object]int),
		cyclic:  make(map[core.Object]bool),
		roots:   make(map[core.Object]bool),
		owned:   make(map[core.Object]*core.IndirectRef),
	}
}

// SetOrigin makes loaded nodes of the parsed file resolve to their
// references, so a node reached both directly and by reference is one
// object.
func (b *BodyWriter) SetOrigin(o core.Origin) {
	b.origin = o
}

// SetEncrypter routes strings and stream payloads through e, except those
// of the object skip (the encryption dictionary).
func (b *BodyWriter) SetEncrypter(e Encrypter, skip core.Object) {
	b.enc = e
	b.encNode = b.canon(skip)
}

// Scan walks the graph below the given trailer entries. Dictionary values
// of the trailer are always written as indirect objects.
func (b *BodyWriter) Scan(trailer *core.Dict, keys []string) error {
	onPath := make(map[core.Object]int)
	for _, k := range keys {
		v := b.canon(trailer.Get(k))
		if _, ok := v.(*core.Dict); ok {
			b.roots[v] = true
		}
		if err := b.scan(v, nil, onPath); err != nil {
			return fmt.Errorf("failed to scan /%s: %w", k, err)
		}
	}
	return nil
}

func (b *BodyWriter) scan(obj core.Object, path []core.Object, onPath map[core.Object]int) error {
	if !isNode(obj) {
		return nil
	}
	b.parents[obj]++
	if ref, ok := obj.(*core.IndirectRef); ok && b.parents[obj] == 1 {
		b.refs = append(b.refs, ref)
	}
	if i, ok := onPath[obj]; ok {
		for _, n := range path[i:] {
			b.cyclic[n] = true
		}
		return nil
	}
	if b.parents[obj] > 1 || b.policy.Retained(obj) {
		return nil
	}

	children, err := b.children(obj)
	if err != nil {
		return err
	}
	onPath[obj] = len(path)
	path = append(path, obj)
	for _, child := range children {
		if err := b.scan(b.canon(child), path, onPath); err != nil {
			return err
		}
	}
	delete(onPath, obj)
	return nil
}

// children returns the values held by obj. A reference contributes the
// children of its target.
func (b *BodyWriter) children(obj core.Object) ([]core.Object, error) {
	if ref, ok := obj.(*core.IndirectRef); ok {
		target, err := core.Deref(ref)
		if err != nil {
			return nil, err
		}
		if isComposite(target) {
			if _, taken := b.owned[target]; !taken {
				b.owned[target] = ref
			}
		}
		obj = target
	}

	switch v := obj.(type) {
	case *core.Dict:
		return dictValues(v, ""), nil
	case *core.Array:
		return v.Items(), nil
	case *core.Stream:
		return dictValues(v.Dict, "Length"), nil
	}
	return nil, nil
}

// canon maps a loaded node to the reference that owns it.
func (b *BodyWriter) canon(obj core.Object) core.Object {
	if !isComposite(obj) {
		return obj
	}
	if ref, ok := b.owned[obj]; ok {
		return ref
	}
	if b.origin != nil {
		if ref, ok := b.origin.Owner(obj); ok {
			b.owned[obj] = ref
			return ref
		}
	}
	return obj
}

func (b *BodyWriter) isIndirect(obj core.Object) bool {
	switch v := obj.(type) {
	case *core.IndirectRef, *core.Stream:
		return true
	case *core.Dict:
		return v.IsIndirect() || b.roots[obj] || b.parents[obj] > 1 || b.cyclic[obj]
	case *core.Array:
		return v.IsIndirect() || b.parents[obj] > 1 || b.cyclic[obj]
	}
	return false
}

// WriteValue serializes obj into buf as it appears inside another object,
// numbering and scheduling it when it is indirect.
func (b *BodyWriter) WriteValue(buf *bytes.Buffer, obj core.Object) error {
	obj = b.canon(obj)
	if b.isIndirect(obj) {
		id, needsBody := b.policy.CreateIndirectReferenceIfNeeded(b.ctx, obj)
		if needsBody && b.ctx.Visit(obj) {
			b.queue = append(b.queue, obj)
		}
		writeRef(buf, id)
		return nil
	}
	return b.writeDirect(buf, obj)
}

func (b *BodyWriter) writeDirect(buf *bytes.Buffer, obj core.Object) error {
	switch v := obj.(type) {
	case nil, core.Null:
		buf.WriteString("null")
	case core.Bool:
		writeBool(buf, v)
	case core.Int:
		writeInt(buf, v)
	case core.Real:
		writeReal(buf, v)
	case core.Name:
		writeName(buf, string(v))
	case core.String:
		s := []byte(v)
		if b.encrypting {
			enc, err := b.enc.EncryptString(b.cur, s)
			if err != nil {
				return fmt.Errorf("failed to encrypt string in %s: %w", b.cur, err)
			}
			s = enc
		}
		writeString(buf, s)
	case *core.Dict:
		return b.writeDict(buf, v)
	case *core.Array:
		buf.WriteByte('[')
		for i, item := range v.Items() {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := b.WriteValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("cannot serialize %T", obj)
	}
	return nil
}

func (b *BodyWriter) writeDict(buf *bytes.Buffer, d *core.Dict) error {
	buf.WriteString("<<")
	if _, err := b.writeEntries(buf, d, ""); err != nil {
		return err
	}
	buf.WriteString(">>")
	return nil
}

// writeEntries writes the entries of d other than skip, separated by
// spaces, and returns how many were written.
func (b *BodyWriter) writeEntries(buf *bytes.Buffer, d *core.Dict, skip string) (int, error) {
	n := 0
	for _, k := range d.Keys() {
		if k == skip {
			continue
		}
		if n > 0 {
			buf.WriteByte(' ')
		}
		n++
		writeName(buf, k)
		buf.WriteByte(' ')
		if err := b.WriteValue(buf, d.Get(k)); err != nil {
			return n, err
		}
	}
	return n, nil
}

// ScheduleChanged schedules every reference met by Scan whose body the
// policy wants written. An incremental update needs this for changed
// objects that sit below objects written by number only, since those
// parents are never serialized.
func (b *BodyWriter) ScheduleChanged() {
	for _, ref := range b.refs {
		if _, needsBody := b.policy.CreateIndirectReferenceIfNeeded(b.ctx, ref); needsBody && b.ctx.Visit(ref) {
			b.queue = append(b.queue, ref)
		}
	}
}

// Pending returns the number of objects scheduled but not yet written.
func (b *BodyWriter) Pending() int {
	return len(b.queue)
}

// Written returns the number of objects emitted so far.
func (b *BodyWriter) Written() int {
	return b.written
}

// Flush writes scheduled objects until none remain.
func (b *BodyWriter) Flush() error {
	for len(b.queue) > 0 {
		obj := b.queue[0]
		b.queue = b.queue[1:]
		if err := b.writeObject(obj); err != nil {
			return err
		}
	}
	return nil
}

func (b *BodyWriter) writeObject(obj core.Object) error {
	id, ok := b.ctx.Lookup(obj)
	if !ok {
		return fmt.Errorf("scheduled object %v has no number", obj)
	}

	content := obj
	if ref, ok := obj.(*core.IndirectRef); ok {
		target, err := core.Deref(ref)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", ref.ID(), err)
		}
		content = target
	}

	b.cur = id
	b.encrypting = b.enc != nil && obj != b.encNode
	defer func() { b.encrypting = false }()

	buf := &b.buf
	buf.Reset()
	fmt.Fprintf(buf, "%d %d obj\n", id.Number, id.Generation)

	var data []byte
	var err error
	switch v := content.(type) {
	case *core.Stream:
		data, err = b.streamData(id, v)
		if err != nil {
			break
		}
		buf.WriteString("<<")
		var n int
		if n, err = b.writeEntries(buf, v.Dict, "Length"); err != nil {
			break
		}
		if n > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString("/Length " + strconv.Itoa(len(data)) + ">>\nstream\n")
	case *core.Dict:
		err = b.writeDict(buf, v)
	default:
		// Arrays and primitives have the same form inline and on their own.
		err = b.writeDirect(buf, v)
	}
	if err != nil {
		return err
	}

	offset := b.w.n
	if _, err := b.w.Write(buf.Bytes()); err != nil {
		return &WriteError{ID: id, Err: err}
	}
	if data != nil {
		if _, err := b.w.Write(data); err != nil {
			return &WriteError{ID: id, Err: err}
		}
		if _, err := b.w.WriteString("\nendstream"); err != nil {
			return &WriteError{ID: id, Err: err}
		}
	}
	if _, err := b.w.WriteString("\nendobj\n"); err != nil {
		return &WriteError{ID: id, Err: err}
	}

	b.ctx.setOffset(id.Number, offset)
	b.written++
	return nil
}

func (b *BodyWriter) streamData(id core.ObjectID, s *core.Stream) ([]byte, error) {
	data := s.Data()
	if data == nil {
		data = []byte{}
	}
	if b.encrypting {
		enc, err := b.enc.EncryptStream(id, data)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt stream %s: %w", id, err)
		}
		data = enc
	}
	return data, nil
}

func dictValues(d *core.Dict, skip string) []core.Object {
	keys := d.Keys()
	values := make([]core.Object, 0, len(keys))
	for _, k := range keys {
		if k != skip {
			values = append(values, d.Get(k))
		}
	}
	return values
}

func isComposite(obj core.Object) bool {
	switch obj.(type) {
	case *core.Dict, *core.Array, *core.Stream:
		return true
	}
	return false
}

func isNode(obj core.Object) bool {
	if _, ok := obj.(*core.IndirectRef); ok {
		return true
	}
	return isComposite(obj)
}
