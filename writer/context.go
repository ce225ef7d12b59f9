package writer

import (
	"fmt"

	"github.com/tsawler/pdfcos/core"
)

// Context numbers the nodes of one write. It is created per write call
// and must not be shared between concurrent writes.
//
// Each node receives at most one object ID. Fresh numbers are handed out
// in increasing order starting at the first free number; numbers
// registered as existing raise that floor so fresh numbers never collide
// with them.
type Context struct {
	next     int
	ids      map[core.Object]core.ObjectID
	objects  map[int]core.Object
	existing map[int]bool
	visited  map[core.Object]bool
	offsets  map[int]int64
}

// NewContext creates a context whose fresh numbers start at firstFree.
// Numbers below 1 are raised to 1, since object 0 heads the free list.
func NewContext(firstFree int) *Context {
	if firstFree < 1 {
		firstFree = 1
	}
	return &Context{
		next:     firstFree,
		ids:      make(map[core.Object]core.ObjectID),
		objects:  make(map[int]core.Object),
		existing: make(map[int]bool),
		visited:  make(map[core.Object]bool),
		offsets:  make(map[int]int64),
	}
}

// NumberFor returns the ID of obj, allocating the next free number on
// first use. The bool reports whether the number was freshly allocated.
func (c *Context) NumberFor(obj core.Object) (core.ObjectID, bool) {
	if id, ok := c.ids[obj]; ok {
		return id, false
	}
	id := core.ObjectID{Number: c.allocate()}
	c.ids[obj] = id
	c.objects[id.Number] = obj
	return id, true
}

// RegisterExisting binds obj to an ID taken from the base file without
// consuming a fresh number. Binding a number to two nodes, or a node to
// two IDs, is a programming error and panics.
func (c *Context) RegisterExisting(id core.ObjectID, obj core.Object) {
	if bound, ok := c.objects[id.Number]; ok && bound != obj {
		panic(fmt.Sprintf("writer: object number %d is already bound to another node", id.Number))
	}
	if prev, ok := c.ids[obj]; ok && prev != id {
		panic(fmt.Sprintf("writer: node already numbered %d %d, cannot register as %d %d",
			prev.Number, prev.Generation, id.Number, id.Generation))
	}
	c.ids[obj] = id
	c.objects[id.Number] = obj
	c.existing[id.Number] = true
	if id.Number >= c.next {
		c.next = id.Number + 1
	}
}

// Lookup returns the ID already given to obj.
func (c *Context) Lookup(obj core.Object) (core.ObjectID, bool) {
	id, ok := c.ids[obj]
	return id, ok
}

// IsExisting reports whether num was registered from the base file.
func (c *Context) IsExisting(num int) bool {
	return c.existing[num]
}

// Visit marks obj as scheduled for output. It returns true the first time.
func (c *Context) Visit(obj core.Object) bool {
	if c.visited[obj] {
		return false
	}
	c.visited[obj] = true
	return true
}

// Objects returns a copy of the number to node map.
func (c *Context) Objects() map[int]core.Object {
	out := make(map[int]core.Object, len(c.objects))
	for n, obj := range c.objects {
		out[n] = obj
	}
	return out
}

// Offsets returns a copy of the byte offset of every emitted body.
func (c *Context) Offsets() map[int]int64 {
	out := make(map[int]int64, len(c.offsets))
	for n, off := range c.offsets {
		out[n] = off
	}
	return out
}

// NextFree returns the number the next allocation would use.
func (c *Context) NextFree() int {
	return c.next
}

func (c *Context) allocate() int {
	n := c.next
	c.next++
	return n
}

func (c *Context) generation(num int) int {
	if obj, ok := c.objects[num]; ok {
		return c.ids[obj].Generation
	}
	return 0
}

func (c *Context) setOffset(num int, off int64) {
	c.offsets[num] = off
}
