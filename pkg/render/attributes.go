package render

import (
	"github.com/taigrr/tableau/pkg/geom"
)

// buffer is a device buffer holding an attribute or index.
type buffer struct {
	handle  Handle
	version int
	size    int
}

// attributes keeps one device buffer per attribute and index, uploading
// again when the source version changes. Attributes may be shared between
// geometries, so their buffers are reference counted.
type attributes struct {
	dev     Device
	buffers map[*geom.Attribute]*buffer
	indices map[*geom.Index]*buffer
	refs    map[*geom.Attribute]int
}

func newAttributes(dev Device) *attributes {
	return &attributes{
		dev:     dev,
		buffers: map[*geom.Attribute]*buffer{},
		indices: map[*geom.Index]*buffer{},
		refs:    map[*geom.Attribute]int{},
	}
}

func (a *attributes) get(attr *geom.Attribute) *buffer {
	return a.buffers[attr]
}

func (a *attributes) update(attr *geom.Attribute) *buffer {
	b, ok := a.buffers[attr]
	if !ok {
		b = &buffer{handle: a.dev.CreateBuffer(), size: len(attr.Data), version: attr.Version}
		a.dev.BufferVertices(b.handle, attr.Data)
		a.buffers[attr] = b
		return b
	}
	if b.version != attr.Version {
		b.handle = a.grow(b, len(attr.Data))
		a.dev.BufferVertices(b.handle, attr.Data)
		b.version = attr.Version
	}
	return b
}

func (a *attributes) updateIndex(ix *geom.Index) *buffer {
	b, ok := a.indices[ix]
	if !ok {
		b = &buffer{handle: a.dev.CreateBuffer(), size: len(ix.Data), version: ix.Version}
		a.dev.BufferIndices(b.handle, ix.Data)
		a.indices[ix] = b
		return b
	}
	if b.version != ix.Version {
		b.handle = a.grow(b, len(ix.Data))
		a.dev.BufferIndices(b.handle, ix.Data)
		b.version = ix.Version
	}
	return b
}

// grow replaces the buffer when the data no longer fits.
func (a *attributes) grow(b *buffer, size int) Handle {
	if size <= b.size {
		return b.handle
	}
	Logger().Debug("reallocating buffer", "from", b.size, "to", size)
	a.dev.DeleteBuffer(b.handle)
	b.size = size
	return a.dev.CreateBuffer()
}

func (a *attributes) retain(attr *geom.Attribute) {
	a.refs[attr]++
}

// release drops one reference and frees the buffer once no geometry
// holds attr.
func (a *attributes) release(attr *geom.Attribute) {
	if a.refs[attr] > 1 {
		a.refs[attr]--
		return
	}
	delete(a.refs, attr)
	a.remove(attr)
}

func (a *attributes) remove(attr *geom.Attribute) {
	if b, ok := a.buffers[attr]; ok {
		a.dev.DeleteBuffer(b.handle)
		delete(a.buffers, attr)
	}
}

func (a *attributes) removeIndex(ix *geom.Index) {
	if b, ok := a.indices[ix]; ok {
		a.dev.DeleteBuffer(b.handle)
		delete(a.indices, ix)
	}
}

func (a *attributes) dispose() {
	for attr := range a.buffers {
		a.remove(attr)
	}
	for ix := range a.indices {
		a.removeIndex(ix)
	}
	clear(a.refs)
}
