// Package geom holds vertex data for drawable objects: named float
// attributes, an optional index, draw groups and cached bounding volumes.
package geom

// Attribute is a flat array of per-vertex (or per-instance) float data.
type Attribute struct {
	Data       []float32
	ItemSize   int
	Normalized bool

	// Divisor > 0 marks an instanced attribute: one item is consumed per
	// Divisor instances instead of per vertex.
	Divisor int

	// Version is bumped by NeedsUpdate; the renderer re-uploads the buffer
	// whenever it sees a newer version.
	Version int
}

// NewAttribute wraps data with the given item size.
func NewAttribute(data []float32, itemSize int) *Attribute {
	return &Attribute{Data: data, ItemSize: itemSize}
}

// NewInstancedAttribute creates a per-instance attribute.
func NewInstancedAttribute(data []float32, itemSize, divisor int) *Attribute {
	if divisor < 1 {
		divisor = 1
	}
	return &Attribute{Data: data, ItemSize: itemSize, Divisor: divisor}
}

// Count returns the number of items.
func (a *Attribute) Count() int {
	if a == nil || a.ItemSize == 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

// Instanced reports whether the attribute advances per instance.
func (a *Attribute) Instanced() bool {
	return a.Divisor > 0
}

// NeedsUpdate flags the data as changed.
func (a *Attribute) NeedsUpdate() {
	a.Version++
}

// Set writes the components of item i.
func (a *Attribute) Set(i int, v ...float32) {
	copy(a.Data[i*a.ItemSize:(i+1)*a.ItemSize], v)
}

// Get returns a view of item i.
func (a *Attribute) Get(i int) []float32 {
	return a.Data[i*a.ItemSize : (i+1)*a.ItemSize]
}

// Index is an element index buffer.
type Index struct {
	Data    []uint32
	Version int
}

// NewIndex wraps index data.
func NewIndex(data []uint32) *Index {
	return &Index{Data: data}
}

// Count returns the number of indices.
func (ix *Index) Count() int {
	if ix == nil {
		return 0
	}
	return len(ix.Data)
}

// NeedsUpdate flags the data as changed.
func (ix *Index) NeedsUpdate() {
	ix.Version++
}
