package geom

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/taigrr/tableau/pkg/math3d"
)

// Well-known attribute names.
const (
	AttrPosition   = "position"
	AttrNormal     = "normal"
	AttrUV         = "uv"
	AttrColor      = "color"
	AttrSkinIndex  = "skinIndex"
	AttrSkinWeight = "skinWeight"
)

// ErrAttributeCount is returned by Validate when attribute item counts disagree.
var ErrAttributeCount = errors.New("geom: attribute item counts differ")

var nextID atomic.Uint64

// Group is a sub-range of the index (or vertex) data drawn with one material.
type Group struct {
	Start         int
	Count         int
	MaterialIndex int
}

// DrawRange limits which part of the data is drawn. A negative Count means
// "through the end of the data".
type DrawRange struct {
	Start int
	Count int
}

// Geometry owns the vertex attributes of a drawable.
type Geometry struct {
	Name string

	// Groups split the data for multi-material objects.
	Groups []Group

	DrawRange DrawRange

	// MorphAttributes holds morph targets keyed by the attribute they
	// replace ("position" or "normal"). Targets are absolute values, not
	// offsets from the base attribute.
	MorphAttributes map[string][]*Attribute

	// Instanced marks the geometry for instanced draws. InstanceCount is the
	// number of instances drawn; zero draws nothing.
	Instanced     bool
	InstanceCount int

	id         uint64
	attributes map[string]*Attribute
	index      *Index
	structure  int

	box       math3d.AABB
	sphere    math3d.Sphere
	boundsKey boundsKey

	onDispose []func(*Geometry)
	disposed  bool
}

type boundsKey struct {
	attr    *Attribute
	version int
	valid   bool
}

// New creates an empty geometry.
func New() *Geometry {
	return &Geometry{
		id:         nextID.Add(1),
		attributes: make(map[string]*Attribute),
		DrawRange:  DrawRange{Start: 0, Count: -1},
	}
}

// ID returns the unique geometry id.
func (g *Geometry) ID() uint64 { return g.id }

// SetAttribute adds or replaces a named attribute.
func (g *Geometry) SetAttribute(name string, a *Attribute) *Geometry {
	g.attributes[name] = a
	g.structure++
	return g
}

// DeleteAttribute removes a named attribute.
func (g *Geometry) DeleteAttribute(name string) {
	if _, ok := g.attributes[name]; ok {
		delete(g.attributes, name)
		g.structure++
	}
}

// Attribute returns the named attribute or nil.
func (g *Geometry) Attribute(name string) *Attribute {
	return g.attributes[name]
}

// AttributeNames returns the attribute names in sorted order.
func (g *Geometry) AttributeNames() []string {
	names := make([]string, 0, len(g.attributes))
	for n := range g.attributes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Position returns the position attribute.
func (g *Geometry) Position() *Attribute {
	return g.attributes[AttrPosition]
}

// SetIndex sets the element index.
func (g *Geometry) SetIndex(ix *Index) *Geometry {
	g.index = ix
	g.structure++
	return g
}

// Index returns the element index or nil.
func (g *Geometry) Index() *Index {
	return g.index
}

// AddGroup appends a draw group.
func (g *Geometry) AddGroup(start, count, materialIndex int) {
	g.Groups = append(g.Groups, Group{Start: start, Count: count, MaterialIndex: materialIndex})
}

// Version changes whenever attribute or index data, or the set of
// attributes, changes.
func (g *Geometry) Version() int {
	v := g.structure
	for _, a := range g.attributes {
		v += a.Version
	}
	if g.index != nil {
		v += g.index.Version
	}
	return v
}

// Validate checks that every per-vertex attribute has the same item count.
// Non-indexed geometry only requires the extras to cover every position.
func (g *Geometry) Validate() error {
	pos := g.Position()
	if pos == nil {
		return nil
	}
	want := pos.Count()
	for _, name := range g.AttributeNames() {
		a := g.attributes[name]
		if a.Instanced() {
			continue
		}
		n := a.Count()
		if n == want || (g.index == nil && n > want) {
			continue
		}
		return fmt.Errorf("%w: %q has %d items, position has %d", ErrAttributeCount, name, n, want)
	}
	return nil
}

func (g *Geometry) boundsCurrent() bool {
	pos := g.Position()
	k := g.boundsKey
	return k.valid && k.attr == pos && pos != nil && k.version == pos.Version
}

func (g *Geometry) computeBounds() {
	pos := g.Position()
	g.box = math3d.EmptyAABB()
	g.sphere = math3d.Sphere{}
	g.boundsKey = boundsKey{attr: pos, valid: true}
	if pos == nil {
		return
	}
	g.boundsKey.version = pos.Version

	n := pos.Count()
	for i := range n {
		g.box = g.box.ExpandByPoint(vec3At(pos, i))
	}
	if n == 0 {
		return
	}

	center := g.box.Center()
	var maxSq float64
	for i := range n {
		maxSq = math.Max(maxSq, vec3At(pos, i).Sub(center).LenSq())
	}
	g.sphere = math3d.Sphere{Center: center, Radius: math.Sqrt(maxSq)}
}

// BoundingBox returns the cached bounding box, recomputing it if the
// position data changed since the last call.
func (g *Geometry) BoundingBox() math3d.AABB {
	if !g.boundsCurrent() {
		g.computeBounds()
	}
	return g.box
}

// BoundingSphere returns the cached bounding sphere, recomputing it if the
// position data changed since the last call.
func (g *Geometry) BoundingSphere() math3d.Sphere {
	if !g.boundsCurrent() {
		g.computeBounds()
	}
	return g.sphere
}

// ComputeVertexNormals averages face normals into a normal attribute.
func (g *Geometry) ComputeVertexNormals() {
	pos := g.Position()
	if pos == nil {
		return
	}
	normals := make([]math3d.Vec3, pos.Count())

	accumulate := func(a, b, c int) {
		v0, v1, v2 := vec3At(pos, a), vec3At(pos, b), vec3At(pos, c)
		// Unnormalized so larger faces weigh more.
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}

	if g.index != nil {
		ix := g.index.Data
		for i := 0; i+2 < len(ix); i += 3 {
			accumulate(int(ix[i]), int(ix[i+1]), int(ix[i+2]))
		}
	} else {
		for i := 0; i+2 < len(normals); i += 3 {
			accumulate(i, i+1, i+2)
		}
	}

	data := make([]float32, 0, len(normals)*3)
	for _, n := range normals {
		n = n.Normalize()
		data = append(data, float32(n.X), float32(n.Y), float32(n.Z))
	}

	if existing := g.Attribute(AttrNormal); existing != nil && len(existing.Data) == len(data) {
		copy(existing.Data, data)
		existing.NeedsUpdate()
		return
	}
	g.SetAttribute(AttrNormal, NewAttribute(data, 3))
}

// OnDispose registers fn to run when the geometry is disposed.
func (g *Geometry) OnDispose(fn func(*Geometry)) {
	g.onDispose = append(g.onDispose, fn)
}

// Dispose notifies observers that the geometry's GPU resources can be
// released. Calling it more than once has no further effect.
func (g *Geometry) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	for _, fn := range g.onDispose {
		fn(g)
	}
	g.onDispose = nil
}

func vec3At(a *Attribute, i int) math3d.Vec3 {
	d := a.Get(i)
	v := math3d.Vec3{X: float64(d[0])}
	if len(d) > 1 {
		v.Y = float64(d[1])
	}
	if len(d) > 2 {
		v.Z = float64(d[2])
	}
	return v
}
