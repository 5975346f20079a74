// Package scene holds the retained scene graph: a tree of nodes with local
// transforms, lazily recomputed world matrices, and the drawable, light and
// camera kinds the renderer dispatches on.
package scene

import (
	"sync/atomic"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// Node is any scene graph element. The set of implementations is closed:
// only types in this package satisfy it.
type Node interface {
	Obj() *Object
	node()
}

// RenderHook runs immediately before or after an object is drawn.
type RenderHook func(sc *Scene, cam *Camera, g *geom.Geometry, m *material.Material, group *geom.Group)

var nextObjectID atomic.Uint64

// Object is the state shared by every node: hierarchy, transform, flags and
// the optional geometry and material slots of drawables.
type Object struct {
	Name string

	Visible       bool
	Layers        Layers
	FrustumCulled bool
	CastShadow    bool
	ReceiveShadow bool
	RenderOrder   int

	// MatrixAutoUpdate recomposes the local matrix from position, rotation
	// and scale whenever one of them changes.
	MatrixAutoUpdate bool

	Geometry  *geom.Geometry
	Materials []*material.Material

	id       uint64
	self     Node
	parent   *Object
	children []Node

	position math3d.Vec3
	rotation math3d.Quat
	scale    math3d.Vec3

	matrix       math3d.Mat4
	matrixWorld  math3d.Mat4
	localDirty   bool
	worldDirty   bool
	worldUpdates int
	worldVersion uint64

	beforeRender []RenderHook
	afterRender  []RenderHook
}

func (o *Object) init(self Node) {
	o.id = nextObjectID.Add(1)
	o.self = self
	o.Visible = true
	o.Layers = DefaultLayers
	o.FrustumCulled = true
	o.MatrixAutoUpdate = true
	o.rotation = math3d.IdentityQuat()
	o.scale = math3d.V3(1, 1, 1)
	o.matrix = math3d.Identity()
	o.matrixWorld = math3d.Identity()
	o.worldDirty = true
}

// Obj returns the object itself.
func (o *Object) Obj() *Object { return o }

// ID returns the unique object id.
func (o *Object) ID() uint64 { return o.id }

// Node returns the concrete node that owns this object.
func (o *Object) Node() Node { return o.self }

// Parent returns the parent object, or nil for a root.
func (o *Object) Parent() *Object { return o.parent }

// Children returns the child nodes in insertion order.
func (o *Object) Children() []Node { return o.children }

// Add attaches children, detaching them from any previous parent.
func (o *Object) Add(children ...Node) {
	for _, c := range children {
		co := c.Obj()
		if co == o {
			continue
		}
		if co.parent != nil {
			co.parent.Remove(c)
		}
		co.parent = o
		co.worldDirty = true
		o.children = append(o.children, c)
	}
}

// Remove detaches children.
func (o *Object) Remove(children ...Node) {
	for _, c := range children {
		for i, existing := range o.children {
			if existing.Obj() == c.Obj() {
				o.children = append(o.children[:i], o.children[i+1:]...)
				c.Obj().parent = nil
				c.Obj().worldDirty = true
				break
			}
		}
	}
}

// Traverse calls fn for the object and all descendants, depth first.
func (o *Object) Traverse(fn func(Node)) {
	fn(o.self)
	for _, c := range o.children {
		c.Obj().Traverse(fn)
	}
}

// FindByName returns the first descendant (or self) with the given name.
func (o *Object) FindByName(name string) Node {
	if o.Name == name {
		return o.self
	}
	for _, c := range o.children {
		if n := c.Obj().FindByName(name); n != nil {
			return n
		}
	}
	return nil
}

// Position returns the local position.
func (o *Object) Position() math3d.Vec3 { return o.position }

// Rotation returns the local rotation.
func (o *Object) Rotation() math3d.Quat { return o.rotation }

// Scale returns the local scale.
func (o *Object) Scale() math3d.Vec3 { return o.scale }

// SetPosition sets the local position.
func (o *Object) SetPosition(p math3d.Vec3) {
	o.position = p
	o.localDirty = true
}

// SetRotation sets the local rotation.
func (o *Object) SetRotation(q math3d.Quat) {
	o.rotation = q
	o.localDirty = true
}

// SetRotationEuler sets the local rotation from pitch, yaw and roll
// (radians, XYZ order).
func (o *Object) SetRotationEuler(pitch, yaw, roll float64) {
	o.SetRotation(math3d.QuatFromEuler(pitch, yaw, roll))
}

// SetScale sets the local scale.
func (o *Object) SetScale(s math3d.Vec3) {
	o.scale = s
	o.localDirty = true
}

// LookAt rotates the object so its +Z axis faces target (in parent space).
func (o *Object) LookAt(target math3d.Vec3) {
	o.SetRotation(math3d.QuatFromRotationMatrix(math3d.LookAt(target, o.position, math3d.Up()).Transpose()))
}

// SetMatrix replaces the local matrix and disables auto update.
func (o *Object) SetMatrix(m math3d.Mat4) {
	o.matrix = m
	o.MatrixAutoUpdate = false
	o.localDirty = false
	o.worldDirty = true
}

// Matrix returns the local matrix.
func (o *Object) Matrix() math3d.Mat4 { return o.matrix }

// MatrixWorld returns the world matrix as of the last update.
func (o *Object) MatrixWorld() math3d.Mat4 { return o.matrixWorld }

// WorldPosition returns the translation of the world matrix.
func (o *Object) WorldPosition() math3d.Vec3 { return o.matrixWorld.Translation() }

// WorldUpdates counts how many times the world matrix was recomputed.
func (o *Object) WorldUpdates() int { return o.worldUpdates }

// WorldVersion changes every time the world matrix is recomputed.
func (o *Object) WorldVersion() uint64 { return o.worldVersion }

// UpdateMatrix recomposes the local matrix if the transform changed.
func (o *Object) UpdateMatrix() {
	if !o.localDirty {
		return
	}
	o.matrix = math3d.Compose(o.position, o.rotation, o.scale)
	o.localDirty = false
	o.worldDirty = true
}

// UpdateMatrixWorld brings the world matrices of the object and its
// descendants up to date. Clean nodes below clean ancestors are visited but
// not recomputed. force recomputes unconditionally.
func (o *Object) UpdateMatrixWorld(force bool) {
	if o.MatrixAutoUpdate {
		o.UpdateMatrix()
	}
	if o.worldDirty || force {
		if o.parent == nil {
			o.matrixWorld = o.matrix
		} else {
			o.matrixWorld = o.parent.matrixWorld.Mul(o.matrix)
		}
		o.worldDirty = false
		o.worldUpdates++
		o.worldVersion++
		force = true
	}
	for _, c := range o.children {
		c.Obj().UpdateMatrixWorld(force)
	}
}

// OnBeforeRender registers a hook run before each draw of the object.
func (o *Object) OnBeforeRender(fn RenderHook) {
	o.beforeRender = append(o.beforeRender, fn)
}

// OnAfterRender registers a hook run after each draw of the object.
func (o *Object) OnAfterRender(fn RenderHook) {
	o.afterRender = append(o.afterRender, fn)
}

// FireBeforeRender runs the before-render hooks.
func (o *Object) FireBeforeRender(sc *Scene, cam *Camera, g *geom.Geometry, m *material.Material, group *geom.Group) {
	for _, fn := range o.beforeRender {
		fn(sc, cam, g, m, group)
	}
}

// FireAfterRender runs the after-render hooks.
func (o *Object) FireAfterRender(sc *Scene, cam *Camera, g *geom.Geometry, m *material.Material, group *geom.Group) {
	for _, fn := range o.afterRender {
		fn(sc, cam, g, m, group)
	}
}

// Material returns the first material slot, or nil.
func (o *Object) Material() *material.Material {
	if len(o.Materials) == 0 {
		return nil
	}
	return o.Materials[0]
}

// Layers is a 32-bit membership mask.
type Layers uint32

// DefaultLayers is layer 0 only.
const DefaultLayers Layers = 1

// Set makes layer n the only membership.
func (l *Layers) Set(n int) { *l = 1 << uint(n) }

// Enable adds membership of layer n.
func (l *Layers) Enable(n int) { *l |= 1 << uint(n) }

// Disable removes membership of layer n.
func (l *Layers) Disable(n int) { *l &^= 1 << uint(n) }

// Test reports whether the two masks share a layer.
func (l Layers) Test(other Layers) bool { return l&other != 0 }
