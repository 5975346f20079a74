package models

import (
	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

// Bounds returns the world-space box around every drawable under root.
// World matrices are brought up to date first.
func Bounds(root scene.Node) math3d.AABB {
	root.Obj().UpdateMatrixWorld(false)
	box := math3d.EmptyAABB()
	walk(root, func(n scene.Node) {
		g := n.Obj().Geometry
		if g == nil || g.Position() == nil {
			return
		}
		b := g.BoundingBox().Transform(n.Obj().MatrixWorld())
		if b.IsEmpty() {
			return
		}
		box = box.ExpandByPoint(b.Min).ExpandByPoint(b.Max)
	})
	return box
}

// Fit centers root on the origin and scales it uniformly so its largest
// dimension equals size. Any earlier transform of root is replaced. Empty
// scenes are left alone.
func Fit(root *scene.Group, size float64) {
	root.SetPosition(math3d.Zero3())
	root.SetRotation(math3d.IdentityQuat())
	root.SetScale(math3d.V3(1, 1, 1))
	box := Bounds(root)
	if box.IsEmpty() {
		return
	}
	dim := box.Size()
	largest := max(dim.X, dim.Y, dim.Z)
	if largest <= 0 {
		return
	}
	s := size / largest
	root.SetScale(math3d.V3(s, s, s))
	root.SetPosition(box.Center().Scale(-s))
	root.UpdateMatrixWorld(false)
}

// Stats counts the drawables, vertices and triangles under root.
func Stats(root scene.Node) (meshes, vertices, triangles int) {
	walk(root, func(n scene.Node) {
		m, ok := n.(*scene.Mesh)
		if !ok || m.Geometry == nil || m.Geometry.Position() == nil {
			return
		}
		meshes++
		vertices += m.Geometry.Position().Count()
		triangles += triangleCount(m.Geometry, m.DrawMode)
	})
	return meshes, vertices, triangles
}

func triangleCount(g *geom.Geometry, mode scene.DrawMode) int {
	n := g.Position().Count()
	if ix := g.Index(); ix != nil {
		n = ix.Count()
	}
	if mode == scene.TrianglesDrawMode {
		return n / 3
	}
	return max(0, n-2)
}

func walk(n scene.Node, fn func(scene.Node)) {
	fn(n)
	for _, c := range n.Obj().Children() {
		walk(c, fn)
	}
}
