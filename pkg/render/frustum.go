package render

import (
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

// Frustum represents the 6 planes of a view frustum.
// Planes are ordered: Left, Right, Bottom, Top, Near, Far.
// Each plane's normal points inward (toward the center of the frustum).
type Frustum struct {
	Planes [6]math3d.Plane
}

// FrustumPlane indices for clarity.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustumFromMatrix extracts frustum planes from a view-projection matrix
// with the Gribb/Hartmann method. The resulting planes have normals
// pointing inward.
func NewFrustumFromMatrix(m math3d.Mat4) Frustum {
	var f Frustum

	// For column-major m, row i element j is at m[i + j*4].
	row := func(i int) (float64, float64, float64, float64) {
		return m[i], m[i+4], m[i+8], m[i+12]
	}
	wx, wy, wz, ww := row(3)
	for i, sign := range [...]struct {
		row  int
		sign float64
	}{
		FrustumLeft:   {0, 1},
		FrustumRight:  {0, -1},
		FrustumBottom: {1, 1},
		FrustumTop:    {1, -1},
		FrustumNear:   {2, 1},
		FrustumFar:    {2, -1},
	} {
		x, y, z, w := row(sign.row)
		f.Planes[i] = math3d.Plane{
			Normal: math3d.V3(wx+sign.sign*x, wy+sign.sign*y, wz+sign.sign*z),
			D:      ww + sign.sign*w,
		}
		f.Planes[i].Normalize()
	}
	return f
}

// IntersectAABB tests if the AABB intersects or is inside the frustum.
// Uses the "positive vertex" optimization for faster rejection.
func (f Frustum) IntersectAABB(box math3d.AABB) bool {
	for i := range f.Planes {
		plane := f.Planes[i]

		// The corner furthest along the normal; if it is outside, all are.
		pVertex := math3d.V3(
			selectComponent(plane.Normal.X >= 0, box.Max.X, box.Min.X),
			selectComponent(plane.Normal.Y >= 0, box.Max.Y, box.Min.Y),
			selectComponent(plane.Normal.Z >= 0, box.Max.Z, box.Min.Z),
		)
		if plane.DistanceToPoint(pVertex) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint tests if a point is inside the frustum.
func (f Frustum) ContainsPoint(p math3d.Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere tests if a sphere intersects the frustum.
func (f Frustum) IntersectsSphere(s math3d.Sphere) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// IntersectsObject tests the object's geometry bounding sphere, moved into
// world space, against the frustum. Objects without geometry never
// intersect.
func (f Frustum) IntersectsObject(o *scene.Object) bool {
	if o.Geometry == nil {
		return false
	}
	return f.IntersectsSphere(o.Geometry.BoundingSphere().Transform(o.MatrixWorld()))
}

// IntersectsSprite tests the sprite's unit quad bounds against the frustum.
func (f Frustum) IntersectsSprite(s *scene.Sprite) bool {
	return f.IntersectsSphere(s.BoundingSphere())
}

// selectComponent is a branchless conditional selection helper.
func selectComponent(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
