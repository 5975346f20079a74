package math3d

// Plane represents a plane in 3D space using the equation: Ax + By + Cz + D = 0
// where (A, B, C) is the normal and D is the distance from origin.
type Plane struct {
	Normal Vec3
	D      float64
}

// NewPlane creates a plane from a normal and the constant D.
func NewPlane(normal Vec3, d float64) Plane {
	return Plane{Normal: normal, D: d}
}

// Normalize normalizes the plane equation so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Scale(1.0 / l)
	p.D /= l
}

// DistanceToPoint returns the signed distance from the plane to a point.
// Positive = in front (same side as normal), negative = behind.
func (p Plane) DistanceToPoint(point Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Transform returns the plane moved by m. normalMatrix must be NormalMatrix(m).
func (p Plane) Transform(m Mat4, normalMatrix Mat3) Plane {
	ref := m.MulVec3(p.Normal.Scale(-p.D))
	n := normalMatrix.MulVec3(p.Normal).Normalize()
	return Plane{Normal: n, D: -ref.Dot(n)}
}
