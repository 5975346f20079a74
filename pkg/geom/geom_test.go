package geom

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/math3d"
)

func TestBoxLayout(t *testing.T) {
	g := NewBox(2, 4, 6)

	assert.Equal(t, 24, g.Position().Count())
	assert.Equal(t, 36, g.Index().Count())
	require.Len(t, g.Groups, 6)
	for i, grp := range g.Groups {
		assert.Equal(t, i*6, grp.Start)
		assert.Equal(t, 6, grp.Count)
		assert.Equal(t, i, grp.MaterialIndex)
	}

	box := g.BoundingBox()
	assert.Equal(t, math3d.V3(-1, -2, -3), box.Min)
	assert.Equal(t, math3d.V3(1, 2, 3), box.Max)
	assert.NoError(t, g.Validate())
}

func TestBoxNormalsPointOutward(t *testing.T) {
	g := NewBox(1, 1, 1)
	pos, norm := g.Position(), g.Attribute(AttrNormal)
	for i := range pos.Count() {
		p, n := vec3At(pos, i), vec3At(norm, i)
		assert.Greater(t, p.Dot(n), 0.0, "vertex %d", i)
	}
}

func TestBoundsCachedUntilPositionsChange(t *testing.T) {
	g := NewPlane(2, 2)
	s1 := g.BoundingSphere()
	assert.InDelta(t, math.Sqrt2, s1.Radius, 1e-6)

	pos := g.Position()
	pos.Set(0, -10, 1, 0)
	assert.Equal(t, s1, g.BoundingSphere(), "stale until NeedsUpdate")

	pos.NeedsUpdate()
	assert.Equal(t, -10.0, g.BoundingBox().Min.X)
	assert.Greater(t, g.BoundingSphere().Radius, s1.Radius)
}

func TestValidate(t *testing.T) {
	g := New()
	g.SetAttribute(AttrPosition, NewAttribute(make([]float32, 9), 3))
	g.SetAttribute(AttrUV, NewAttribute(make([]float32, 4), 2))
	err := g.Validate()
	assert.True(t, errors.Is(err, ErrAttributeCount))

	g.SetAttribute(AttrUV, NewAttribute(make([]float32, 8), 2))
	assert.NoError(t, g.Validate(), "non-indexed extras may be longer")

	g.SetIndex(NewIndex([]uint32{0, 1, 2}))
	assert.Error(t, g.Validate(), "indexed geometry needs equal counts")

	g.SetAttribute(AttrUV, NewInstancedAttribute(make([]float32, 2), 2, 1))
	assert.NoError(t, g.Validate(), "instanced attributes are exempt")
}

func TestVersion(t *testing.T) {
	g := NewPlane(1, 1)
	v := g.Version()
	g.Position().NeedsUpdate()
	assert.NotEqual(t, v, g.Version())

	v = g.Version()
	g.DeleteAttribute(AttrUV)
	assert.NotEqual(t, v, g.Version())
	assert.Equal(t, []string{AttrNormal, AttrPosition}, g.AttributeNames())
}

func TestComputeVertexNormals(t *testing.T) {
	g := NewPlane(1, 1)
	g.DeleteAttribute(AttrNormal)
	g.ComputeVertexNormals()

	n := g.Attribute(AttrNormal)
	require.NotNil(t, n)
	for i := range n.Count() {
		assert.InDelta(t, 1, n.Get(i)[2], 1e-6)
	}
}

func TestDisposeOnce(t *testing.T) {
	g := New()
	calls := 0
	g.OnDispose(func(*Geometry) { calls++ })
	g.Dispose()
	g.Dispose()
	assert.Equal(t, 1, calls)
}

func TestSphereRadius(t *testing.T) {
	g := NewSphere(3, 8, 6)
	assert.InDelta(t, 3, g.BoundingSphere().Radius, 1e-5)
	assert.NoError(t, g.Validate())
}
