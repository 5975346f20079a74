package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

func assertMat4Near(t *testing.T, want, got math3d.Mat4) {
	t.Helper()
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-9, "element %d", i)
	}
}

func buildChain() (*Scene, *Group, *Group, *Mesh) {
	sc := NewScene()
	a := NewGroup()
	a.SetPosition(math3d.V3(1, 0, 0))
	a.SetRotationEuler(0, math.Pi/4, 0)

	b := NewGroup()
	b.SetScale(math3d.V3(2, 2, 2))
	b.SetPosition(math3d.V3(0, 3, 0))

	m := NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff)))
	m.SetPosition(math3d.V3(0, 0, -1))

	sc.Add(a)
	a.Add(b)
	b.Add(m)
	return sc, a, b, m
}

func TestWorldMatrixConsistency(t *testing.T) {
	sc, _, _, _ := buildChain()
	sc.UpdateMatrixWorld(false)

	sc.Traverse(func(n Node) {
		o := n.Obj()
		if o.Parent() == nil {
			assertMat4Near(t, o.Matrix(), o.MatrixWorld())
			return
		}
		assertMat4Near(t, o.Parent().MatrixWorld().Mul(o.Matrix()), o.MatrixWorld())
	})
}

func TestWorldMatrixNotRecomputedWhenClean(t *testing.T) {
	sc, a, b, m := buildChain()
	sc.UpdateMatrixWorld(false)
	require.Equal(t, 1, m.WorldUpdates())

	sc.UpdateMatrixWorld(false)
	assert.Equal(t, 1, a.WorldUpdates())
	assert.Equal(t, 1, b.WorldUpdates())
	assert.Equal(t, 1, m.WorldUpdates(), "clean subtree must not be recomputed")

	b.SetPosition(math3d.V3(0, 4, 0))
	sc.UpdateMatrixWorld(false)
	assert.Equal(t, 1, a.WorldUpdates(), "ancestor unchanged")
	assert.Equal(t, 2, b.WorldUpdates())
	assert.Equal(t, 2, m.WorldUpdates(), "descendant follows parent change")
	assert.InDelta(t, 4, b.WorldPosition().Y, 1e-9)
}

func TestReparent(t *testing.T) {
	g1, g2 := NewGroup(), NewGroup()
	child := NewGroup()
	g1.Add(child)
	g2.Add(child)

	assert.Empty(t, g1.Children())
	require.Len(t, g2.Children(), 1)
	assert.Same(t, &g2.Object, child.Parent())

	g2.Remove(child)
	assert.Nil(t, child.Parent())
}

func TestFindByName(t *testing.T) {
	sc, _, b, _ := buildChain()
	b.Name = "arm"
	assert.Equal(t, Node(b), sc.FindByName("arm"))
	assert.Nil(t, sc.FindByName("missing"))
}

func TestLayers(t *testing.T) {
	var l Layers
	l.Set(2)
	assert.False(t, l.Test(DefaultLayers))
	l.Enable(0)
	assert.True(t, l.Test(DefaultLayers))
	l.Disable(0)
	assert.False(t, l.Test(DefaultLayers))
}

func TestCameraViewMatrixFollowsWorld(t *testing.T) {
	cam := NewPerspectiveCamera(math.Pi/3, 1, 0.1, 100)
	cam.SetPosition(math3d.V3(0, 0, 10))
	cam.UpdateMatrixWorld(false)

	p := cam.ViewMatrix().MulVec3(math3d.V3(0, 0, 0))
	assert.InDelta(t, -10, p.Z, 1e-9)

	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.UpdateMatrixWorld(false)
	p = cam.ViewMatrix().MulVec3(math3d.V3(0, 0, 0))
	assert.InDelta(t, -5, p.Z, 1e-9)
}

func TestCameraLookAt(t *testing.T) {
	cam := NewCamera()
	cam.SetPosition(math3d.V3(10, 0, 0))
	cam.LookAt(math3d.Zero3())
	cam.UpdateMatrixWorld(false)

	fwd := cam.Forward()
	assert.InDelta(t, -1, fwd.X, 1e-9)
	assert.InDelta(t, 0, fwd.Z, 1e-9)

	right := cam.RightDirection()
	assert.InDelta(t, 0, right.X, 1e-9)
	assert.InDelta(t, 0, right.Y, 1e-9)
	assert.InDelta(t, -1, right.Z, 1e-9)

	x, y, _, ok := cam.WorldToScreen(math3d.Zero3(), 100, 50)
	require.True(t, ok)
	assert.InDelta(t, 50, x, 1e-6)
	assert.InDelta(t, 25, y, 1e-6)
}

func TestOrthographicBounds(t *testing.T) {
	cam := NewOrthographicCamera(-2, 2, 1, -1, 0.1, 100)
	cam.SetBounds(-4, 4, 2, -2)
	assert.Equal(t, 4.0, cam.Right)
	assert.Equal(t, -4.0, cam.Left)

	p := cam.ProjectionMatrix().MulVec3(math3d.V3(4, 2, -1))
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 1, p.Y, 1e-9)

	cam.SetZoom(2)
	p = cam.ProjectionMatrix().MulVec3(math3d.V3(2, 1, -1))
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 1, p.Y, 1e-9)
}

func TestSkeletonUpdateAndTextureDim(t *testing.T) {
	bones := make([]*Bone, 130)
	for i := range bones {
		bones[i] = NewBone()
	}
	sk := NewSkeleton(bones, nil)
	assert.Equal(t, 32, sk.BoneTextureDim())

	bones[1].SetPosition(math3d.V3(0, 2, 0))
	bones[1].UpdateMatrixWorld(false)
	sk.Update()
	assert.Equal(t, float32(2), sk.BoneMatrices[16+13])
	assert.Equal(t, 1, sk.Updates())

	assert.Equal(t, 4, NewSkeleton([]*Bone{NewBone()}, nil).BoneTextureDim())
}

func TestSpriteBoundingSphere(t *testing.T) {
	s := NewSprite(material.New(material.Sprite))
	s.SetScale(math3d.V3(4, 2, 1))
	s.SetPosition(math3d.V3(1, 2, 3))
	s.UpdateMatrixWorld(false)

	bs := s.BoundingSphere()
	assert.InDelta(t, 4*math.Sqrt2/2, bs.Radius, 1e-9)
	assert.InDelta(t, 3, bs.Center.Z, 1e-9)
}

func TestMeshMorphInfluences(t *testing.T) {
	g := geom.NewBox(1, 1, 1)
	g.MorphAttributes = map[string][]*geom.Attribute{
		geom.AttrPosition: {
			geom.NewAttribute(make([]float32, g.Position().Count()*3), 3),
			geom.NewAttribute(make([]float32, g.Position().Count()*3), 3),
		},
	}
	m := NewMesh(g, material.NewBasic(math3d.ColorHex(0)))
	assert.Len(t, m.MorphTargetInfluences, 2)
}

func TestLightDirection(t *testing.T) {
	l := NewDirectionalLight(math3d.ColorHex(0xffffff), 1)
	l.SetPosition(math3d.V3(0, 10, 0))
	l.UpdateMatrixWorld(false)

	d := l.Direction()
	assert.InDelta(t, -1, d.Y, 1e-9)
	require.NotNil(t, l.Shadow)
	assert.Equal(t, Orthographic, l.Shadow.Camera.Projection)
}
