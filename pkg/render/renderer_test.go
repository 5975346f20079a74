package render

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

func newTestRenderer(t *testing.T, dev *fakeDevice) *Renderer {
	t.Helper()
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 64
	return New(dev, opts)
}

func newTestCamera() *scene.Camera {
	cam := scene.NewPerspectiveCamera(math.Pi/3, 1, 0.1, 100)
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.LookAt(math3d.Zero3())
	return cam
}

func render(t *testing.T, r *Renderer, sc *scene.Scene, cam *scene.Camera) {
	t.Helper()
	require.NoError(t, r.Render(sc, cam, nil, false))
}

func TestRenderDrawsVisibleMesh(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xff0000))))

	render(t, r, sc, newTestCamera())

	require.Len(t, dev.draws, 1)
	assert.Equal(t, DrawTriangles, dev.draws[0].mode)
	assert.True(t, dev.draws[0].indexed)
	assert.Equal(t, 36, dev.draws[0].count)

	info := r.Info()
	assert.Equal(t, 1, info.Render.Frame)
	assert.Equal(t, 1, info.Render.Calls)
	assert.Equal(t, 12, info.Render.Faces)
	assert.Equal(t, 1, info.Programs)
	assert.Equal(t, 1, info.Memory.Geometries)
	assert.Equal(t, []float32{1, 0, 0}, dev.uniforms["diffuse"])
}

func TestEqualMaterialsShareProgram(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	a := material.NewBasic(math3d.ColorHex(0xff0000))
	b := material.NewBasic(math3d.ColorHex(0x00ff00))
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), a))
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), b))

	render(t, r, sc, newTestCamera())

	require.Len(t, dev.draws, 2)
	assert.Equal(t, 1, r.Info().Programs)
	pa := r.props.materials[a].program
	pb := r.props.materials[b].program
	require.Same(t, pa, pb)
	assert.Equal(t, 2, pa.UsedTimes)

	a.Dispose()
	assert.Equal(t, 1, pb.UsedTimes)
	assert.Empty(t, dev.deletedProgs)

	b.Dispose()
	assert.Equal(t, 0, r.Info().Programs)
	assert.Equal(t, []Handle{pb.handle}, dev.deletedProgs)

	// releasing twice is harmless
	r.programs.release(pb)
	assert.Len(t, dev.deletedProgs, 1)
}

func TestChangedMaterialLeavesSharedProgram(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewDirectionalLight(math3d.ColorHex(0xffffff), 1))
	a := material.NewLambert(math3d.ColorHex(0xff0000))
	b := material.NewLambert(math3d.ColorHex(0x00ff00))
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), a))
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), b))

	render(t, r, sc, newTestCamera())

	shared := r.props.materials[a].program
	require.Same(t, shared, r.props.materials[b].program)
	require.Equal(t, 2, shared.UsedTimes)

	b.Lights = false
	b.NeedsUpdate = true
	render(t, r, sc, newTestCamera())

	pa := r.props.materials[a].program
	pb := r.props.materials[b].program
	assert.Same(t, shared, pa)
	assert.NotSame(t, shared, pb)
	assert.NotEqual(t, pa.Code, pb.Code)
	assert.Equal(t, 1, pa.UsedTimes)
	assert.Equal(t, 1, pb.UsedTimes)
	assert.Equal(t, 2, r.Info().Programs)
}

func TestDifferentParametersGetDifferentPrograms(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	plain := material.NewBasic(math3d.ColorHex(0xffffff))
	textured := material.NewBasic(math3d.ColorHex(0xffffff))
	textured.Map = material.NewTexture(4, 4)
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), plain))
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), textured))

	render(t, r, sc, newTestCamera())

	assert.Equal(t, 2, r.Info().Programs)
	assert.NotEqual(t, r.props.materials[plain].program.Code, r.props.materials[textured].program.Code)
	assert.Equal(t, 1, r.Info().Memory.Textures)
}

func TestSecondFrameIsIdempotent(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewLambert(math3d.ColorHex(0x808080))))
	sc.Add(scene.NewDirectionalLight(math3d.ColorHex(0xffffff), 1))
	cam := newTestCamera()

	render(t, r, sc, cam)
	rebuilds := r.rebuilds
	changes := r.State().Changes()
	buffers := dev.createdBuffers
	require.Equal(t, 1, rebuilds)

	render(t, r, sc, cam)
	assert.Equal(t, rebuilds, r.rebuilds, "no program rebuilt")
	assert.Equal(t, changes, r.State().Changes(), "no redundant state calls")
	assert.Equal(t, buffers, dev.createdBuffers, "no buffers reallocated")
	assert.Equal(t, 2, r.Info().Render.Frame)
	assert.Equal(t, 1, r.Info().Render.Calls)
}

func TestLightCountChangeRebuildsProgram(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	m := material.NewPhong(math3d.ColorHex(0x808080), 30)
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), m))
	cam := newTestCamera()

	render(t, r, sc, cam)
	first := r.props.materials[m].program

	sc.Add(scene.NewDirectionalLight(math3d.ColorHex(0xffffff), 0.5))
	render(t, r, sc, cam)
	second := r.props.materials[m].program

	assert.NotEqual(t, first.Code, second.Code)
	assert.True(t, first.released)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, dev.uniforms["directionalLights[0].color"])
}

func TestOpaqueDrawsBeforeTransparent(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewDirectionalLight(math3d.ColorHex(0xffffff), 1))

	glass := material.NewLambert(math3d.ColorHex(0x0000ff))
	glass.Transparent = true
	glass.Opacity = 0.5
	front := scene.NewMesh(geom.NewBox(1, 1, 1), glass)
	front.SetPosition(math3d.V3(0, 0, 1))

	wall := scene.NewMesh(geom.NewBox(1, 1, 1), material.NewLambert(math3d.ColorHex(0xff0000)))
	wall.SetPosition(math3d.V3(0, 0, -1))

	// added transparent first so only sorting can put it last
	sc.Add(front, wall)

	var order []string
	front.OnBeforeRender(func(*scene.Scene, *scene.Camera, *geom.Geometry, *material.Material, *geom.Group) {
		order = append(order, "transparent")
	})
	wall.OnBeforeRender(func(*scene.Scene, *scene.Camera, *geom.Geometry, *material.Material, *geom.Group) {
		order = append(order, "opaque")
	})

	render(t, r, sc, newTestCamera())
	assert.Equal(t, []string{"opaque", "transparent"}, order)
}

func TestFrustumCulling(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	behind := scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff)))
	behind.SetPosition(math3d.V3(0, 0, 20))
	sc.Add(behind)
	cam := newTestCamera()

	render(t, r, sc, cam)
	assert.Empty(t, dev.draws)

	behind.FrustumCulled = false
	render(t, r, sc, cam)
	assert.Len(t, dev.draws, 1)
}

func TestInvisibleParentHidesSubtree(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	parent := scene.NewGroup()
	parent.Visible = false
	parent.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff))))
	sc.Add(parent)

	render(t, r, sc, newTestCamera())
	assert.Empty(t, dev.draws)
}

func TestLayerMismatchSkipsOnlyTheNode(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	parent := scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff)))
	parent.Layers.Set(3)
	parent.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff))))
	sc.Add(parent)

	render(t, r, sc, newTestCamera())
	assert.Len(t, dev.draws, 1)
}

func TestMultiMaterialDrawsEachGroup(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	var mats []*material.Material
	for range 6 {
		mats = append(mats, material.NewBasic(math3d.ColorHex(0xffffff)))
	}
	mats[2].Visible = false
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), mats...))

	render(t, r, sc, newTestCamera())
	require.Len(t, dev.draws, 5)
	for _, d := range dev.draws {
		assert.Equal(t, 6, d.count)
	}
}

func TestDrawRangeClamp(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	g := geom.New()
	g.SetAttribute(geom.AttrPosition, geom.NewAttribute(make([]float32, 6*3), 3))
	g.DrawRange = geom.DrawRange{Start: 2, Count: 100}
	mesh := scene.NewMesh(g, material.NewBasic(math3d.ColorHex(0xffffff)))
	mesh.FrustumCulled = false
	sc.Add(mesh)

	render(t, r, sc, newTestCamera())
	require.Len(t, dev.draws, 1)
	assert.False(t, dev.draws[0].indexed)
	assert.Equal(t, 2, dev.draws[0].first)
	assert.Equal(t, 4, dev.draws[0].count)
}

func TestDrawRangeIntersection(t *testing.T) {
	tests := []struct {
		name       string
		data       int
		dr         geom.DrawRange
		group      *geom.Group
		factor     int
		start, cnt int
	}{
		{"whole", 36, geom.DrawRange{Count: -1}, nil, 1, 0, 36},
		{"group", 36, geom.DrawRange{Count: -1}, &geom.Group{Start: 6, Count: 6}, 1, 6, 6},
		{"range inside group", 36, geom.DrawRange{Start: 8, Count: 2}, &geom.Group{Start: 6, Count: 6}, 1, 8, 2},
		{"disjoint", 36, geom.DrawRange{Start: 0, Count: 3}, &geom.Group{Start: 6, Count: 6}, 1, 6, 0},
		{"huge counts", 10, geom.DrawRange{Count: math.MaxInt}, &geom.Group{Start: 3, Count: math.MaxInt}, 2, 6, 4},
		{"wireframe", 72, geom.DrawRange{Count: -1}, &geom.Group{Start: 6, Count: 6}, 2, 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, count := drawRange(tt.data, tt.dr, tt.group, tt.factor)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.cnt, count)
		})
	}
}

func TestTextureUnitsExceeded(t *testing.T) {
	dev := newFakeDevice()
	dev.params[MaxTextureImageUnits] = 1
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Map = material.NewTexture(4, 4)
	m.AlphaMap = material.NewTexture(4, 4)
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), m))

	err := r.Render(sc, newTestCamera(), nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTextureUnitsExceeded))
}

func TestUnknownShader(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewShader("", "", nil)))

	err := r.Render(sc, newTestCamera(), nil, false)
	assert.ErrorIs(t, err, ErrUnknownShader)
	assert.Empty(t, dev.draws)
}

func TestLinkFailureIsReturned(t *testing.T) {
	dev := newFakeDevice()
	dev.linkErr = errors.New("syntax error")
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff))))

	err := r.Render(sc, newTestCamera(), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestContextLostSkipsFrame(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff))))
	dev.lost = true

	require.NoError(t, r.Render(sc, newTestCamera(), nil, false))
	assert.Empty(t, dev.draws)
	assert.Equal(t, 0, dev.clears)
	assert.Equal(t, 0, r.Info().Render.Frame)
}

func TestFrameHooksRun(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	var calls []string
	r.OnBeforeRender(func(*scene.Scene, *scene.Camera) { calls = append(calls, "before") })
	r.OnAfterRender(func(*scene.Scene, *scene.Camera) { calls = append(calls, "after") })

	render(t, r, scene.NewScene(), newTestCamera())
	assert.Equal(t, []string{"before", "after"}, calls)
}

func TestAutoClear(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	cam := newTestCamera()

	render(t, r, sc, cam)
	assert.Equal(t, 1, dev.clears)

	r.AutoClear = false
	render(t, r, sc, cam)
	assert.Equal(t, 1, dev.clears)

	require.NoError(t, r.Render(sc, cam, nil, true))
	assert.Equal(t, 2, dev.clears)

	// a color background always clears
	sc.Background = &scene.Background{Color: math3d.ColorHex(0x202020)}
	render(t, r, sc, cam)
	assert.Equal(t, 3, dev.clears)
}

func TestSkinnedMeshUsesBoneTexture(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	require.True(t, r.Capabilities().FloatVertexTextures)

	bones := make([]*scene.Bone, 130)
	for i := range bones {
		bones[i] = scene.NewBone()
	}
	sk := scene.NewSkeleton(bones, nil)
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Skinning = true
	mesh := scene.NewSkinnedMesh(geom.NewBox(1, 1, 1), m)
	mesh.Bind(sk, math3d.Identity())
	sc := scene.NewScene()
	sc.Add(mesh)

	render(t, r, sc, newTestCamera())

	assert.Equal(t, 32, sk.BoneTextureSize)
	assert.Contains(t, dev.floatTextures, r.textures.bones[sk].handle)
	assert.Equal(t, 32, dev.floatTextures[r.textures.bones[sk].handle])
	assert.Equal(t, []int32{32}, dev.ints["boneTextureSize"])
	assert.Equal(t, 1, sk.Updates())

	handle := r.textures.bones[sk].handle
	sk.Dispose()
	assert.Contains(t, dev.deletedTexs, handle)
	assert.NotContains(t, r.textures.bones, sk)
	assert.Zero(t, sk.BoneTextureSize)
}

func TestSkinnedMeshWithoutFloatTexturesUsesUniforms(t *testing.T) {
	dev := newFakeDevice()
	dev.version = "2.0"
	r := newTestRenderer(t, dev)
	require.False(t, r.Capabilities().FloatVertexTextures)

	sk := scene.NewSkeleton([]*scene.Bone{scene.NewBone(), scene.NewBone()}, nil)
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Skinning = true
	mesh := scene.NewSkinnedMesh(geom.NewBox(1, 1, 1), m)
	mesh.Bind(sk, math3d.Identity())
	sc := scene.NewScene()
	sc.Add(mesh)

	render(t, r, sc, newTestCamera())
	assert.Len(t, dev.uniforms["boneMatrices"], 32)
	assert.Equal(t, 0, sk.BoneTextureSize)
}

func TestInstancedGeometry(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	g := geom.NewBox(1, 1, 1)
	g.Instanced = true
	g.InstanceCount = 10
	sc.Add(scene.NewMesh(g, material.NewBasic(math3d.ColorHex(0xffffff))))
	cam := newTestCamera()

	render(t, r, sc, cam)
	require.Len(t, dev.draws, 1)
	assert.Equal(t, 10, dev.draws[0].instances)
	assert.Equal(t, 10, r.Info().Render.Instances)

	g.InstanceCount = 0
	render(t, r, sc, cam)
	assert.Len(t, dev.draws, 1, "zero instances draws nothing")
}

func TestInstancingUnsupportedSkipsDraw(t *testing.T) {
	dev := newFakeDevice()
	dev.version = "2.0"
	r := newTestRenderer(t, dev)
	require.False(t, r.Capabilities().Instancing)
	sc := scene.NewScene()
	g := geom.NewBox(1, 1, 1)
	g.Instanced = true
	g.InstanceCount = 4
	sc.Add(scene.NewMesh(g, material.NewBasic(math3d.ColorHex(0xffffff))))

	render(t, r, sc, newTestCamera())
	assert.Empty(t, dev.draws)
}

func TestMirroredMeshFlipsWinding(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	mesh := scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff)))
	mesh.SetScale(math3d.V3(-1, 1, 1))
	sc.Add(mesh)

	render(t, r, sc, newTestCamera())
	assert.Equal(t, 1, r.Info().Render.Calls)
	assert.Less(t, mesh.MatrixWorld().Determinant(), 0.0)
}

func TestWireframeDrawsLines(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Wireframe = true
	sc.Add(scene.NewMesh(geom.NewPlane(1, 1), m))

	render(t, r, sc, newTestCamera())
	require.Len(t, dev.draws, 1)
	assert.Equal(t, DrawLines, dev.draws[0].mode)
	// two triangles share one edge: five unique edges
	assert.Equal(t, 10, dev.draws[0].count)
}

func TestLinesAndPoints(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	g := geom.New()
	g.SetAttribute(geom.AttrPosition, geom.NewAttribute([]float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 3))

	loop := scene.NewLine(g, material.NewLine(math3d.ColorHex(0xffffff), 2))
	loop.Mode = scene.LineLoop
	points := scene.NewPoints(g, material.NewPoints(math3d.ColorHex(0xffffff), 4))
	sc.Add(loop, points)

	render(t, r, sc, newTestCamera())
	require.Len(t, dev.draws, 2)
	modes := []DrawMode{dev.draws[0].mode, dev.draws[1].mode}
	assert.ElementsMatch(t, []DrawMode{DrawLineLoop, DrawPoints}, modes)
	assert.Equal(t, 4, r.Info().Render.Lines)
	assert.Equal(t, 4, r.Info().Render.Points)
}

func TestOverrideMaterial(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewLambert(math3d.ColorHex(0xffffff))))
	sc.OverrideMaterial = material.New(material.Normal)

	render(t, r, sc, newTestCamera())
	require.Len(t, dev.draws, 1)
	require.Contains(t, r.props.materials, sc.OverrideMaterial)
	assert.Equal(t, "normal", r.props.materials[sc.OverrideMaterial].program.Name)
}

func TestRenderTargetBindsFramebuffer(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff))))
	rt := material.NewRenderTarget(32, 32)

	require.NoError(t, r.Render(sc, newTestCamera(), rt, false))
	require.Contains(t, r.props.targets, rt)
	fb := r.props.targets[rt].framebuffer
	assert.Contains(t, dev.framebuffers, fb)
	assert.Same(t, rt, r.RenderTarget())

	rt.Dispose()
	assert.NotContains(t, r.props.targets, rt)
}

func TestDisposedGeometryIsForgotten(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	g := geom.NewBox(1, 1, 1)
	sc.Add(scene.NewMesh(g, material.NewBasic(math3d.ColorHex(0xffffff))))

	render(t, r, sc, newTestCamera())
	require.Equal(t, 1, r.Info().Memory.Geometries)

	g.Dispose()
	assert.Equal(t, 0, r.Info().Memory.Geometries)
}

func TestReplacedBuffersAreFreed(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	g := geom.NewBox(1, 1, 1)
	sc.Add(scene.NewMesh(g, material.NewBasic(math3d.ColorHex(0xffffff))))
	render(t, r, sc, newTestCamera())

	oldPos := g.Position()
	oldIndex := g.Index()
	require.NotNil(t, r.attrs.get(oldPos))
	require.Contains(t, r.attrs.indices, oldIndex)
	posBuf := r.attrs.get(oldPos).handle
	indexBuf := r.attrs.indices[oldIndex].handle

	g.SetAttribute(geom.AttrPosition, geom.NewAttribute(slices.Clone(oldPos.Data), 3))
	g.SetIndex(geom.NewIndex(slices.Clone(oldIndex.Data)))
	render(t, r, sc, newTestCamera())

	assert.Contains(t, dev.deletedBufs, posBuf)
	assert.Contains(t, dev.deletedBufs, indexBuf)
	assert.Nil(t, r.attrs.get(oldPos))
	assert.NotContains(t, r.attrs.indices, oldIndex)
	assert.NotNil(t, r.attrs.get(g.Position()))

	g.Dispose()
	for _, name := range g.AttributeNames() {
		assert.Nil(t, r.attrs.get(g.Attribute(name)), name)
	}
	assert.NotContains(t, r.attrs.indices, g.Index())
}

func TestSharedAttributeOutlivesOneGeometry(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	a := geom.NewBox(1, 1, 1)
	b := geom.NewBox(1, 1, 1)
	shared := a.Position()
	b.SetAttribute(geom.AttrPosition, shared)
	sc.Add(scene.NewMesh(a, material.NewBasic(math3d.ColorHex(0xffffff))))
	sc.Add(scene.NewMesh(b, material.NewBasic(math3d.ColorHex(0xffffff))))
	render(t, r, sc, newTestCamera())

	a.Dispose()
	assert.NotNil(t, r.attrs.get(shared), "still used by the other geometry")

	b.Dispose()
	assert.Nil(t, r.attrs.get(shared))
}

func TestDisposeReleasesEverything(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Map = material.NewTexture(2, 2)
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), m))
	render(t, r, sc, newTestCamera())

	r.Dispose()
	assert.Equal(t, 0, r.Info().Programs)
	assert.Equal(t, MemoryInfo{}, r.Info().Memory)
	assert.NotEmpty(t, dev.deletedProgs)
}
