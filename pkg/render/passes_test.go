package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

func TestImmediateObjectStreamsAndResets(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()

	updates := 0
	imm := scene.NewImmediateObject(material.NewBasic(math3d.ColorHex(0xffffff)))
	imm.Update = func(o *scene.ImmediateObject) {
		updates++
		o.Positions = []float32{-1, -1, 0, 1, -1, 0, 0, 1, 0}
		o.Count = 3
	}
	sc.Add(imm)

	render(t, r, sc, newTestCamera())

	require.Len(t, dev.draws, 1)
	assert.Equal(t, DrawTriangles, dev.draws[0].mode)
	assert.False(t, dev.draws[0].indexed)
	assert.Equal(t, 3, dev.draws[0].count)
	assert.Equal(t, 1, updates)
	assert.Zero(t, imm.Count, "count resets after the draw")
	assert.Equal(t, 1, r.Info().Render.Faces)
}

func TestImmediateObjectWithoutDataDrawsNothing(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewImmediateObject(material.NewBasic(math3d.ColorHex(0xffffff))))

	render(t, r, sc, newTestCamera())

	assert.Empty(t, dev.draws)
}

func TestFlatNormalsAverageEachTriangle(t *testing.T) {
	b := newImmediateBuffers(newFakeDevice())
	got := b.flatNormals([]float32{
		1, 0, 0, 0, 1, 0, 0, 0, 1,
		0, 0, 1, 0, 0, 1, 0, 0, 1,
	}, 6)

	third := float32(1) / 3
	want := []float32{
		third, third, third, third, third, third, third, third, third,
		0, 0, 1, 0, 0, 1, 0, 0, 1,
	}
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestSpritesDrawAfterScene(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xffffff))))

	near := scene.NewSprite(material.New(material.Sprite))
	near.SetPosition(math3d.V3(0, 0, 2))
	far := scene.NewSprite(material.New(material.Sprite))
	far.SetPosition(math3d.V3(0, 0, -2))
	hidden := scene.NewSprite(material.New(material.Sprite))
	hidden.SetPosition(math3d.V3(0, 0, 50))

	var order []*scene.Sprite
	for _, sp := range []*scene.Sprite{near, far, hidden} {
		sp.OnBeforeRender(func(*scene.Scene, *scene.Camera, *geom.Geometry, *material.Material, *geom.Group) {
			order = append(order, sp)
		})
	}
	sc.Add(near, far, hidden)

	render(t, r, sc, newTestCamera())

	require.Len(t, dev.draws, 3)
	assert.Equal(t, 36, dev.draws[0].count, "the mesh draws first")
	for _, d := range dev.draws[1:] {
		assert.True(t, d.indexed)
		assert.Equal(t, 6, d.count)
	}
	assert.Equal(t, []*scene.Sprite{far, near}, order, "back to front, culled sprite skipped")
}

func TestLensFlareElements(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()

	flare := scene.NewLensFlare()
	flare.AddElement(nil, 32, 0, math3d.ColorHex(0xffffff))
	flare.AddElement(nil, 16, 0.5, math3d.ColorHex(0xffff00))
	flare.AddElement(nil, 0, 1, math3d.ColorHex(0xffffff))
	sc.Add(flare)

	offscreen := scene.NewLensFlare()
	offscreen.AddElement(nil, 32, 0, math3d.ColorHex(0xffffff))
	offscreen.SetPosition(math3d.V3(0, 0, 10))
	sc.Add(offscreen)

	render(t, r, sc, newTestCamera())

	assert.Len(t, dev.draws, 2, "zero-size elements and flares behind the camera are skipped")
}

func TestShadowPassDrawsCasters(t *testing.T) {
	dev := newFakeDevice()
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 64
	opts.Shadows.Enabled = true
	r := New(dev, opts)

	sc := scene.NewScene()
	light := scene.NewDirectionalLight(math3d.ColorHex(0xffffff), 1)
	light.SetPosition(math3d.V3(0, 5, 5))
	light.CastShadow = true
	sc.Add(light)

	caster := scene.NewMesh(geom.NewBox(1, 1, 1), material.NewLambert(math3d.ColorHex(0x808080)))
	caster.CastShadow = true
	sc.Add(caster)
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewLambert(math3d.ColorHex(0x808080))))

	render(t, r, sc, newTestCamera())

	require.Len(t, dev.draws, 3, "one caster draw plus two scene draws")
	require.NotNil(t, light.Shadow.Map)
	assert.Equal(t, 512, light.Shadow.Map.Width)
	assert.NotEqual(t, dev.draws[0].program, dev.draws[1].program, "casters use the depth program")
	assert.Contains(t, dev.framebuffers, Handle(0), "the default framebuffer is rebound")
	assert.NotEqual(t, math3d.Mat4{}, light.Shadow.Matrix)

	dev.draws = nil
	r.ShadowMap.Enabled = false
	render(t, r, sc, newTestCamera())
	assert.Len(t, dev.draws, 2)
}

func TestMorphTargetsBindStrongestInfluences(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	sc := scene.NewScene()

	g := geom.NewBox(1, 1, 1)
	base := g.Position().Data
	var targets []*geom.Attribute
	for range 10 {
		targets = append(targets, geom.NewAttribute(append([]float32(nil), base...), 3))
	}
	g.MorphAttributes = map[string][]*geom.Attribute{geom.AttrPosition: targets}

	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.MorphTargets = true
	mesh := scene.NewMesh(g, m)
	require.Len(t, mesh.MorphTargetInfluences, 10)
	mesh.MorphTargetInfluences[9] = 0.75
	mesh.MorphTargetInfluences[2] = -0.5
	sc.Add(mesh)

	render(t, r, sc, newTestCamera())

	weights := dev.uniforms["morphTargetInfluences"]
	require.Len(t, weights, 8)
	assert.Equal(t, []float32{0.75, -0.5, 0, 0, 0, 0, 0, 0}, weights)
	assert.Same(t, targets[9], g.Attribute("morphTarget0"))
	assert.Same(t, targets[2], g.Attribute("morphTarget1"))
	assert.Nil(t, g.Attribute("morphTarget2"))
}

func TestGlobalClippingPlanes(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)
	r.ClippingPlanes = []math3d.Plane{math3d.NewPlane(math3d.V3(1, 0, 0), 0)}
	sc := scene.NewScene()
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), m))

	render(t, r, sc, newTestCamera())

	prog := r.props.materials[m].program
	require.NotNil(t, prog)
	assert.Equal(t, "1", dev.programs[prog.handle].src.Defines["NUM_CLIPPING_PLANES"])
	// the camera only translates, so the view-space plane is unchanged
	assert.InDeltaSlice(t, []float32{1, 0, 0, 0}, dev.uniforms["clippingPlanes"], 1e-6)

	r.ClippingPlanes = nil
	render(t, r, sc, newTestCamera())
	rebuilt := r.props.materials[m].program
	assert.Equal(t, "0", dev.programs[rebuilt.handle].src.Defines["NUM_CLIPPING_PLANES"])
}

func TestResizeImage(t *testing.T) {
	tests := []struct {
		name      string
		w, h      int
		maxSize   int
		pot       bool
		wantW     int
		wantH     int
		wantScale bool
	}{
		{"fits", 4, 4, 8, false, 4, 4, false},
		{"too large", 16, 8, 4, false, 4, 2, true},
		{"power of two", 6, 5, 0, true, 4, 4, true},
		{"already power of two", 8, 2, 0, true, 8, 2, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tc.w, tc.h))
			got, resized := resizeImage(img, tc.maxSize, tc.pot)
			assert.Equal(t, tc.wantScale, resized)
			assert.Equal(t, image.Pt(tc.wantW, tc.wantH), got.Bounds().Size())
			if !resized {
				assert.Same(t, img, got)
			}
		})
	}
}

func TestExternalEntryPoints(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev)

	tex := material.NewTexture(4, 4)
	r.SetTexture2D(tex, 0)
	r.SetTexture2D(tex, 1)
	assert.Equal(t, 1, r.Info().Memory.Textures, "unchanged textures upload once")

	tex.NeedsUpdate()
	r.SetTexture2D(tex, 0)
	assert.Equal(t, 1, r.Info().Memory.Textures, "re-uploads reuse the handle")

	r.Clear(true, false, false)
	assert.Equal(t, 1, dev.clears)

	r.SetSize(32, 16)
	w, h := r.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)

	tex.Dispose()
	assert.Zero(t, r.Info().Memory.Textures)
}
