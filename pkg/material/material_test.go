package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/math3d"
)

func TestNewModelDefaults(t *testing.T) {
	tests := []struct {
		model  Model
		lights bool
		fog    bool
	}{
		{Basic, false, true},
		{Lambert, true, true},
		{Phong, true, true},
		{Standard, true, true},
		{Depth, false, false},
		{Distance, false, false},
		{LineDashed, false, true},
		{Shader, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.model.String(), func(t *testing.T) {
			m := New(tc.model)
			assert.Equal(t, tc.lights, m.Lights)
			assert.Equal(t, tc.fog, m.Fog)
			assert.True(t, m.Visible)
			assert.Equal(t, float32(1), m.Opacity)
		})
	}
}

func TestIsTransparent(t *testing.T) {
	depth := NewDepth(BasicDepthPacking, false, false)
	assert.False(t, depth.IsTransparent())
	depth.Opacity = 0.5
	assert.True(t, depth.IsTransparent(), "depth material follows opacity")

	basic := NewBasic(math3d.ColorHex(0xff0000))
	basic.Opacity = 0.5
	assert.False(t, basic.IsTransparent(), "other models need the flag")
	basic.Transparent = true
	assert.True(t, basic.IsTransparent())
}

func TestClone(t *testing.T) {
	tex := NewTexture(4, 4)
	m := NewShader("vs", "fs", map[string]*Uniform{"time": {Value: float32(1)}})
	m.Map = tex
	m.ClippingPlanes = []math3d.Plane{math3d.NewPlane(math3d.V3(0, 1, 0), 0)}

	disposed := 0
	m.OnDispose(func(*Material) { disposed++ })

	c := m.Clone()
	require.NotNil(t, c.Shader)
	assert.NotEqual(t, m.ID(), c.ID())
	assert.Same(t, tex, c.Map, "textures are shared")
	assert.Equal(t, "vs", c.Shader.Vertex)

	c.Shader.Uniforms["time"].Value = float32(2)
	assert.Equal(t, float32(1), m.Shader.Uniforms["time"].Value)

	c.ClippingPlanes[0].D = 5
	assert.Zero(t, m.ClippingPlanes[0].D)

	c.Dispose()
	assert.Zero(t, disposed, "observers are not cloned")
	m.Dispose()
	m.Dispose()
	assert.Equal(t, 1, disposed)
}

func TestTextureMatrix(t *testing.T) {
	tex := NewTexture(8, 8)
	assert.True(t, tex.PowerOfTwo())
	tex.Offset = math3d.V2(0.5, 0)
	tex.Repeat = math3d.V2(2, 2)

	m := tex.Matrix()
	p := m.MulVec3(math3d.V3(1, 1, 1))
	assert.InDelta(t, 2.5, p.X, 1e-9)
	assert.InDelta(t, 2, p.Y, 1e-9)
}

func TestRenderTargetSetSize(t *testing.T) {
	rt := NewRenderTarget(16, 16)
	released := 0
	rt.OnDispose(func(*RenderTarget) { released++ })

	rt.SetSize(16, 16)
	assert.Zero(t, released)

	v := rt.Texture.Version
	rt.SetSize(32, 8)
	assert.Equal(t, 1, released)
	assert.Equal(t, 32, rt.Texture.Width())
	assert.Equal(t, 8, rt.Texture.Height())
	assert.Greater(t, rt.Texture.Version, v)
}
