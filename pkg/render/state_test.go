package render

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

func TestStateForwardsOnlyChanges(t *testing.T) {
	s := newState(newFakeDevice(), 16)

	s.SetDepthTest(true)
	s.SetDepthTest(true)
	s.SetDepthMask(false)
	s.SetDepthMask(false)
	s.SetViewport(image.Rect(0, 0, 10, 10))
	s.SetViewport(image.Rect(0, 0, 10, 10))
	s.SetLineWidth(2)
	s.SetLineWidth(2)
	assert.Equal(t, 4, s.Changes())

	s.SetDepthTest(false)
	assert.Equal(t, 5, s.Changes())
}

func TestStateMaterialIsIdempotent(t *testing.T) {
	s := newState(newFakeDevice(), 16)
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Transparent = true
	m.Side = material.DoubleSide

	s.SetMaterial(m, false)
	before := s.Changes()
	assert.Positive(t, before)

	s.SetMaterial(m, false)
	assert.Equal(t, before, s.Changes())

	s.SetMaterial(m, true)
	assert.Equal(t, before+1, s.Changes(), "winding flip")
}

func TestStateResetForgetsCache(t *testing.T) {
	s := newState(newFakeDevice(), 16)
	s.SetClearColor(math3d.ColorHex(0x102030), 1)
	s.SetCullFace(gputypes.CullModeBack)
	n := s.Changes()

	s.Reset()
	s.SetClearColor(math3d.ColorHex(0x102030), 1)
	s.SetCullFace(gputypes.CullModeBack)
	assert.Equal(t, 2*n, s.Changes())
}

func TestStateAttributes(t *testing.T) {
	dev := newFakeDevice()
	s := newState(dev, 4)

	s.InitAttributes()
	s.EnableAttribute(0)
	s.EnableAttribute(1)
	s.DisableUnusedAttributes()
	assert.Equal(t, 2, s.Changes())

	s.InitAttributes()
	s.EnableAttribute(0)
	s.DisableUnusedAttributes()
	assert.Equal(t, 3, s.Changes(), "slot 1 disabled")

	// out of range slots are ignored
	s.EnableAttribute(9)
	assert.Equal(t, 3, s.Changes())
}

func TestBlendStateFor(t *testing.T) {
	custom := gputypes.BlendStateReplace()
	assert.Equal(t, gputypes.BlendStateAlpha(), BlendStateFor(material.NormalBlending, false, custom))
	assert.Equal(t, gputypes.BlendStatePremultiplied(), BlendStateFor(material.NormalBlending, true, custom))
	assert.Equal(t, custom, BlendStateFor(material.CustomBlending, false, custom))

	add := BlendStateFor(material.AdditiveBlending, false, custom)
	assert.Equal(t, gputypes.BlendFactorSrcAlpha, add.Color.SrcFactor)
	assert.Equal(t, gputypes.BlendFactorOne, add.Color.DstFactor)
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		extensions []string
		instancing bool
		floatVTex  bool
	}{
		{"modern", "3.3", nil, true, true},
		{"legacy", "2.0", nil, false, false},
		{"legacy with extensions", "2.0", []string{"ANGLE_instanced_arrays", "OES_texture_float"}, true, true},
		{"garbage version", "banana", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			dev.version = tt.version
			dev.extensions = tt.extensions
			caps := newCapabilities(dev, DefaultOptions())
			assert.Equal(t, tt.instancing, caps.Instancing)
			assert.Equal(t, tt.floatVTex, caps.FloatVertexTextures)
			assert.Equal(t, 16, caps.MaxTextures)
		})
	}
}

func TestInfoUpdate(t *testing.T) {
	var info Info
	info.update(36, DrawTriangles, 1)
	info.update(5, DrawLineStrip, 2)
	info.update(4, DrawPoints, 0)

	assert.Equal(t, 3, info.Render.Calls)
	assert.Equal(t, 12, info.Render.Faces)
	assert.Equal(t, 8, info.Render.Lines)
	assert.Equal(t, 4, info.Render.Points)
	assert.Equal(t, 36+10+4, info.Render.Vertices)

	info.reset()
	assert.Equal(t, 1, info.Render.Frame)
	assert.Zero(t, info.Render.Calls)
}
