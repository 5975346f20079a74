package render

import (
	"image"

	"github.com/gogpu/gputypes"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// tri is a cached boolean that starts out unknown so the first set always
// reaches the device.
type tri int8

const (
	triUnknown tri = iota
	triOff
	triOn
)

func triOf(b bool) tri {
	if b {
		return triOn
	}
	return triOff
}

// State mirrors the device pipeline state and forwards only real changes.
type State struct {
	dev     Device
	changes int

	program     Handle
	caps        [numCaps]tri
	viewport    image.Rectangle
	scissor     image.Rectangle
	depthFunc   gputypes.CompareFunction
	depthMask   tri
	colorMask   tri
	stencilMask uint32
	stencilSet  bool
	cullFace    gputypes.CullMode
	cullSet     bool
	frontFace   gputypes.FrontFace
	frontSet    bool

	blending      material.Blending
	blendState    gputypes.BlendState
	blendSet      bool
	premultiplied bool

	polygonOffsetFactor float32
	polygonOffsetUnits  float32
	lineWidth           float32

	clearColor math3d.Color
	clearAlpha float32
	clearSet   bool

	newAttributes     []bool
	enabledAttributes []bool
	attributeDivisors []int

	activeTexture int
	boundTextures map[int]Handle
	framebuffer   Handle
	fbSet         bool
}

func newState(dev Device, maxAttributes int) *State {
	s := &State{dev: dev}
	s.newAttributes = make([]bool, maxAttributes)
	s.enabledAttributes = make([]bool, maxAttributes)
	s.attributeDivisors = make([]int, maxAttributes)
	s.Reset()
	return s
}

// Changes counts state calls forwarded to the device.
func (s *State) Changes() int { return s.changes }

func (s *State) changed() { s.changes++ }

// Enable turns a capability on.
func (s *State) Enable(c Cap) {
	if s.caps[c] != triOn {
		s.dev.Enable(c)
		s.caps[c] = triOn
		s.changed()
	}
}

// Disable turns a capability off.
func (s *State) Disable(c Cap) {
	if s.caps[c] != triOff {
		s.dev.Disable(c)
		s.caps[c] = triOff
		s.changed()
	}
}

func (s *State) setCap(c Cap, on bool) {
	if on {
		s.Enable(c)
	} else {
		s.Disable(c)
	}
}

// UseProgram binds prog and reports whether the binding changed.
func (s *State) UseProgram(prog Handle) bool {
	if s.program == prog {
		return false
	}
	s.dev.UseProgram(prog)
	s.program = prog
	s.changed()
	return true
}

// SetViewport sets the viewport rectangle.
func (s *State) SetViewport(r image.Rectangle) {
	if s.viewport != r {
		s.dev.Viewport(r)
		s.viewport = r
		s.changed()
	}
}

// SetScissor sets the scissor rectangle.
func (s *State) SetScissor(r image.Rectangle) {
	if s.scissor != r {
		s.dev.Scissor(r)
		s.scissor = r
		s.changed()
	}
}

// SetScissorTest toggles scissoring.
func (s *State) SetScissorTest(on bool) { s.setCap(CapScissorTest, on) }

// SetDepthTest toggles depth testing.
func (s *State) SetDepthTest(on bool) { s.setCap(CapDepthTest, on) }

// SetDepthMask toggles depth writes.
func (s *State) SetDepthMask(on bool) {
	if t := triOf(on); s.depthMask != t {
		s.dev.DepthMask(on)
		s.depthMask = t
		s.changed()
	}
}

// SetDepthFunc sets the depth comparison.
func (s *State) SetDepthFunc(f gputypes.CompareFunction) {
	if s.depthFunc != f {
		s.dev.DepthFunc(f)
		s.depthFunc = f
		s.changed()
	}
}

// SetColorMask toggles color writes.
func (s *State) SetColorMask(on bool) {
	if t := triOf(on); s.colorMask != t {
		s.dev.ColorMask(on)
		s.colorMask = t
		s.changed()
	}
}

// SetStencilMask sets the stencil write mask.
func (s *State) SetStencilMask(mask uint32) {
	if !s.stencilSet || s.stencilMask != mask {
		s.dev.StencilMask(mask)
		s.stencilMask = mask
		s.stencilSet = true
		s.changed()
	}
}

// SetCullFace sets which faces are culled. CullModeNone disables culling.
func (s *State) SetCullFace(mode gputypes.CullMode) {
	if mode == gputypes.CullModeNone {
		s.Disable(CapCullFace)
		return
	}
	s.Enable(CapCullFace)
	if !s.cullSet || s.cullFace != mode {
		s.dev.CullFace(mode)
		s.cullFace = mode
		s.cullSet = true
		s.changed()
	}
}

// SetFlipSided makes clockwise triangles front-facing.
func (s *State) SetFlipSided(flip bool) {
	f := gputypes.FrontFaceCCW
	if flip {
		f = gputypes.FrontFaceCW
	}
	if !s.frontSet || s.frontFace != f {
		s.dev.FrontFace(f)
		s.frontFace = f
		s.frontSet = true
		s.changed()
	}
}

// BlendStateFor returns the blend equation of a preset. custom is used for
// CustomBlending.
func BlendStateFor(b material.Blending, premultiplied bool, custom gputypes.BlendState) gputypes.BlendState {
	add := func(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
		return gputypes.BlendComponent{SrcFactor: src, DstFactor: dst, Operation: gputypes.BlendOperationAdd}
	}
	switch b {
	case material.NormalBlending:
		if premultiplied {
			return gputypes.BlendStatePremultiplied()
		}
		return gputypes.BlendStateAlpha()
	case material.AdditiveBlending:
		src := gputypes.BlendFactorSrcAlpha
		if premultiplied {
			src = gputypes.BlendFactorOne
		}
		return gputypes.BlendState{
			Color: add(src, gputypes.BlendFactorOne),
			Alpha: add(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
		}
	case material.SubtractiveBlending:
		return gputypes.BlendState{
			Color: add(gputypes.BlendFactorZero, gputypes.BlendFactorOneMinusSrc),
			Alpha: add(gputypes.BlendFactorZero, gputypes.BlendFactorOneMinusSrcAlpha),
		}
	case material.MultiplyBlending:
		return gputypes.BlendState{
			Color: add(gputypes.BlendFactorZero, gputypes.BlendFactorSrc),
			Alpha: add(gputypes.BlendFactorZero, gputypes.BlendFactorSrcAlpha),
		}
	case material.CustomBlending:
		return custom
	}
	return gputypes.BlendStateReplace()
}

// SetBlending applies a blend preset. NoBlending disables blending.
func (s *State) SetBlending(b material.Blending, premultiplied bool, custom gputypes.BlendState) {
	if b == material.NoBlending {
		s.Disable(CapBlend)
		return
	}
	s.Enable(CapBlend)
	bs := BlendStateFor(b, premultiplied, custom)
	if !s.blendSet || s.blending != b || s.premultiplied != premultiplied || s.blendState != bs {
		s.dev.BlendState(bs)
		s.blending = b
		s.blendState = bs
		s.premultiplied = premultiplied
		s.blendSet = true
		s.changed()
	}
}

// SetPolygonOffset toggles depth offset for coplanar geometry.
func (s *State) SetPolygonOffset(on bool, factor, units float32) {
	s.setCap(CapPolygonOffsetFill, on)
	if on && (s.polygonOffsetFactor != factor || s.polygonOffsetUnits != units) {
		s.dev.PolygonOffset(factor, units)
		s.polygonOffsetFactor = factor
		s.polygonOffsetUnits = units
		s.changed()
	}
}

// SetLineWidth sets the rasterized line width.
func (s *State) SetLineWidth(w float32) {
	if s.lineWidth != w {
		s.dev.LineWidth(w)
		s.lineWidth = w
		s.changed()
	}
}

// SetClearColor sets the color used by color clears.
func (s *State) SetClearColor(c math3d.Color, alpha float32) {
	if !s.clearSet || s.clearColor != c || s.clearAlpha != alpha {
		s.dev.ClearColor(c, alpha)
		s.clearColor = c
		s.clearAlpha = alpha
		s.clearSet = true
		s.changed()
	}
}

// SetMaterial derives culling, blending, depth and color write state from
// m. frontFaceCW flips the winding for mirrored transforms.
func (s *State) SetMaterial(m *material.Material, frontFaceCW bool) {
	if m.Side == material.DoubleSide {
		s.SetCullFace(gputypes.CullModeNone)
	} else {
		s.SetCullFace(gputypes.CullModeBack)
	}

	flip := m.Side == material.BackSide
	if frontFaceCW {
		flip = !flip
	}
	s.SetFlipSided(flip)

	if m.Blending == material.NormalBlending && !m.Transparent {
		s.SetBlending(material.NoBlending, false, m.BlendState)
	} else {
		s.SetBlending(m.Blending, m.Premultiplied, m.BlendState)
	}

	s.SetDepthFunc(m.DepthFunc)
	s.SetDepthTest(m.DepthTest)
	s.SetDepthMask(m.DepthWrite)
	s.SetColorMask(m.ColorWrite)
	s.SetPolygonOffset(m.PolygonOffset, m.PolygonOffsetFactor, m.PolygonOffsetUnits)
}

// InitAttributes starts a new vertex setup. Slots not re-enabled before
// DisableUnusedAttributes are turned off.
func (s *State) InitAttributes() {
	for i := range s.newAttributes {
		s.newAttributes[i] = false
	}
}

// EnableAttribute enables a non-instanced vertex attribute slot.
func (s *State) EnableAttribute(loc int) {
	s.EnableAttributeAndDivisor(loc, 0)
}

// EnableAttributeAndDivisor enables a slot with an instance divisor.
func (s *State) EnableAttributeAndDivisor(loc, divisor int) {
	if loc < 0 || loc >= len(s.newAttributes) {
		return
	}
	s.newAttributes[loc] = true
	if !s.enabledAttributes[loc] {
		s.dev.EnableVertexAttribArray(loc)
		s.enabledAttributes[loc] = true
		s.changed()
	}
	if s.attributeDivisors[loc] != divisor {
		s.dev.VertexAttribDivisor(loc, divisor)
		s.attributeDivisors[loc] = divisor
		s.changed()
	}
}

// DisableUnusedAttributes disables slots enabled by an earlier setup but
// not by the current one.
func (s *State) DisableUnusedAttributes() {
	for i, enabled := range s.enabledAttributes {
		if enabled && !s.newAttributes[i] {
			s.dev.DisableVertexAttribArray(i)
			s.enabledAttributes[i] = false
			s.changed()
		}
	}
}

// ActiveTexture selects the texture unit later binds apply to.
func (s *State) ActiveTexture(unit int) {
	if s.activeTexture != unit {
		s.dev.ActiveTexture(unit)
		s.activeTexture = unit
		s.changed()
	}
}

// BindTexture binds tex to unit.
func (s *State) BindTexture(unit int, tex Handle) {
	s.ActiveTexture(unit)
	if cur, ok := s.boundTextures[unit]; !ok || cur != tex {
		s.dev.BindTexture(tex)
		s.boundTextures[unit] = tex
		s.changed()
	}
}

// BindFramebuffer binds fb (0 is the default framebuffer).
func (s *State) BindFramebuffer(fb Handle) {
	if !s.fbSet || s.framebuffer != fb {
		s.dev.BindFramebuffer(fb)
		s.framebuffer = fb
		s.fbSet = true
		s.changed()
	}
}

// Reset forgets all cached state. The next set of each value reaches the
// device.
func (s *State) Reset() {
	s.program = 0
	s.caps = [numCaps]tri{}
	s.viewport = image.Rectangle{}
	s.scissor = image.Rectangle{}
	s.depthFunc = gputypes.CompareFunctionUndefined
	s.depthMask = triUnknown
	s.colorMask = triUnknown
	s.stencilSet = false
	s.cullSet = false
	s.frontSet = false
	s.blendSet = false
	s.lineWidth = 0
	s.polygonOffsetFactor = 0
	s.polygonOffsetUnits = 0
	s.clearSet = false
	s.activeTexture = -1
	s.boundTextures = map[int]Handle{}
	s.fbSet = false
	for i := range s.enabledAttributes {
		s.newAttributes[i] = false
		s.enabledAttributes[i] = false
		s.attributeDivisors[i] = 0
	}
}
