package soft

import (
	"errors"
	"image"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/render"
)

// Device limits.
const (
	maxUnits          = 16
	maxAttribs        = 16
	maxTextureSize    = 2048
	maxUniformVectors = 1024
	maxVaryingVectors = 16
)

// ErrContextLost is returned when programs are created on a lost device.
var ErrContextLost = errors.New("soft: context lost")

type buffer struct {
	floats []float32
	ints   []uint32
}

type attribBinding struct {
	enabled bool
	buf     *buffer
	size    int
	divisor int
}

type renderTarget struct {
	fb    *Framebuffer
	tex   *texture
	depth bool
}

// Stats counts the work done since the last Reset.
type Stats struct {
	DrawCalls       int // draws issued
	Triangles       int // triangles reaching the rasterizer after clipping
	TrianglesCulled int // triangles dropped by face culling
	Fragments       int // fragments written
}

// Device is a render.Device that rasterizes on the CPU. Viewport and
// scissor rectangles use GL conventions with the origin at the bottom
// left; the framebuffer stores rows top down.
type Device struct {
	fb      *Framebuffer
	target  *Framebuffer
	bound   render.Handle
	version string
	lost    bool

	next         render.Handle
	buffers      map[render.Handle]*buffer
	programs     map[render.Handle]*program
	textures     map[render.Handle]*texture
	framebuffers map[render.Handle]*renderTarget

	current    *program
	attribs    [maxAttribs]attribBinding
	index      *buffer
	units      [maxUnits]render.Handle
	activeUnit int

	caps         map[render.Cap]bool
	viewport     image.Rectangle
	scissor      image.Rectangle
	depthFunc    gputypes.CompareFunction
	depthMask    bool
	colorMask    bool
	stencilMask  uint32
	cull         gputypes.CullMode
	frontFace    gputypes.FrontFace
	blend        gputypes.BlendState
	lineWidth    float32
	offsetFactor float32
	offsetUnits  float32
	clearColor   math3d.Vec4

	Stats Stats
}

// New creates a device drawing into a width×height framebuffer.
func New(width, height int) *Device {
	d := &Device{
		fb:           NewFramebuffer(width, height),
		version:      "3.3",
		buffers:      map[render.Handle]*buffer{},
		programs:     map[render.Handle]*program{},
		textures:     map[render.Handle]*texture{},
		framebuffers: map[render.Handle]*renderTarget{},
	}
	d.target = d.fb
	d.resetState()
	return d
}

func (d *Device) resetState() {
	d.caps = map[render.Cap]bool{}
	d.viewport = d.fb.Bounds()
	d.scissor = d.fb.Bounds()
	d.depthFunc = gputypes.CompareFunctionLess
	d.depthMask = true
	d.colorMask = true
	d.stencilMask = ^uint32(0)
	d.cull = gputypes.CullModeBack
	d.frontFace = gputypes.FrontFaceCCW
	d.blend = gputypes.BlendStateReplace()
	d.lineWidth = 1
	d.clearColor = math3d.Vec4{}
	d.attribs = [maxAttribs]attribBinding{}
	d.units = [maxUnits]render.Handle{}
	d.activeUnit = 0
	d.current = nil
	d.index = nil
}

// Framebuffer returns the default framebuffer.
func (d *Device) Framebuffer() *Framebuffer { return d.fb }

// SetAPIVersion changes the version reported to the renderer. Versions
// below 3.0 disable instancing and float textures unless the matching
// extensions are listed.
func (d *Device) SetAPIVersion(v string) { d.version = v }

// Lose simulates a context loss. Every object is forgotten.
func (d *Device) Lose() {
	d.lost = true
	clear(d.buffers)
	clear(d.programs)
	clear(d.textures)
	clear(d.framebuffers)
	d.bound = 0
	d.target = d.fb
	d.resetState()
}

// Restore ends a simulated context loss.
func (d *Device) Restore() { d.lost = false }

func (d *Device) handle() render.Handle {
	d.next++
	return d.next
}

func (d *Device) Parameter(p render.Parameter) int {
	switch p {
	case render.MaxTextureImageUnits, render.MaxVertexTextureImageUnits:
		return maxUnits
	case render.MaxTextureSize, render.MaxCubeMapTextureSize:
		return maxTextureSize
	case render.MaxVertexAttribs:
		return maxAttribs
	case render.MaxVertexUniformVectors, render.MaxFragmentUniformVectors:
		return maxUniformVectors
	case render.MaxVaryingVectors:
		return maxVaryingVectors
	}
	return 0
}

func (d *Device) Extensions() []string {
	return []string{"OES_texture_float", "OES_element_index_uint", "ANGLE_instanced_arrays"}
}

func (d *Device) APIVersion() string  { return d.version }
func (d *Device) IsContextLost() bool { return d.lost }

// SetSize resizes the default framebuffer.
func (d *Device) SetSize(width, height int) {
	if width == d.fb.Width && height == d.fb.Height {
		return
	}
	d.fb.Resize(width, height)
}

func (d *Device) CreateBuffer() render.Handle {
	h := d.handle()
	d.buffers[h] = &buffer{}
	return h
}

func (d *Device) BufferVertices(buf render.Handle, data []float32) {
	if b := d.buffers[buf]; b != nil {
		b.floats = append(b.floats[:0], data...)
	}
}

func (d *Device) BufferIndices(buf render.Handle, data []uint32) {
	if b := d.buffers[buf]; b != nil {
		b.ints = append(b.ints[:0], data...)
	}
}

func (d *Device) DeleteBuffer(buf render.Handle) {
	b := d.buffers[buf]
	if b == nil {
		return
	}
	for i := range d.attribs {
		if d.attribs[i].buf == b {
			d.attribs[i].buf = nil
		}
	}
	if d.index == b {
		d.index = nil
	}
	delete(d.buffers, buf)
}

func (d *Device) CreateProgram(src render.ProgramSource) (render.Handle, error) {
	if d.lost {
		return 0, ErrContextLost
	}
	h := d.handle()
	d.programs[h] = newProgram(src)
	return h, nil
}

func (d *Device) ActiveUniforms(prog render.Handle) map[string]int {
	if p := d.programs[prog]; p != nil {
		return p.uniforms
	}
	return map[string]int{}
}

func (d *Device) ActiveAttributes(prog render.Handle) map[string]int {
	if p := d.programs[prog]; p != nil {
		return p.attributes
	}
	return map[string]int{}
}

func (d *Device) UseProgram(prog render.Handle) { d.current = d.programs[prog] }

func (d *Device) DeleteProgram(prog render.Handle) {
	if p := d.programs[prog]; p != nil && p == d.current {
		d.current = nil
	}
	delete(d.programs, prog)
}

func (d *Device) UniformFloats(loc int, v []float32) {
	if d.current != nil {
		d.current.setFloats(loc, v)
	}
}

func (d *Device) UniformInts(loc int, v []int32) {
	if d.current != nil {
		d.current.setInts(loc, v)
	}
}

func (d *Device) EnableVertexAttribArray(loc int) {
	if loc >= 0 && loc < maxAttribs {
		d.attribs[loc].enabled = true
	}
}

func (d *Device) DisableVertexAttribArray(loc int) {
	if loc >= 0 && loc < maxAttribs {
		d.attribs[loc].enabled = false
	}
}

func (d *Device) VertexAttribDivisor(loc, divisor int) {
	if loc >= 0 && loc < maxAttribs {
		d.attribs[loc].divisor = divisor
	}
}

func (d *Device) VertexAttribPointer(loc int, buf render.Handle, size int, _ bool) {
	if loc >= 0 && loc < maxAttribs {
		d.attribs[loc].buf = d.buffers[buf]
		d.attribs[loc].size = size
	}
}

func (d *Device) BindIndexBuffer(buf render.Handle) { d.index = d.buffers[buf] }

func (d *Device) CreateTexture() render.Handle {
	h := d.handle()
	d.textures[h] = &texture{}
	return h
}

func (d *Device) TexImage2D(tex render.Handle, img *image.RGBA, p render.TextureParams) {
	if t := d.textures[tex]; t != nil {
		t.img = cloneImage(img)
		t.cube = false
		t.params = p
	}
}

func (d *Device) TexImageCube(tex render.Handle, faces [6]*image.RGBA, p render.TextureParams) {
	if t := d.textures[tex]; t != nil {
		for i, f := range faces {
			t.faces[i] = cloneImage(f)
		}
		t.cube = true
		t.params = p
	}
}

func (d *Device) TexImageFloat(tex render.Handle, size int, data []float32) {
	if t := d.textures[tex]; t != nil {
		t.floats = append(t.floats[:0], data...)
		t.size = size
	}
}

// GenerateMipmap is a no-op; minification samples the base level.
func (d *Device) GenerateMipmap(render.Handle) {}

func (d *Device) DeleteTexture(tex render.Handle) {
	for i, h := range d.units {
		if h == tex {
			d.units[i] = 0
		}
	}
	delete(d.textures, tex)
}

func (d *Device) ActiveTexture(unit int) {
	if unit >= 0 && unit < maxUnits {
		d.activeUnit = unit
	}
}

func (d *Device) BindTexture(tex render.Handle) { d.units[d.activeUnit] = tex }

// unitTexture returns the texture bound to unit, nil for -1 or an empty
// unit.
func (d *Device) unitTexture(unit int) *texture {
	if unit < 0 || unit >= maxUnits {
		return nil
	}
	return d.textures[d.units[unit]]
}

func (d *Device) CreateFramebuffer(tex render.Handle, width, height int, depth bool) render.Handle {
	h := d.handle()
	d.framebuffers[h] = &renderTarget{
		fb:    NewFramebuffer(width, height),
		tex:   d.textures[tex],
		depth: depth,
	}
	return h
}

// BindFramebuffer switches the draw target. The previous render target is
// resolved into its texture first.
func (d *Device) BindFramebuffer(fb render.Handle) {
	if fb == d.bound {
		return
	}
	d.resolve()
	d.bound = fb
	d.target = d.fb
	if rt := d.framebuffers[fb]; rt != nil {
		d.target = rt.fb
	}
}

func (d *Device) DeleteFramebuffer(fb render.Handle) {
	if fb == d.bound {
		d.resolve()
		d.bound = 0
		d.target = d.fb
	}
	delete(d.framebuffers, fb)
}

// resolve copies the bound render target into its color texture. Rows are
// stored top down, so the texture samples with v flipped.
func (d *Device) resolve() {
	rt := d.framebuffers[d.bound]
	if rt == nil || rt.tex == nil {
		return
	}
	rt.tex.img = rt.fb.ToImage()
	rt.tex.cube = false
	rt.tex.params.FlipY = true
}

func (d *Device) Viewport(r image.Rectangle) { d.viewport = r }
func (d *Device) Scissor(r image.Rectangle)  { d.scissor = r }

func (d *Device) Enable(c render.Cap)  { d.caps[c] = true }
func (d *Device) Disable(c render.Cap) { d.caps[c] = false }

func (d *Device) DepthFunc(f gputypes.CompareFunction) { d.depthFunc = f }
func (d *Device) DepthMask(on bool)                    { d.depthMask = on }
func (d *Device) ColorMask(on bool)                    { d.colorMask = on }

// StencilMask is recorded but there is no stencil buffer.
func (d *Device) StencilMask(mask uint32) { d.stencilMask = mask }

func (d *Device) CullFace(mode gputypes.CullMode)    { d.cull = mode }
func (d *Device) FrontFace(f gputypes.FrontFace)     { d.frontFace = f }
func (d *Device) BlendState(b gputypes.BlendState)   { d.blend = b }
func (d *Device) LineWidth(w float32)                { d.lineWidth = w }
func (d *Device) PolygonOffset(factor, units float32) { d.offsetFactor, d.offsetUnits = factor, units }

func (d *Device) ClearColor(c math3d.Color, alpha float32) {
	d.clearColor = math3d.Vec4{X: float64(c.R), Y: float64(c.G), Z: float64(c.B), W: float64(alpha)}
}

// Clear resets the selected buffers inside the scissor box when scissor
// testing is on.
func (d *Device) Clear(mask render.ClearMask) {
	area := d.target.Bounds()
	if d.caps[render.CapScissorTest] {
		area = area.Intersect(d.toRows(d.scissor))
	}
	if mask&render.ClearColorBit != 0 && d.colorMask {
		d.target.Clear(toRGBA(d.clearColor), area)
	}
	if mask&render.ClearDepthBit != 0 && d.depthMask {
		d.target.ClearDepth(area)
	}
}

// toRows converts a bottom-left origin rectangle to framebuffer rows.
func (d *Device) toRows(r image.Rectangle) image.Rectangle {
	h := d.target.Height
	return image.Rect(r.Min.X, h-r.Max.Y, r.Max.X, h-r.Min.Y)
}

func (d *Device) DrawArrays(mode render.DrawMode, first, count int) {
	d.draw(mode, first, count, 1, false)
}

func (d *Device) DrawElements(mode render.DrawMode, count, offset int) {
	d.draw(mode, offset, count, 1, true)
}

func (d *Device) DrawArraysInstanced(mode render.DrawMode, first, count, instances int) {
	d.draw(mode, first, count, instances, false)
}

func (d *Device) DrawElementsInstanced(mode render.DrawMode, count, offset, instances int) {
	d.draw(mode, offset, count, instances, true)
}

// Finish resolves the bound render target.
func (d *Device) Finish() { d.resolve() }

// ResetStats zeroes the counters.
func (d *Device) ResetStats() { d.Stats = Stats{} }

func cloneImage(img *image.RGBA) *image.RGBA {
	if img == nil {
		return nil
	}
	out := &image.RGBA{
		Pix:    slices.Clone(img.Pix),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	return out
}

var _ render.Device = (*Device)(nil)
