package render

import (
	"image"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/taigrr/tableau/pkg/math3d"
)

type drawCall struct {
	mode      DrawMode
	first     int
	count     int
	instances int
	indexed   bool
	program   Handle
}

type fakeProgram struct {
	src        ProgramSource
	uniforms   map[string]int
	attributes map[string]int
}

// fakeDevice records the calls the renderer makes. Every uniform and
// attribute a program declares is reported active.
type fakeDevice struct {
	params     map[Parameter]int
	extensions []string
	version    string
	lost       bool
	linkErr    error

	next     Handle
	programs map[Handle]*fakeProgram
	current  Handle

	draws          []drawCall
	uniforms       map[string][]float32
	ints           map[string][]int32
	floatTextures  map[Handle]int
	deletedProgs   []Handle
	deletedBufs    []Handle
	deletedTexs    []Handle
	clears         int
	framebuffers   []Handle
	createdBuffers int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		params: map[Parameter]int{
			MaxTextureImageUnits:       16,
			MaxVertexTextureImageUnits: 16,
			MaxTextureSize:             4096,
			MaxCubeMapTextureSize:      4096,
			MaxVertexAttribs:           16,
			MaxVertexUniformVectors:    1024,
			MaxVaryingVectors:          16,
			MaxFragmentUniformVectors:  1024,
		},
		version:       "3.3",
		programs:      map[Handle]*fakeProgram{},
		uniforms:      map[string][]float32{},
		ints:          map[string][]int32{},
		floatTextures: map[Handle]int{},
	}
}

func (d *fakeDevice) handle() Handle {
	d.next++
	return d.next
}

func (d *fakeDevice) uniformName(loc int) string {
	p := d.programs[d.current]
	if p == nil {
		return ""
	}
	for name, l := range p.uniforms {
		if l == loc {
			return name
		}
	}
	return ""
}

func (d *fakeDevice) Parameter(p Parameter) int { return d.params[p] }
func (d *fakeDevice) Extensions() []string      { return d.extensions }
func (d *fakeDevice) APIVersion() string        { return d.version }
func (d *fakeDevice) IsContextLost() bool       { return d.lost }
func (d *fakeDevice) SetSize(int, int)          {}

func (d *fakeDevice) CreateBuffer() Handle {
	d.createdBuffers++
	return d.handle()
}
func (d *fakeDevice) BufferVertices(Handle, []float32) {}
func (d *fakeDevice) BufferIndices(Handle, []uint32)   {}
func (d *fakeDevice) DeleteBuffer(h Handle)            { d.deletedBufs = append(d.deletedBufs, h) }

func (d *fakeDevice) CreateProgram(src ProgramSource) (Handle, error) {
	if d.linkErr != nil {
		return 0, d.linkErr
	}
	p := &fakeProgram{src: src, uniforms: map[string]int{}, attributes: map[string]int{}}
	for i, name := range src.Uniforms {
		p.uniforms[name] = i
	}
	for i, name := range src.Attributes {
		p.attributes[name] = i
	}
	h := d.handle()
	d.programs[h] = p
	return h, nil
}

func (d *fakeDevice) ActiveUniforms(prog Handle) map[string]int   { return d.programs[prog].uniforms }
func (d *fakeDevice) ActiveAttributes(prog Handle) map[string]int { return d.programs[prog].attributes }
func (d *fakeDevice) UseProgram(prog Handle)                      { d.current = prog }

func (d *fakeDevice) DeleteProgram(prog Handle) {
	d.deletedProgs = append(d.deletedProgs, prog)
	delete(d.programs, prog)
}

func (d *fakeDevice) UniformFloats(loc int, v []float32) {
	d.uniforms[d.uniformName(loc)] = slices.Clone(v)
}

func (d *fakeDevice) UniformInts(loc int, v []int32) {
	d.ints[d.uniformName(loc)] = slices.Clone(v)
}

func (d *fakeDevice) EnableVertexAttribArray(int)                {}
func (d *fakeDevice) DisableVertexAttribArray(int)               {}
func (d *fakeDevice) VertexAttribDivisor(int, int)               {}
func (d *fakeDevice) VertexAttribPointer(int, Handle, int, bool) {}
func (d *fakeDevice) BindIndexBuffer(Handle)                     {}

func (d *fakeDevice) CreateTexture() Handle                              { return d.handle() }
func (d *fakeDevice) TexImage2D(Handle, *image.RGBA, TextureParams)      {}
func (d *fakeDevice) TexImageCube(Handle, [6]*image.RGBA, TextureParams) {}
func (d *fakeDevice) TexImageFloat(tex Handle, size int, _ []float32)    { d.floatTextures[tex] = size }
func (d *fakeDevice) GenerateMipmap(Handle)                              {}
func (d *fakeDevice) DeleteTexture(h Handle)                             { d.deletedTexs = append(d.deletedTexs, h) }
func (d *fakeDevice) ActiveTexture(int)                                  {}
func (d *fakeDevice) BindTexture(Handle)                                 {}
func (d *fakeDevice) CreateFramebuffer(Handle, int, int, bool) Handle    { return d.handle() }
func (d *fakeDevice) BindFramebuffer(fb Handle)                          { d.framebuffers = append(d.framebuffers, fb) }
func (d *fakeDevice) DeleteFramebuffer(Handle)                           {}
func (d *fakeDevice) Viewport(image.Rectangle)                           {}
func (d *fakeDevice) Scissor(image.Rectangle)                            {}
func (d *fakeDevice) Enable(Cap)                                         {}
func (d *fakeDevice) Disable(Cap)                                        {}
func (d *fakeDevice) DepthFunc(gputypes.CompareFunction)                 {}
func (d *fakeDevice) DepthMask(bool)                                     {}
func (d *fakeDevice) ColorMask(bool)                                     {}
func (d *fakeDevice) StencilMask(uint32)                                 {}
func (d *fakeDevice) CullFace(gputypes.CullMode)                         {}
func (d *fakeDevice) FrontFace(gputypes.FrontFace)                       {}
func (d *fakeDevice) BlendState(gputypes.BlendState)                     {}
func (d *fakeDevice) PolygonOffset(float32, float32)                     {}
func (d *fakeDevice) LineWidth(float32)                                  {}
func (d *fakeDevice) ClearColor(math3d.Color, float32)                   {}
func (d *fakeDevice) Clear(ClearMask)                                    { d.clears++ }
func (d *fakeDevice) Finish()                                            {}

func (d *fakeDevice) DrawArrays(mode DrawMode, first, count int) {
	d.draws = append(d.draws, drawCall{mode: mode, first: first, count: count, instances: 1, program: d.current})
}

func (d *fakeDevice) DrawElements(mode DrawMode, count, offset int) {
	d.draws = append(d.draws, drawCall{mode: mode, first: offset, count: count, instances: 1, indexed: true, program: d.current})
}

func (d *fakeDevice) DrawArraysInstanced(mode DrawMode, first, count, instances int) {
	d.draws = append(d.draws, drawCall{mode: mode, first: first, count: count, instances: instances, program: d.current})
}

func (d *fakeDevice) DrawElementsInstanced(mode DrawMode, count, offset, instances int) {
	d.draws = append(d.draws, drawCall{mode: mode, first: offset, count: count, instances: instances, indexed: true, program: d.current})
}

var _ Device = (*fakeDevice)(nil)
