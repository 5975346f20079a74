package render

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// Handle names a device object (buffer, program, texture or framebuffer).
// Zero is never a valid object; framebuffer 0 is the default one.
type Handle uint32

// DrawMode is the primitive assembly used by a draw call.
type DrawMode int

const (
	DrawPoints DrawMode = iota
	DrawLines
	DrawLineLoop
	DrawLineStrip
	DrawTriangles
	DrawTriangleStrip
	DrawTriangleFan
)

var drawModeNames = [...]string{
	DrawPoints:        "points",
	DrawLines:         "lines",
	DrawLineLoop:      "line-loop",
	DrawLineStrip:     "line-strip",
	DrawTriangles:     "triangles",
	DrawTriangleStrip: "triangle-strip",
	DrawTriangleFan:   "triangle-fan",
}

func (m DrawMode) String() string {
	if m >= 0 && int(m) < len(drawModeNames) {
		return drawModeNames[m]
	}
	return fmt.Sprintf("DrawMode(%d)", int(m))
}

// Topology returns the WebGPU topology for the mode. Loops and fans have
// no direct equivalent and report false.
func (m DrawMode) Topology() (gputypes.PrimitiveTopology, bool) {
	switch m {
	case DrawPoints:
		return gputypes.PrimitiveTopologyPointList, true
	case DrawLines:
		return gputypes.PrimitiveTopologyLineList, true
	case DrawLineStrip:
		return gputypes.PrimitiveTopologyLineStrip, true
	case DrawTriangles:
		return gputypes.PrimitiveTopologyTriangleList, true
	case DrawTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, true
	}
	return 0, false
}

// Cap is a toggleable pipeline feature.
type Cap int

const (
	CapBlend Cap = iota
	CapCullFace
	CapDepthTest
	CapScissorTest
	CapPolygonOffsetFill
	CapStencilTest

	numCaps
)

// ClearMask selects the buffers Clear resets.
type ClearMask uint8

const (
	ClearColorBit ClearMask = 1 << iota
	ClearDepthBit
	ClearStencilBit
)

// Parameter is an integer device limit.
type Parameter int

const (
	MaxTextureImageUnits Parameter = iota
	MaxVertexTextureImageUnits
	MaxTextureSize
	MaxCubeMapTextureSize
	MaxVertexAttribs
	MaxVertexUniformVectors
	MaxVaryingVectors
	MaxFragmentUniformVectors
)

// TextureParams is the sampling state uploaded with a texture.
type TextureParams struct {
	WrapS, WrapT material.WrapMode
	MagFilter    material.FilterMode
	MinFilter    material.FilterMode
	FlipY        bool
}

// ProgramSource describes a program to link. Uniforms and Attributes list
// every name the renderer may set; the device reports which of them are
// active after linking.
type ProgramSource struct {
	Name       string
	Vertex     string
	Fragment   string
	Defines    map[string]string
	Uniforms   []string
	Attributes []string
}

// Device is the graphics context the renderer drives. Its calls mirror a
// GL-style immediate API; the renderer's State avoids redundant ones.
type Device interface {
	Parameter(p Parameter) int
	Extensions() []string
	// APIVersion is a semantic version string such as "3.3" or "2.0".
	APIVersion() string
	IsContextLost() bool
	SetSize(width, height int)

	CreateBuffer() Handle
	BufferVertices(buf Handle, data []float32)
	BufferIndices(buf Handle, data []uint32)
	DeleteBuffer(buf Handle)

	CreateProgram(src ProgramSource) (Handle, error)
	ActiveUniforms(prog Handle) map[string]int
	ActiveAttributes(prog Handle) map[string]int
	UseProgram(prog Handle)
	DeleteProgram(prog Handle)

	// Uniform slices are only valid for the duration of the call.
	UniformFloats(loc int, v []float32)
	UniformInts(loc int, v []int32)

	EnableVertexAttribArray(loc int)
	DisableVertexAttribArray(loc int)
	VertexAttribDivisor(loc, divisor int)
	VertexAttribPointer(loc int, buf Handle, size int, normalized bool)
	BindIndexBuffer(buf Handle)

	CreateTexture() Handle
	TexImage2D(tex Handle, img *image.RGBA, p TextureParams)
	TexImageCube(tex Handle, faces [6]*image.RGBA, p TextureParams)
	// TexImageFloat uploads a size×size RGBA float texture.
	TexImageFloat(tex Handle, size int, data []float32)
	GenerateMipmap(tex Handle)
	DeleteTexture(tex Handle)
	ActiveTexture(unit int)
	BindTexture(tex Handle)

	// CreateFramebuffer attaches tex as the color buffer.
	CreateFramebuffer(tex Handle, width, height int, depth bool) Handle
	BindFramebuffer(fb Handle)
	DeleteFramebuffer(fb Handle)

	Viewport(r image.Rectangle)
	Scissor(r image.Rectangle)
	Enable(c Cap)
	Disable(c Cap)
	DepthFunc(f gputypes.CompareFunction)
	DepthMask(on bool)
	ColorMask(on bool)
	StencilMask(mask uint32)
	CullFace(mode gputypes.CullMode)
	FrontFace(f gputypes.FrontFace)
	BlendState(b gputypes.BlendState)
	PolygonOffset(factor, units float32)
	LineWidth(w float32)
	ClearColor(c math3d.Color, alpha float32)
	Clear(mask ClearMask)

	DrawArrays(mode DrawMode, first, count int)
	DrawElements(mode DrawMode, count, offset int)
	DrawArraysInstanced(mode DrawMode, first, count, instances int)
	DrawElementsInstanced(mode DrawMode, count, offset, instances int)
	Finish()
}
