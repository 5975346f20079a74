// Package material describes how surfaces are shaded: the shading model,
// its scalar and color parameters, texture maps and pipeline flags.
package material

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/jinzhu/copier"

	"github.com/taigrr/tableau/pkg/math3d"
)

// Model is the shading model of a material.
type Model int

const (
	Basic Model = iota
	Lambert
	Phong
	Toon
	Standard
	Physical
	Normal
	Depth
	Distance
	LineBasic
	LineDashed
	Points
	Sprite
	Shader
	RawShader
)

var modelNames = [...]string{
	Basic:      "basic",
	Lambert:    "lambert",
	Phong:      "phong",
	Toon:       "toon",
	Standard:   "standard",
	Physical:   "physical",
	Normal:     "normal",
	Depth:      "depth",
	Distance:   "distance",
	LineBasic:  "line-basic",
	LineDashed: "line-dashed",
	Points:     "points",
	Sprite:     "sprite",
	Shader:     "shader",
	RawShader:  "raw-shader",
}

func (m Model) String() string {
	if m >= 0 && int(m) < len(modelNames) {
		return modelNames[m]
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// IsShader reports whether the model takes its source from Material.Shader.
func (m Model) IsShader() bool {
	return m == Shader || m == RawShader
}

// Side selects which triangle faces are drawn.
type Side int

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

// Blending is the blend preset.
type Blending int

const (
	NoBlending Blending = iota
	NormalBlending
	AdditiveBlending
	SubtractiveBlending
	MultiplyBlending
	CustomBlending
)

// DepthPacking selects how the depth material encodes depth.
type DepthPacking int

const (
	BasicDepthPacking DepthPacking = iota
	RGBADepthPacking
)

// Combine selects how an environment map mixes with the surface color.
type Combine int

const (
	MultiplyOperation Combine = iota
	MixOperation
	AddOperation
)

// Uniform is a named shader input. UpToDate lets callers skip the upload
// of values they know the program already holds.
type Uniform struct {
	Value    any
	UpToDate bool
}

// ShaderSource is user-supplied program source for Shader and RawShader
// materials.
type ShaderSource struct {
	Vertex   string
	Fragment string
	Defines  map[string]string
	Uniforms map[string]*Uniform

	// Attributes names the vertex inputs beyond the built-in ones.
	Attributes []string

	// UniformsNeedUpdate forces every uniform to upload on the next draw.
	UniformsNeedUpdate bool

	// Clipping enables clipping-plane uniforms for the custom program.
	Clipping bool
}

var nextID atomic.Uint64

// Material is the shading configuration bound to a draw.
type Material struct {
	Name  string
	Model Model

	Visible     bool
	Transparent bool
	Opacity     float32
	AlphaTest   float32

	Side          Side
	ShadowSide    *Side
	Blending      Blending
	BlendState    gputypes.BlendState
	Premultiplied bool

	DepthTest  bool
	DepthWrite bool
	DepthFunc  gputypes.CompareFunction
	ColorWrite bool

	PolygonOffset       bool
	PolygonOffsetFactor float32
	PolygonOffsetUnits  float32

	Fog          bool
	Lights       bool
	Skinning     bool
	MorphTargets bool
	MorphNormals bool
	VertexColors bool
	FlatShading  bool
	Dithering    bool

	Wireframe          bool
	WireframeLineWidth float32

	ClippingPlanes   []math3d.Plane
	ClipIntersection bool
	ClipShadows      bool

	Color             math3d.Color
	Emissive          math3d.Color
	EmissiveIntensity float32
	Specular          math3d.Color
	Shininess         float32

	Roughness          float32
	Metalness          float32
	ClearCoat          float32
	ClearCoatRoughness float32

	Combine           Combine
	Reflectivity      float32
	RefractionRatio   float32
	EnvMapIntensity   float32
	LightMapIntensity float32
	AOMapIntensity    float32

	BumpScale         float32
	NormalScale       math3d.Vec2
	DisplacementScale float32
	DisplacementBias  float32

	LineWidth float32
	DashSize  float32
	GapSize   float32
	Scale     float32

	Size            float32
	SizeAttenuation bool
	Rotation        float32

	DepthPacking      DepthPacking
	ReferencePosition math3d.Vec3
	NearDistance      float32
	FarDistance       float32

	Map             *Texture
	LightMap        *Texture
	AOMap           *Texture
	EmissiveMap     *Texture
	BumpMap         *Texture
	NormalMap       *Texture
	DisplacementMap *Texture
	RoughnessMap    *Texture
	MetalnessMap    *Texture
	AlphaMap        *Texture
	SpecularMap     *Texture
	EnvMap          *Texture
	GradientMap     *Texture

	Shader *ShaderSource

	// NeedsUpdate forces the renderer to rebuild the program on next use.
	NeedsUpdate bool

	id        uint64
	onDispose []func(*Material)
	disposed  bool
}

// New creates a material with the defaults shared by every model.
func New(model Model) *Material {
	m := &Material{
		Model:              model,
		Visible:            true,
		Opacity:            1,
		Blending:           NormalBlending,
		BlendState:         gputypes.BlendStateAlpha(),
		DepthTest:          true,
		DepthWrite:         true,
		DepthFunc:          gputypes.CompareFunctionLessEqual,
		ColorWrite:         true,
		Fog:                true,
		Lights:             true,
		WireframeLineWidth: 1,
		Color:              math3d.ColorRGB(1, 1, 1),
		EmissiveIntensity:  1,
		Specular:           math3d.ColorHex(0x111111),
		Shininess:          30,
		Roughness:          0.5,
		Metalness:          0.5,
		Reflectivity:       1,
		RefractionRatio:    0.98,
		EnvMapIntensity:    1,
		LightMapIntensity:  1,
		AOMapIntensity:     1,
		BumpScale:          1,
		NormalScale:        math3d.V2(1, 1),
		DisplacementScale:  1,
		LineWidth:          1,
		DashSize:           3,
		GapSize:            1,
		Scale:              1,
		Size:               1,
		SizeAttenuation:    true,
		NearDistance:       1,
		FarDistance:        1000,
	}
	m.id = nextID.Add(1)

	switch model {
	case Basic, Normal, LineBasic, LineDashed, Points, Sprite:
		m.Lights = false
	case Depth, Distance:
		m.Fog = false
		m.Lights = false
	case Shader, RawShader:
		m.Fog = false
		m.Lights = false
		m.Shader = &ShaderSource{Uniforms: map[string]*Uniform{}}
	}
	if model == Sprite {
		m.Transparent = true
	}
	return m
}

// NewBasic creates an unlit material of the given color.
func NewBasic(c math3d.Color) *Material {
	m := New(Basic)
	m.Color = c
	return m
}

// NewLambert creates a diffuse-lit material.
func NewLambert(c math3d.Color) *Material {
	m := New(Lambert)
	m.Color = c
	return m
}

// NewPhong creates a specular-lit material.
func NewPhong(c math3d.Color, shininess float32) *Material {
	m := New(Phong)
	m.Color = c
	m.Shininess = shininess
	return m
}

// NewStandard creates a physically based material.
func NewStandard(c math3d.Color, roughness, metalness float32) *Material {
	m := New(Standard)
	m.Color = c
	m.Roughness = roughness
	m.Metalness = metalness
	return m
}

// NewDepth creates the material used to render depth and shadow maps.
func NewDepth(packing DepthPacking, morphing, skinning bool) *Material {
	m := New(Depth)
	m.DepthPacking = packing
	m.MorphTargets = morphing
	m.Skinning = skinning
	return m
}

// NewDistance creates the material used for point-light shadow maps.
func NewDistance(morphing, skinning bool) *Material {
	m := New(Distance)
	m.MorphTargets = morphing
	m.Skinning = skinning
	return m
}

// NewLine creates a line material.
func NewLine(c math3d.Color, width float32) *Material {
	m := New(LineBasic)
	m.Color = c
	m.LineWidth = width
	return m
}

// NewDashed creates a dashed line material.
func NewDashed(c math3d.Color, dash, gap float32) *Material {
	m := New(LineDashed)
	m.Color = c
	m.DashSize = dash
	m.GapSize = gap
	return m
}

// NewPoints creates a point-sprite material.
func NewPoints(c math3d.Color, size float32) *Material {
	m := New(Points)
	m.Color = c
	m.Size = size
	return m
}

// NewShader creates a material with user-supplied source.
func NewShader(vertex, fragment string, uniforms map[string]*Uniform) *Material {
	m := New(Shader)
	m.Shader.Vertex = vertex
	m.Shader.Fragment = fragment
	if uniforms != nil {
		m.Shader.Uniforms = uniforms
	}
	return m
}

// ID returns the unique material id.
func (m *Material) ID() uint64 { return m.id }

// IsTransparent reports whether the material renders in the transparent
// pass. Depth materials become transparent below full opacity.
func (m *Material) IsTransparent() bool {
	if m.Model == Depth {
		return m.Opacity < 1
	}
	return m.Transparent
}

// Clone copies the configuration into a new material with a fresh id.
// Textures are shared. Unexported state (id, dispose observers) is skipped
// by copier.
func (m *Material) Clone() *Material {
	out := &Material{}
	if err := copier.CopyWithOption(out, m, copier.Option{DeepCopy: false}); err != nil {
		// copier only fails on mismatched kinds, which cannot happen here.
		panic(err)
	}
	out.ClippingPlanes = append([]math3d.Plane(nil), m.ClippingPlanes...)
	if m.Shader != nil {
		src := *m.Shader
		src.Uniforms = make(map[string]*Uniform, len(m.Shader.Uniforms))
		for k, u := range m.Shader.Uniforms {
			cu := *u
			src.Uniforms[k] = &cu
		}
		src.Defines = make(map[string]string, len(m.Shader.Defines))
		for k, v := range m.Shader.Defines {
			src.Defines[k] = v
		}
		out.Shader = &src
	}
	out.id = nextID.Add(1)
	return out
}

// OnDispose registers fn to run when the material is disposed.
func (m *Material) OnDispose(fn func(*Material)) {
	m.onDispose = append(m.onDispose, fn)
}

// Dispose notifies observers (the renderer's program cache) that the
// material is gone. Calling it more than once has no further effect.
func (m *Material) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	for _, fn := range m.onDispose {
		fn(m)
	}
	m.onDispose = nil
}
