package soft

import (
	"slices"
	"strconv"
	"strings"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/render"
)

// shading selects the fixed-function pipeline that stands in for a
// program's sources.
type shading int

const (
	shadeBasic shading = iota
	shadeLambert
	shadePhong
	shadeStandard
	shadeNormal
	shadeDepth
	shadeDistance
	shadeShadow
	shadeCube
	shadeEquirect
	shadePoints
	shadeSprite
	shadeFlare
)

var shadingByName = map[string]shading{
	"basic":        shadeBasic,
	"dashed":       shadeBasic,
	"lambert":      shadeLambert,
	"phong":        shadePhong,
	"toon":         shadePhong,
	"standard":     shadeStandard,
	"physical":     shadeStandard,
	"normal":       shadeNormal,
	"depth":        shadeDepth,
	"distanceRGBA": shadeDistance,
	"shadow":       shadeShadow,
	"cube":         shadeCube,
	"equirect":     shadeEquirect,
	"points":       shadePoints,
	"sprite":       shadeSprite,
	"flare":        shadeFlare,
}

// vertex inputs the pipelines read, in location order
var readAttributes = []string{
	geom.AttrPosition, geom.AttrNormal, geom.AttrUV, geom.AttrColor,
	geom.AttrSkinIndex, geom.AttrSkinWeight, "offset",
}

// program is a linked program: its pipeline, defines and the uniform
// values last uploaded.
type program struct {
	name    string
	shading shading
	defines map[string]string

	uniforms   map[string]int
	attributes map[string]int
	names      []string // by location

	floats map[string][]float32
	ints   map[string][]int32
}

func newProgram(src render.ProgramSource) *program {
	p := &program{
		name:       src.Name,
		defines:    src.Defines,
		uniforms:   make(map[string]int, len(src.Uniforms)),
		attributes: map[string]int{},
		names:      src.Uniforms,
		floats:     map[string][]float32{},
		ints:       map[string][]int32{},
	}
	for i, name := range src.Uniforms {
		p.uniforms[name] = i
	}

	kind, ok := shadingByName[src.Name]
	switch {
	case ok:
	case p.has("tCube"):
		kind = shadeCube
	case p.has("tEquirect"):
		kind = shadeEquirect
	default:
		kind = shadeBasic
	}
	p.shading = kind

	// only inputs the pipeline reads are active
	loc := 0
	for _, name := range src.Attributes {
		if loc == maxAttribs {
			break
		}
		if isRead(name) {
			p.attributes[name] = loc
			loc++
		}
	}
	return p
}

func isRead(name string) bool {
	return slices.Contains(readAttributes, name) ||
		strings.HasPrefix(name, "morphTarget") || strings.HasPrefix(name, "morphNormal")
}

func (p *program) has(name string) bool {
	_, ok := p.uniforms[name]
	return ok
}

func (p *program) setFloats(loc int, v []float32) {
	if loc < 0 || loc >= len(p.names) {
		return
	}
	name := p.names[loc]
	p.floats[name] = append(p.floats[name][:0], v...)
}

func (p *program) setInts(loc int, v []int32) {
	if loc < 0 || loc >= len(p.names) {
		return
	}
	name := p.names[loc]
	p.ints[name] = append(p.ints[name][:0], v...)
}

func (p *program) defined(name string) bool {
	_, ok := p.defines[name]
	return ok
}

func (p *program) defineInt(name string) int {
	n, _ := strconv.Atoi(p.defines[name])
	return n
}

func (p *program) float(name string, def float64) float64 {
	if v := p.floats[name]; len(v) >= 1 {
		return float64(v[0])
	}
	return def
}

func (p *program) int(name string, def int) int {
	if v := p.ints[name]; len(v) >= 1 {
		return int(v[0])
	}
	return def
}

func (p *program) vec2(name string, def math3d.Vec2) math3d.Vec2 {
	if v := p.floats[name]; len(v) >= 2 {
		return math3d.V2(float64(v[0]), float64(v[1]))
	}
	return def
}

func (p *program) vec3(name string, def math3d.Vec3) math3d.Vec3 {
	if v := p.floats[name]; len(v) >= 3 {
		return math3d.V3(float64(v[0]), float64(v[1]), float64(v[2]))
	}
	return def
}

func (p *program) mat3(name string) math3d.Mat3 {
	v := p.floats[name]
	if len(v) < 9 {
		return math3d.Identity3()
	}
	var m math3d.Mat3
	for i := range m {
		m[i] = float64(v[i])
	}
	return m
}

func (p *program) mat4(name string) math3d.Mat4 {
	v := p.floats[name]
	if len(v) < 16 {
		return math3d.Identity()
	}
	return mat4At(v, 0)
}

// mat4At reads a column-major matrix at v[i*16:].
func mat4At(v []float32, i int) math3d.Mat4 {
	var m math3d.Mat4
	if (i+1)*16 > len(v) || i < 0 {
		return math3d.Identity()
	}
	for j := range m {
		m[j] = float64(v[i*16+j])
	}
	return m
}
