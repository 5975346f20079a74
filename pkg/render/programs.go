package render

import (
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strconv"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/scene"
	"github.com/taigrr/tableau/pkg/shaderlib"
)

// Program is a linked device program shared by every material whose
// parameters produce the same Code.
type Program struct {
	ID        int
	Name      string
	Code      string
	UsedTimes int

	handle     Handle
	uniforms   map[string]int
	attributes map[string]int
	names      []string
	attrNames  []string
	released   bool
}

// Uniform reports the location of an active uniform.
func (p *Program) Uniform(name string) (int, bool) {
	loc, ok := p.uniforms[name]
	return loc, ok
}

// Attribute reports the location of an active vertex attribute.
func (p *Program) Attribute(name string) (int, bool) {
	loc, ok := p.attributes[name]
	return loc, ok
}

// Uniforms built into every program besides the material's own.
var objectUniforms = []string{
	"projectionMatrix", "modelViewMatrix", "normalMatrix", "modelMatrix",
	"viewMatrix", "cameraPosition", "logDepthBufFC",
	"bindMatrix", "bindMatrixInverse", "boneTexture", "boneTextureSize", "boneMatrices",
	"morphTargetInfluences", "toneMappingExposure", "toneMappingWhitePoint",
}

// programParameters is everything that changes the generated program. Two
// materials with equal parameters share a program.
type programParameters struct {
	ShaderID  shaderlib.ID
	ShaderVer uint64
	Custom    string
	Raw       bool
	Precision string

	SupportsVertexTextures bool
	Instancing             bool
	GammaOutput            bool

	Map, EnvMap, LightMap, AOMap, EmissiveMap, BumpMap, NormalMap bool
	DisplacementMap, SpecularMap, RoughnessMap, MetalnessMap     bool
	GradientMap, AlphaMap                                        bool
	EnvMapMode                                                   material.Mapping
	Combine                                                      material.Combine

	VertexColors    bool
	Fog, FogExp2    bool
	FlatShading     bool
	SizeAttenuation bool
	LogDepth        bool

	Skinning         bool
	MaxBones         int
	UseVertexTexture bool

	MorphTargets    bool
	MorphNormals    bool
	MaxMorphTargets int
	MaxMorphNormals int

	NumDirLights, NumPointLights, NumSpotLights, NumHemiLights int
	NumClippingPlanes, NumClipIntersection                    int

	ShadowMapEnabled bool
	ShadowMapType    ShadowMapType

	ToneMapping             ToneMapping
	PhysicallyCorrectLights bool
	PremultipliedAlpha      bool
	AlphaTest               float32
	DoubleSided, FlipSided  bool
	DepthPacking            material.DepthPacking
	Dithering               bool
}

// shaderIDFor maps a material model to its built-in shader.
func shaderIDFor(m material.Model) (shaderlib.ID, bool) {
	switch m {
	case material.Basic, material.LineBasic:
		return shaderlib.Basic, true
	case material.Lambert:
		return shaderlib.Lambert, true
	case material.Phong, material.Toon:
		return shaderlib.Phong, true
	case material.Standard:
		return shaderlib.Standard, true
	case material.Physical:
		return shaderlib.Physical, true
	case material.Normal:
		return shaderlib.Normal, true
	case material.Depth:
		return shaderlib.Depth, true
	case material.Distance:
		return shaderlib.DistanceRGBA, true
	case material.LineDashed:
		return shaderlib.Dashed, true
	case material.Points:
		return shaderlib.Points, true
	case material.Sprite:
		return shaderlib.Sprite, true
	}
	return 0, false
}

// maxBones is how many bone matrices the program must hold, or 0 when the
// skeleton does not fit in vertex uniforms.
func (r *Renderer) maxBones(obj scene.Node) int {
	sm, ok := obj.(*scene.SkinnedMesh)
	if !ok || sm.Skeleton == nil {
		return 0
	}
	bones := len(sm.Skeleton.Bones)
	if r.caps.FloatVertexTextures {
		return 1024
	}
	// 16 vectors are taken by matrices and 4 more by other uniforms.
	n := (r.caps.MaxVertexUniforms - 20) / 4
	if n < bones {
		Logger().Warn("skeleton has more bones than the device supports",
			"bones", bones, "max", n)
		return 0
	}
	return bones
}

func (r *Renderer) programParameters(m *material.Material, fog *scene.Fog, nClip, nIntersect int, obj scene.Node) (programParameters, error) {
	p := programParameters{
		Precision:               r.caps.Precision,
		SupportsVertexTextures:  r.caps.VertexTextures,
		GammaOutput:             r.GammaOutput,
		LogDepth:                r.caps.LogarithmicDepthBuffer,
		MaxMorphTargets:         r.MaxMorphTargets,
		MaxMorphNormals:         r.MaxMorphNormals,
		NumClippingPlanes:       nClip,
		NumClipIntersection:     nIntersect,
		ShadowMapType:           r.ShadowMap.Type,
		ToneMapping:             r.ToneMapping,
		PhysicallyCorrectLights: r.PhysicallyCorrectLights,
		PremultipliedAlpha:      m.Premultiplied,
		AlphaTest:               m.AlphaTest,
		DoubleSided:             m.Side == material.DoubleSide,
		FlipSided:               m.Side == material.BackSide,
		DepthPacking:            m.DepthPacking,
		Dithering:               m.Dithering,
		VertexColors:            m.VertexColors,
		FlatShading:             m.FlatShading,
		SizeAttenuation:         m.SizeAttenuation,
		Combine:                 m.Combine,
	}

	switch {
	case m.Model.IsShader():
		if m.Shader == nil || m.Shader.Vertex == "" || m.Shader.Fragment == "" {
			return p, fmt.Errorf("%w: %v material %q has no source", ErrUnknownShader, m.Model, m.Name)
		}
		p.Custom = m.Shader.Vertex + "\x00" + m.Shader.Fragment
		for _, k := range slices.Sorted(maps.Keys(m.Shader.Defines)) {
			p.Custom += "\x00" + k + "=" + m.Shader.Defines[k]
		}
		p.Raw = m.Model == material.RawShader
	default:
		id, ok := shaderIDFor(m.Model)
		if !ok {
			return p, fmt.Errorf("%w: %v", ErrUnknownShader, m.Model)
		}
		p.ShaderID = id
		p.ShaderVer = r.lib.Version()
	}

	p.Map = m.Map != nil
	p.EnvMap = m.EnvMap != nil
	if m.EnvMap != nil {
		p.EnvMapMode = m.EnvMap.Mapping
	}
	p.LightMap = m.LightMap != nil
	p.AOMap = m.AOMap != nil
	p.EmissiveMap = m.EmissiveMap != nil
	p.BumpMap = m.BumpMap != nil
	p.NormalMap = m.NormalMap != nil
	p.DisplacementMap = m.DisplacementMap != nil
	p.SpecularMap = m.SpecularMap != nil
	p.RoughnessMap = m.RoughnessMap != nil
	p.MetalnessMap = m.MetalnessMap != nil
	p.GradientMap = m.GradientMap != nil
	p.AlphaMap = m.AlphaMap != nil

	if fog != nil && m.Fog {
		p.Fog = true
		p.FogExp2 = fog.Kind == scene.FogExp2
	}

	p.MaxBones = r.maxBones(obj)
	p.Skinning = m.Skinning && p.MaxBones > 0
	p.UseVertexTexture = p.Skinning && r.caps.FloatVertexTextures

	if sm, ok := meshOf(obj); ok && sm.Geometry != nil {
		p.Instancing = sm.Geometry.Instanced
	}
	p.MorphTargets = m.MorphTargets
	p.MorphNormals = m.MorphNormals

	if m.Lights {
		p.NumDirLights = r.lights.hash.directional
		p.NumPointLights = r.lights.hash.point
		p.NumSpotLights = r.lights.hash.spot
		p.NumHemiLights = r.lights.hash.hemi
		p.ShadowMapEnabled = r.ShadowMap.Enabled && len(r.shadows) > 0
	}
	return p, nil
}

func meshOf(obj scene.Node) (*scene.Mesh, bool) {
	switch o := obj.(type) {
	case *scene.Mesh:
		return o, true
	case *scene.SkinnedMesh:
		return &o.Mesh, true
	}
	return nil, false
}

// fingerprint hashes the parameters into the key programs are shared by.
func (p programParameters) fingerprint() string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%+v", p) // fnv.Write never returns an error
	return strconv.FormatUint(h.Sum64(), 16)
}

// defines turns the parameters into preprocessor-style defines for the
// device.
func (p programParameters) defines() map[string]string {
	d := map[string]string{}
	flag := func(name string, on bool) {
		if on {
			d[name] = ""
		}
	}
	flag("USE_MAP", p.Map)
	flag("USE_ENVMAP", p.EnvMap)
	flag("USE_LIGHTMAP", p.LightMap)
	flag("USE_AOMAP", p.AOMap)
	flag("USE_EMISSIVEMAP", p.EmissiveMap)
	flag("USE_BUMPMAP", p.BumpMap)
	flag("USE_NORMALMAP", p.NormalMap)
	flag("USE_DISPLACEMENTMAP", p.DisplacementMap)
	flag("USE_SPECULARMAP", p.SpecularMap)
	flag("USE_ROUGHNESSMAP", p.RoughnessMap)
	flag("USE_METALNESSMAP", p.MetalnessMap)
	flag("USE_GRADIENTMAP", p.GradientMap)
	flag("USE_ALPHAMAP", p.AlphaMap)
	flag("USE_COLOR", p.VertexColors)
	flag("USE_FOG", p.Fog)
	flag("FOG_EXP2", p.FogExp2)
	flag("FLAT_SHADED", p.FlatShading)
	flag("USE_SIZEATTENUATION", p.SizeAttenuation)
	flag("USE_LOGDEPTHBUF", p.LogDepth)
	flag("USE_SKINNING", p.Skinning)
	flag("BONE_TEXTURE", p.UseVertexTexture)
	flag("USE_MORPHTARGETS", p.MorphTargets)
	flag("USE_MORPHNORMALS", p.MorphNormals)
	flag("USE_SHADOWMAP", p.ShadowMapEnabled)
	flag("PHYSICALLY_CORRECT_LIGHTS", p.PhysicallyCorrectLights)
	flag("PREMULTIPLIED_ALPHA", p.PremultipliedAlpha)
	flag("DOUBLE_SIDED", p.DoubleSided)
	flag("FLIP_SIDED", p.FlipSided)
	flag("DITHERING", p.Dithering)
	flag("GAMMA_OUTPUT", p.GammaOutput)
	flag("INSTANCING", p.Instancing)
	if p.Skinning {
		d["MAX_BONES"] = strconv.Itoa(p.MaxBones)
	}
	if p.ToneMapping != NoToneMapping {
		d["TONE_MAPPING"] = p.ToneMapping.String()
	}
	if p.ShadowMapEnabled {
		d["SHADOWMAP_TYPE"] = p.ShadowMapType.String()
	}
	if p.DepthPacking == material.RGBADepthPacking {
		d["DEPTH_PACKING"] = "rgba"
	}
	if p.AlphaTest > 0 {
		d["ALPHATEST"] = strconv.FormatFloat(float64(p.AlphaTest), 'g', -1, 32)
	}
	d["PRECISION"] = p.Precision
	d["NUM_DIR_LIGHTS"] = strconv.Itoa(p.NumDirLights)
	d["NUM_POINT_LIGHTS"] = strconv.Itoa(p.NumPointLights)
	d["NUM_SPOT_LIGHTS"] = strconv.Itoa(p.NumSpotLights)
	d["NUM_HEMI_LIGHTS"] = strconv.Itoa(p.NumHemiLights)
	d["NUM_CLIPPING_PLANES"] = strconv.Itoa(p.NumClippingPlanes)
	d["UNION_CLIPPING_PLANES"] = strconv.Itoa(p.NumClippingPlanes - p.NumClipIntersection)
	return d
}

// attributeNames lists the vertex inputs a program may read.
func (p programParameters) attributeNames(extra []string) []string {
	names := []string{geom.AttrPosition, geom.AttrNormal, geom.AttrUV, "uv2", geom.AttrColor}
	if p.Skinning {
		names = append(names, geom.AttrSkinIndex, geom.AttrSkinWeight)
	}
	if p.MorphTargets {
		for i := range p.MaxMorphTargets {
			names = append(names, "morphTarget"+strconv.Itoa(i))
		}
	}
	if p.MorphNormals {
		for i := range p.MaxMorphNormals {
			names = append(names, "morphNormal"+strconv.Itoa(i))
		}
	}
	names = append(names, extra...)
	slices.Sort(names)
	return slices.Compact(names)
}

// programCache links programs and shares them between materials.
type programCache struct {
	dev      Device
	compiler Compiler
	info     *Info
	programs map[string]*Program
	nextID   int
}

func newProgramCache(dev Device, info *Info) *programCache {
	return &programCache{dev: dev, info: info, programs: map[string]*Program{}}
}

// acquire returns the program for code, linking it from src on first use.
func (c *programCache) acquire(code string, src ProgramSource) (*Program, error) {
	if p, ok := c.programs[code]; ok {
		p.UsedTimes++
		return p, nil
	}
	if c.compiler != nil {
		if err := c.compiler.Validate(src); err != nil {
			return nil, err
		}
	}
	h, err := c.dev.CreateProgram(src)
	if err != nil {
		return nil, fmt.Errorf("failed to link program %s: %w", src.Name, err)
	}
	c.nextID++
	p := &Program{
		ID:         c.nextID,
		Name:       src.Name,
		Code:       code,
		UsedTimes:  1,
		handle:     h,
		uniforms:   c.dev.ActiveUniforms(h),
		attributes: c.dev.ActiveAttributes(h),
	}
	p.names = slices.Sorted(maps.Keys(p.uniforms))
	p.attrNames = slices.Sorted(maps.Keys(p.attributes))
	c.programs[code] = p
	c.info.Programs = len(c.programs)
	Logger().Debug("program linked", "name", p.Name, "id", p.ID, "uniforms", len(p.uniforms))
	return p, nil
}

// release drops one use of p and deletes it from the device once unused.
// Releasing an already deleted program does nothing.
func (c *programCache) release(p *Program) {
	if p == nil || p.released {
		return
	}
	p.UsedTimes--
	if p.UsedTimes > 0 {
		return
	}
	p.released = true
	delete(c.programs, p.Code)
	c.dev.DeleteProgram(p.handle)
	c.info.Programs = len(c.programs)
	Logger().Debug("program released", "name", p.Name, "id", p.ID)
}

func (c *programCache) dispose() {
	for _, p := range c.programs {
		p.released = true
		c.dev.DeleteProgram(p.handle)
	}
	clear(c.programs)
	c.info.Programs = 0
}
