package soft

import (
	"math"
	"strconv"

	"github.com/taigrr/tableau/pkg/math3d"
)

// Varying slots interpolated across primitives. Lighting is evaluated per
// vertex, so lit colors travel as varyings.
const (
	vR, vG, vB, vA   = 0, 1, 2, 3 // diffuse color and alpha
	vSR, vSG, vSB    = 4, 5, 6    // added after texturing
	vBR, vBG, vBB    = 7, 8, 9    // back face diffuse
	vBSR, vBSG, vBSB = 10, 11, 12 // back face added
	vU, vV           = 13, 14     // uv
	vFog             = 15         // view depth
	vX, vY, vZ       = 16, 17, 18 // world position, direction or clip z/w
	vPX, vPY, vPZ    = 19, 20, 21 // view position
	numVaryings      = 22
)

type varyings [numVaryings]float64

type vertexOut struct {
	clip math3d.Vec4
	vary varyings
	size float64 // point size in pixels
}

type fogMode int

const (
	fogNone fogMode = iota
	fogLinear
	fogExp2
)

type dirLight struct{ dir, color math3d.Vec3 }

type pointLight struct {
	pos, color      math3d.Vec3
	distance, decay float64
}

type spotLight struct {
	pos, dir, color                 math3d.Vec3
	distance, decay, cone, penumbra float64
}

type hemiLight struct{ dir, sky, ground math3d.Vec3 }

// shader holds a program's uniforms decoded for one draw.
type shader struct {
	d    *Device
	p    *program
	kind shading

	proj, mv, model math3d.Mat4
	normal          math3d.Mat3
	uvTransform     math3d.Mat3

	diffuse   math3d.Vec3
	opacity   float64
	emissive  math3d.Vec3
	specular  math3d.Vec3
	shininess float64
	roughness float64
	metalness float64

	vertexColors bool
	flipSided    bool
	doubleSided  bool
	instancing   bool

	colorMap *texture
	alphaMap *texture
	envMap   *texture
	envFlip  float64

	// fragments with alpha below alphaTest are discarded
	alphaTest float64

	fog        fogMode
	fogColor   math3d.Vec3
	fogNear    float64
	fogFar     float64
	fogDensity float64

	ambient math3d.Vec3
	dirs    []dirLight
	points  []pointLight
	spots   []spotLight
	hemis   []hemiLight

	clipPlanes  []float32
	unionPlanes int

	skinning          bool
	bind, bindInverse math3d.Mat4
	bones             []float32
	morphs            []float32
	morphNormals      bool

	pointSize       float64
	pointScale      float64
	sizeAttenuation bool

	center, scale  math3d.Vec2
	rotation       float64
	screenPosition math3d.Vec3
	flareScale     math3d.Vec2

	packRGBA          bool
	reference         math3d.Vec3
	nearDist, farDist float64
}

func newShader(d *Device, p *program) *shader {
	s := &shader{
		d:            d,
		p:            p,
		kind:         p.shading,
		proj:         p.mat4("projectionMatrix"),
		mv:           p.mat4("modelViewMatrix"),
		model:        p.mat4("modelMatrix"),
		normal:       p.mat3("normalMatrix"),
		uvTransform:  p.mat3("uvTransform"),
		diffuse:      p.vec3("diffuse", math3d.V3(1, 1, 1)),
		opacity:      p.float("opacity", 1),
		emissive:     p.vec3("emissive", math3d.Vec3{}),
		specular:     p.vec3("specular", math3d.V3(0.067, 0.067, 0.067)),
		shininess:    p.float("shininess", 30),
		roughness:    p.float("roughness", 1),
		metalness:    p.float("metalness", 0),
		vertexColors: p.defined("USE_COLOR"),
		flipSided:    p.defined("FLIP_SIDED"),
		doubleSided:  p.defined("DOUBLE_SIDED"),
		instancing:   p.defined("INSTANCING"),
		colorMap:     d.unitTexture(p.int("map", -1)),
		alphaMap:     d.unitTexture(p.int("alphaMap", -1)),
		envFlip:      p.float("tFlip", -1),
		fogColor:     p.vec3("fogColor", math3d.Vec3{}),
		fogNear:      p.float("fogNear", 1),
		fogFar:       p.float("fogFar", 1000),
		fogDensity:   p.float("fogDensity", 0.00025),
		packRGBA:     p.defines["DEPTH_PACKING"] == "rgba",
	}
	if !p.has("diffuse") && p.has("color") {
		s.diffuse = p.vec3("color", s.diffuse)
	}
	if !p.defined("USE_MAP") && s.kind != shadeSprite && s.kind != shadeFlare {
		s.colorMap = nil
	}
	if p.defined("ALPHATEST") {
		s.alphaTest, _ = strconv.ParseFloat(p.defines["ALPHATEST"], 64)
	}
	if !p.defined("USE_ALPHAMAP") {
		s.alphaMap = nil
	}

	switch {
	case s.kind == shadeSprite:
		switch p.int("fogType", 0) {
		case 1:
			s.fog = fogLinear
		case 2:
			s.fog = fogExp2
		}
	case p.defined("USE_FOG") && p.defined("FOG_EXP2"):
		s.fog = fogExp2
	case p.defined("USE_FOG"):
		s.fog = fogLinear
	}

	switch s.kind {
	case shadeLambert, shadePhong, shadeStandard:
		s.readLights()
	case shadeCube:
		s.envMap = d.unitTexture(p.int("tCube", -1))
	case shadeEquirect:
		s.envMap = d.unitTexture(p.int("tEquirect", -1))
	case shadePoints:
		s.pointSize = p.float("size", 1)
		s.pointScale = p.float("scale", 1)
		s.sizeAttenuation = p.defined("USE_SIZEATTENUATION")
	case shadeSprite:
		s.center = p.vec2("center", math3d.V2(0.5, 0.5))
		s.scale = p.vec2("scale", math3d.V2(1, 1))
		s.rotation = p.float("rotation", 0)
	case shadeFlare:
		s.screenPosition = p.vec3("screenPosition", math3d.Vec3{})
		s.flareScale = p.vec2("flareScale", math3d.V2(1, 1))
		s.rotation = p.float("rotation", 0)
	case shadeDistance:
		s.reference = p.vec3("referencePosition", math3d.Vec3{})
		s.nearDist = p.float("nearDistance", 1)
		s.farDist = p.float("farDistance", 1000)
	}

	if n := p.defineInt("NUM_CLIPPING_PLANES"); n > 0 {
		s.clipPlanes = p.floats["clippingPlanes"]
		s.clipPlanes = s.clipPlanes[:min(len(s.clipPlanes), n*4)]
		s.unionPlanes = p.defineInt("UNION_CLIPPING_PLANES")
	}

	if p.defined("USE_SKINNING") {
		s.skinning = true
		s.bind = p.mat4("bindMatrix")
		s.bindInverse = p.mat4("bindMatrixInverse")
		if p.defined("BONE_TEXTURE") {
			if t := d.unitTexture(p.int("boneTexture", -1)); t != nil {
				s.bones = t.floats
			}
		} else {
			s.bones = p.floats["boneMatrices"]
		}
	}
	if p.defined("USE_MORPHTARGETS") {
		s.morphs = p.floats["morphTargetInfluences"]
		s.morphNormals = p.defined("USE_MORPHNORMALS")
	}
	return s
}

func (s *shader) readLights() {
	p := s.p
	s.ambient = p.vec3("ambientLightColor", math3d.Vec3{})
	field := func(array string, i int, name string) string {
		return array + "[" + strconv.Itoa(i) + "]." + name
	}
	for i := range p.defineInt("NUM_DIR_LIGHTS") {
		s.dirs = append(s.dirs, dirLight{
			dir:   p.vec3(field("directionalLights", i, "direction"), math3d.Vec3{}),
			color: p.vec3(field("directionalLights", i, "color"), math3d.Vec3{}),
		})
	}
	for i := range p.defineInt("NUM_POINT_LIGHTS") {
		s.points = append(s.points, pointLight{
			pos:      p.vec3(field("pointLights", i, "position"), math3d.Vec3{}),
			color:    p.vec3(field("pointLights", i, "color"), math3d.Vec3{}),
			distance: p.float(field("pointLights", i, "distance"), 0),
			decay:    p.float(field("pointLights", i, "decay"), 1),
		})
	}
	for i := range p.defineInt("NUM_SPOT_LIGHTS") {
		s.spots = append(s.spots, spotLight{
			pos:      p.vec3(field("spotLights", i, "position"), math3d.Vec3{}),
			dir:      p.vec3(field("spotLights", i, "direction"), math3d.Vec3{}),
			color:    p.vec3(field("spotLights", i, "color"), math3d.Vec3{}),
			distance: p.float(field("spotLights", i, "distance"), 0),
			decay:    p.float(field("spotLights", i, "decay"), 1),
			cone:     p.float(field("spotLights", i, "coneCos"), 0),
			penumbra: p.float(field("spotLights", i, "penumbraCos"), 0),
		})
	}
	for i := range p.defineInt("NUM_HEMI_LIGHTS") {
		s.hemis = append(s.hemis, hemiLight{
			dir:    p.vec3(field("hemisphereLights", i, "direction"), math3d.V3(0, 1, 0)),
			sky:    p.vec3(field("hemisphereLights", i, "skyColor"), math3d.Vec3{}),
			ground: p.vec3(field("hemisphereLights", i, "groundColor"), math3d.Vec3{}),
		})
	}
}

// attr fetches a vertex input for vertex vi of instance inst.
func (s *shader) attr(name string, vi, inst int) ([]float32, bool) {
	loc, ok := s.p.attributes[name]
	if !ok {
		return nil, false
	}
	a := &s.d.attribs[loc]
	if !a.enabled || a.buf == nil || a.size <= 0 {
		return nil, false
	}
	i := vi
	if a.divisor > 0 {
		i = inst / a.divisor
	}
	if i < 0 || (i+1)*a.size > len(a.buf.floats) {
		return nil, false
	}
	return a.buf.floats[i*a.size : (i+1)*a.size], true
}

func (s *shader) vec3Attr(name string, vi, inst int, def math3d.Vec3) math3d.Vec3 {
	v, ok := s.attr(name, vi, inst)
	if !ok {
		return def
	}
	out := def
	if len(v) > 0 {
		out.X = float64(v[0])
	}
	if len(v) > 1 {
		out.Y = float64(v[1])
	}
	if len(v) > 2 {
		out.Z = float64(v[2])
	}
	return out
}

// vertex runs the vertex stage.
func (s *shader) vertex(vi, inst int) vertexOut {
	switch s.kind {
	case shadeSprite:
		return s.spriteVertex(vi, inst)
	case shadeFlare:
		return s.flareVertex(vi, inst)
	}
	return s.meshVertex(vi, inst)
}

func (s *shader) meshVertex(vi, inst int) vertexOut {
	var out vertexOut
	pos := s.vec3Attr("position", vi, inst, math3d.Vec3{})
	n := s.vec3Attr("normal", vi, inst, math3d.V3(0, 0, 1))

	if len(s.morphs) > 0 {
		base, baseN := pos, n
		for i, w := range s.morphs {
			if w == 0 {
				continue
			}
			suffix := strconv.Itoa(i)
			if t, ok := s.attr("morphTarget"+suffix, vi, inst); ok && len(t) >= 3 {
				target := math3d.V3(float64(t[0]), float64(t[1]), float64(t[2]))
				pos = pos.Add(target.Sub(base).Scale(float64(w)))
			}
			if !s.morphNormals {
				continue
			}
			if t, ok := s.attr("morphNormal"+suffix, vi, inst); ok && len(t) >= 3 {
				target := math3d.V3(float64(t[0]), float64(t[1]), float64(t[2]))
				n = n.Add(target.Sub(baseN).Scale(float64(w)))
			}
		}
	}
	if s.instancing {
		pos = pos.Add(s.vec3Attr("offset", vi, inst, math3d.Vec3{}))
	}
	if s.skinning {
		pos, n = s.skin(pos, n, vi, inst)
	}

	mvPos := s.mv.MulVec4(math3d.V4FromV3(pos, 1))
	out.clip = s.proj.MulVec4(mvPos)
	out.vary[vFog] = -mvPos.Z
	out.vary[vPX], out.vary[vPY], out.vary[vPZ] = mvPos.X, mvPos.Y, mvPos.Z

	if uv, ok := s.attr("uv", vi, inst); ok && len(uv) >= 2 {
		t := s.uvTransform.MulVec3(math3d.V3(float64(uv[0]), float64(uv[1]), 1))
		out.vary[vU], out.vary[vV] = t.X, t.Y
	}

	color := s.diffuse
	if s.vertexColors {
		color = color.Mul(s.vec3Attr("color", vi, inst, math3d.V3(1, 1, 1)))
	}
	out.vary[vA] = s.opacity

	switch s.kind {
	case shadeBasic, shadePoints:
		setRGB(&out.vary, vR, color)
		if s.kind == shadePoints {
			out.size = s.pointSize
			if s.sizeAttenuation && mvPos.Z != 0 {
				out.size *= s.pointScale / -mvPos.Z
			}
		}

	case shadeLambert, shadePhong, shadeStandard:
		viewN := s.normal.MulVec3(n).Normalize()
		if s.flipSided {
			viewN = viewN.Negate()
		}
		view := mvPos.Vec3()
		diff, add := s.light(view, viewN, color)
		setRGB(&out.vary, vR, diff)
		setRGB(&out.vary, vSR, add)
		if s.doubleSided {
			diff, add = s.light(view, viewN.Negate(), color)
			setRGB(&out.vary, vBR, diff)
			setRGB(&out.vary, vBSR, add)
		}

	case shadeNormal:
		viewN := s.normal.MulVec3(n).Normalize()
		if s.flipSided {
			viewN = viewN.Negate()
		}
		setRGB(&out.vary, vR, viewN.Scale(0.5).Add(math3d.V3(0.5, 0.5, 0.5)))

	case shadeDepth:
		out.vary[vX], out.vary[vY] = out.clip.Z, out.clip.W

	case shadeDistance:
		setRGB(&out.vary, vX, s.model.MulVec3(pos))

	case shadeShadow:
		setRGB(&out.vary, vR, math3d.Vec3{})

	case shadeCube, shadeEquirect:
		setRGB(&out.vary, vX, s.model.MulVec3Dir(pos))
		out.clip.Z = out.clip.W
	}
	return out
}

// skin blends the bound pose by the four bone influences.
func (s *shader) skin(pos, n math3d.Vec3, vi, inst int) (math3d.Vec3, math3d.Vec3) {
	idx, ok1 := s.attr("skinIndex", vi, inst)
	wts, ok2 := s.attr("skinWeight", vi, inst)
	if !ok1 || !ok2 {
		return pos, n
	}
	var blend math3d.Mat4
	for k := 0; k < len(idx) && k < len(wts); k++ {
		w := float64(wts[k])
		if w == 0 {
			continue
		}
		bone := mat4At(s.bones, int(idx[k]))
		for j := range blend {
			blend[j] += bone[j] * w
		}
	}
	m := s.bindInverse.Mul(blend).Mul(s.bind)
	return m.MulVec3(pos), m.MulVec3Dir(n)
}

// light returns the diffuse and the added (specular plus emissive) color
// at a view-space point.
func (s *shader) light(view, n math3d.Vec3, diffuse math3d.Vec3) (math3d.Vec3, math3d.Vec3) {
	spec := s.specular
	gloss := s.shininess
	if s.kind == shadeStandard {
		spec = math3d.V3(0.04, 0.04, 0.04).Lerp(diffuse, s.metalness)
		diffuse = diffuse.Scale(1 - s.metalness)
		r4 := math.Pow(math.Max(s.roughness, 0.04), 4)
		gloss = math.Max(2/r4-2, 1)
	}
	shiny := s.kind != shadeLambert
	eye := view.Negate().Normalize()

	irradiance := s.ambient
	var reflected math3d.Vec3
	direct := func(l, color math3d.Vec3) {
		dotNL := n.Dot(l)
		if dotNL <= 0 {
			return
		}
		irradiance = irradiance.Add(color.Scale(dotNL))
		if shiny {
			h := l.Add(eye).Normalize()
			d := math.Pow(math.Max(n.Dot(h), 0), gloss) * (gloss + 2) / 8
			reflected = reflected.Add(color.Mul(spec).Scale(dotNL * d))
		}
	}

	for _, dl := range s.dirs {
		direct(dl.dir.Normalize(), dl.color)
	}
	for _, pl := range s.points {
		l := pl.pos.Sub(view)
		atten := punctualFalloff(l.Len(), pl.distance, pl.decay)
		direct(l.Normalize(), pl.color.Scale(atten))
	}
	for _, sl := range s.spots {
		l := sl.pos.Sub(view)
		angle := l.Normalize().Dot(sl.dir.Normalize())
		if angle <= sl.cone {
			continue
		}
		effect := smoothstep(sl.cone, sl.penumbra, angle)
		atten := punctualFalloff(l.Len(), sl.distance, sl.decay)
		direct(l.Normalize(), sl.color.Scale(effect*atten))
	}
	for _, hl := range s.hemis {
		w := 0.5*n.Dot(hl.dir.Normalize()) + 0.5
		irradiance = irradiance.Add(hl.ground.Lerp(hl.sky, w))
	}

	return diffuse.Mul(irradiance), reflected.Add(s.emissive)
}

// punctualFalloff is the distance attenuation of point and spot lights.
// A zero cutoff distance never attenuates.
func punctualFalloff(dist, cutoff, decay float64) float64 {
	if cutoff > 0 && decay > 0 {
		return math.Pow(clamp01(1-dist/cutoff), decay)
	}
	return 1
}

func (s *shader) spriteVertex(vi, inst int) vertexOut {
	var out vertexOut
	pos := s.vec3Attr("position", vi, inst, math3d.Vec3{})
	mvPos := s.mv.MulVec4(math3d.V4(0, 0, 0, 1))

	ax := (pos.X - (s.center.X - 0.5)) * s.scale.X
	ay := (pos.Y - (s.center.Y - 0.5)) * s.scale.Y
	c, sn := math.Cos(s.rotation), math.Sin(s.rotation)
	mvPos.X += c*ax - sn*ay
	mvPos.Y += sn*ax + c*ay

	out.clip = s.proj.MulVec4(mvPos)
	out.vary[vFog] = -mvPos.Z
	s.quadVaryings(&out, vi, inst)
	return out
}

func (s *shader) flareVertex(vi, inst int) vertexOut {
	var out vertexOut
	pos := s.vec3Attr("position", vi, inst, math3d.Vec3{})
	// the quad spans ±0.5; flares scale a ±1 quad
	x, y := pos.X*2, pos.Y*2
	c, sn := math.Cos(s.rotation), math.Sin(s.rotation)
	rx, ry := c*x-sn*y, sn*x+c*y
	out.clip = math3d.V4(
		rx*s.flareScale.X+s.screenPosition.X,
		ry*s.flareScale.Y+s.screenPosition.Y,
		s.screenPosition.Z,
		1,
	)
	s.quadVaryings(&out, vi, inst)
	return out
}

func (s *shader) quadVaryings(out *vertexOut, vi, inst int) {
	if uv, ok := s.attr("uv", vi, inst); ok && len(uv) >= 2 {
		t := s.uvTransform.MulVec3(math3d.V3(float64(uv[0]), float64(uv[1]), 1))
		out.vary[vU], out.vary[vV] = t.X, t.Y
	}
	setRGB(&out.vary, vR, s.diffuse)
	out.vary[vA] = s.opacity
}

// clipped reports whether the clipping planes discard a fragment.
func (s *shader) clipped(v *varyings) bool {
	if len(s.clipPlanes) == 0 {
		return false
	}
	// planes are stored as (normal, constant) and keep n·p + c >= 0
	outside := func(i int) bool {
		pl := s.clipPlanes[i*4 : i*4+4]
		d := float64(pl[0])*v[vPX] + float64(pl[1])*v[vPY] + float64(pl[2])*v[vPZ] + float64(pl[3])
		return d < 0
	}
	n := len(s.clipPlanes) / 4
	union := min(s.unionPlanes, n)
	for i := range union {
		if outside(i) {
			return true
		}
	}
	if union == n {
		return false
	}
	for i := union; i < n; i++ {
		if !outside(i) {
			return false
		}
	}
	return true
}

// fragment runs the fragment stage. It returns false to discard.
func (s *shader) fragment(v *varyings, front bool, tu, tv float64) (math3d.Vec4, bool) {
	if s.clipped(v) {
		return math3d.Vec4{}, false
	}

	switch s.kind {
	case shadeDepth:
		z := 0.5*v[vX]/v[vY] + 0.5
		if s.packRGBA {
			return packDepth(z), true
		}
		return math3d.V4(1-z, 1-z, 1-z, s.opacity), true

	case shadeDistance:
		dist := math3d.V3(v[vX], v[vY], v[vZ]).Distance(s.reference)
		return packDepth(clamp01((dist - s.nearDist) / (s.farDist - s.nearDist))), true

	case shadeCube:
		dir := math3d.V3(s.envFlip*v[vX], v[vY], v[vZ])
		c := s.envMap.sampleCube(dir)
		c.W *= s.opacity
		return c, true

	case shadeEquirect:
		dir := math3d.V3(v[vX], v[vY], v[vZ]).Normalize()
		eu := math.Atan2(dir.Z, dir.X)/(2*math.Pi) + 0.5
		ev := math.Asin(math.Max(-1, math.Min(1, dir.Y)))/math.Pi + 0.5
		c := s.envMap.sample2D(eu, ev)
		c.W *= s.opacity
		return c, true
	}

	r, g, b := v[vR], v[vG], v[vB]
	sr, sg, sb := v[vSR], v[vSG], v[vSB]
	if !front && s.doubleSided && s.kind != shadeBasic && s.kind != shadeNormal {
		r, g, b = v[vBR], v[vBG], v[vBB]
		sr, sg, sb = v[vBSR], v[vBSG], v[vBSB]
	}
	alpha := v[vA]

	if s.colorMap != nil {
		t := s.colorMap.sample2D(tu, tv)
		r, g, b, alpha = r*t.X, g*t.Y, b*t.Z, alpha*t.W
	}
	if s.alphaMap != nil {
		alpha *= s.alphaMap.sample2D(tu, tv).Y
	}
	if alpha < s.alphaTest {
		return math3d.Vec4{}, false
	}
	r, g, b = r+sr, g+sg, b+sb

	if s.fog != fogNone {
		depth := v[vFog]
		var f float64
		if s.fog == fogExp2 {
			f = 1 - math.Exp(-s.fogDensity*s.fogDensity*depth*depth)
		} else {
			f = smoothstep(s.fogNear, s.fogFar, depth)
		}
		f = clamp01(f)
		r += (s.fogColor.X - r) * f
		g += (s.fogColor.Y - g) * f
		b += (s.fogColor.Z - b) * f
	}
	return math3d.V4(r, g, b, alpha), true
}

// pointUV maps a point sprite coordinate through the uv transform.
func (s *shader) pointUV(px, py float64) (float64, float64) {
	t := s.uvTransform.MulVec3(math3d.V3(px, 1-py, 1))
	return t.X, t.Y
}

// packDepth spreads a 0-1 value over four 8-bit channels.
func packDepth(v float64) math3d.Vec4 {
	const upscale = 256.0 / 255.0
	fract := func(x float64) float64 { return x - math.Floor(x) }
	r := math3d.V4(fract(v*256*256*256), fract(v*256*256), fract(v*256), v)
	r.Y, r.Z, r.W = r.Y-r.X/256, r.Z-r.Y/256, r.W-r.Z/256
	return r.Scale(upscale)
}

func setRGB(v *varyings, at int, c math3d.Vec3) {
	v[at], v[at+1], v[at+2] = c.X, c.Y, c.Z
}

func clamp01(x float64) float64 { return math.Max(0, math.Min(1, x)) }

func smoothstep(e0, e1, x float64) float64 {
	if e0 == e1 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}
