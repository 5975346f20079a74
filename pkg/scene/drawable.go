package scene

import (
	"math"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// DrawMode is the triangle topology of a mesh.
type DrawMode int

const (
	TrianglesDrawMode DrawMode = iota
	TriangleStripDrawMode
	TriangleFanDrawMode
)

// Mesh is a triangle drawable.
type Mesh struct {
	Object

	DrawMode DrawMode

	// MorphTargetInfluences weighs each morph target of the geometry.
	MorphTargetInfluences []float32
}

// NewMesh creates a mesh with one or more material slots.
func NewMesh(g *geom.Geometry, materials ...*material.Material) *Mesh {
	m := &Mesh{}
	m.init(m)
	m.Geometry = g
	m.Materials = materials
	m.resetInfluences()
	return m
}

func (m *Mesh) resetInfluences() {
	if m.Geometry == nil {
		return
	}
	if n := len(m.Geometry.MorphAttributes[geom.AttrPosition]); n > 0 {
		m.MorphTargetInfluences = make([]float32, n)
	}
}

func (*Mesh) node() {}

// BindMode controls which matrix skinning is relative to.
type BindMode int

const (
	AttachedBindMode BindMode = iota
	DetachedBindMode
)

// SkinnedMesh is a mesh deformed by a skeleton.
type SkinnedMesh struct {
	Mesh

	Skeleton          *Skeleton
	BindMode          BindMode
	BindMatrix        math3d.Mat4
	BindMatrixInverse math3d.Mat4
}

// NewSkinnedMesh creates a skinned mesh. Call Bind before rendering.
func NewSkinnedMesh(g *geom.Geometry, materials ...*material.Material) *SkinnedMesh {
	m := &SkinnedMesh{}
	m.init(m)
	m.Geometry = g
	m.Materials = materials
	m.BindMatrix = math3d.Identity()
	m.BindMatrixInverse = math3d.Identity()
	m.resetInfluences()
	return m
}

// Bind attaches the skeleton with the given bind matrix.
func (m *SkinnedMesh) Bind(sk *Skeleton, bindMatrix math3d.Mat4) {
	m.Skeleton = sk
	m.BindMatrix = bindMatrix
	m.BindMatrixInverse = bindMatrix.Inverse()
}

// Bone is a joint of a skeleton.
type Bone struct {
	Object
}

// NewBone creates a bone.
func NewBone() *Bone {
	b := &Bone{}
	b.init(b)
	return b
}

func (*Bone) node() {}

// Skeleton holds bones and their inverse bind matrices. BoneMatrices is the
// packed array (16 floats per bone) uploaded to skinned programs.
type Skeleton struct {
	Bones        []*Bone
	BoneInverses []math3d.Mat4
	BoneMatrices []float32

	// BoneTextureSize is the side of the square float texture the bone
	// matrices are packed into, or 0 while no texture is used.
	BoneTextureSize int

	updates   int
	onDispose []func(*Skeleton)
	disposed  bool
}

// NewSkeleton creates a skeleton. When inverses is nil they are computed
// from the bones' current world matrices.
func NewSkeleton(bones []*Bone, inverses []math3d.Mat4) *Skeleton {
	sk := &Skeleton{
		Bones:        bones,
		BoneMatrices: make([]float32, len(bones)*16),
	}
	if len(inverses) == len(bones) {
		sk.BoneInverses = inverses
	} else {
		sk.BoneInverses = make([]math3d.Mat4, len(bones))
		for i, b := range bones {
			sk.BoneInverses[i] = b.MatrixWorld().Inverse()
		}
	}
	return sk
}

// Update packs bone world × inverse bind into BoneMatrices.
func (sk *Skeleton) Update() {
	for i, b := range sk.Bones {
		offset := math3d.Identity()
		if b != nil {
			offset = b.MatrixWorld().Mul(sk.BoneInverses[i])
		}
		for j, v := range offset {
			sk.BoneMatrices[i*16+j] = float32(v)
		}
	}
	sk.updates++
}

// Updates counts calls to Update.
func (sk *Skeleton) Updates() int { return sk.updates }

// OnDispose registers fn to run when the skeleton is disposed.
func (sk *Skeleton) OnDispose(fn func(*Skeleton)) {
	sk.onDispose = append(sk.onDispose, fn)
}

// Dispose releases the bone texture a renderer may hold for the skeleton.
// Calling it more than once has no further effect.
func (sk *Skeleton) Dispose() {
	if sk.disposed {
		return
	}
	sk.disposed = true
	for _, fn := range sk.onDispose {
		fn(sk)
	}
	sk.onDispose = nil
}

// BoneTextureDim returns the square texture side needed to hold the bone
// matrices at four RGBA texels per bone, never smaller than 4.
func (sk *Skeleton) BoneTextureDim() int {
	size := math.Sqrt(float64(len(sk.Bones) * 4))
	return int(math.Max(4, math3d.CeilPowerOfTwo(size)))
}

// LineMode selects how line vertices connect.
type LineMode int

const (
	LineStrip LineMode = iota
	LineSegments
	LineLoop
)

// Line is a polyline drawable.
type Line struct {
	Object
	Mode LineMode
}

// NewLine creates a line strip.
func NewLine(g *geom.Geometry, m *material.Material) *Line {
	l := &Line{}
	l.init(l)
	l.Geometry = g
	l.Materials = []*material.Material{m}
	return l
}

// NewLineSegments creates a line drawn as independent segments.
func NewLineSegments(g *geom.Geometry, m *material.Material) *Line {
	l := NewLine(g, m)
	l.Mode = LineSegments
	return l
}

func (*Line) node() {}

// Points draws each vertex as a point sprite.
type Points struct {
	Object
}

// NewPoints creates a point cloud.
func NewPoints(g *geom.Geometry, m *material.Material) *Points {
	p := &Points{}
	p.init(p)
	p.Geometry = g
	p.Materials = []*material.Material{m}
	return p
}

func (*Points) node() {}

// Sprite is a camera-facing textured quad.
type Sprite struct {
	Object
	Center math3d.Vec2
}

// NewSprite creates a sprite.
func NewSprite(m *material.Material) *Sprite {
	s := &Sprite{Center: math3d.V2(0.5, 0.5)}
	s.init(s)
	s.Materials = []*material.Material{m}
	return s
}

// BoundingSphere returns the world-space sphere used for culling.
func (s *Sprite) BoundingSphere() math3d.Sphere {
	return math3d.Sphere{Radius: math.Sqrt2 / 2}.Transform(s.matrixWorld)
}

func (*Sprite) node() {}

// FlareElement is one ghost of a lens flare.
type FlareElement struct {
	Texture  *material.Texture
	Size     float32
	Distance float32
	Opacity  float32
	Color    math3d.Color
	Blending material.Blending
}

// LensFlare is a set of screen-space flare elements anchored at the
// object's world position.
type LensFlare struct {
	Object
	Elements []FlareElement
}

// NewLensFlare creates an empty lens flare.
func NewLensFlare() *LensFlare {
	f := &LensFlare{}
	f.init(f)
	f.FrustumCulled = false
	return f
}

// AddElement appends a flare element.
func (f *LensFlare) AddElement(tex *material.Texture, size, distance float32, c math3d.Color) {
	f.Elements = append(f.Elements, FlareElement{
		Texture:  tex,
		Size:     size,
		Distance: distance,
		Opacity:  1,
		Color:    c,
		Blending: material.AdditiveBlending,
	})
}

func (*LensFlare) node() {}

// ImmediateObject draws vertex data written fresh every frame. Update (if
// set) fills the buffers and Count before each draw; the renderer resets
// Count afterwards.
type ImmediateObject struct {
	Object

	Positions []float32
	Normals   []float32
	UVs       []float32
	Colors    []float32
	Count     int

	Update func(*ImmediateObject)
}

// NewImmediateObject creates an immediate-mode drawable.
func NewImmediateObject(m *material.Material) *ImmediateObject {
	o := &ImmediateObject{}
	o.init(o)
	o.Materials = []*material.Material{m}
	return o
}

func (*ImmediateObject) node() {}
