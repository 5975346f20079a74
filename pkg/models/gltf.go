// Package models loads glTF 2.0 files (.gltf and .glb) into scene graphs.
package models

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/render"
	"github.com/taigrr/tableau/pkg/scene"
)

// ErrNoScene is returned for documents without any scene or node.
var ErrNoScene = errors.New("models: document has no scene")

// GLTFLoader turns glTF documents into scene nodes.
type GLTFLoader struct {
	// CalculateNormals fills in vertex normals for triangle primitives
	// that ship without them.
	CalculateNormals bool

	dir       string
	doc       *gltf.Document
	materials map[int]*material.Material
	textures  map[int]*material.Texture
}

// NewGLTFLoader creates a loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{CalculateNormals: true}
}

// Load reads a glTF or GLB file with the default options.
func Load(path string) (*scene.Group, error) {
	return NewGLTFLoader().Load(path)
}

// Load reads path and returns its default scene as a group. External
// buffers and images resolve relative to the file.
func (l *GLTFLoader) Load(path string) (*scene.Group, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	root, err := l.Decode(doc, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	root.Name = filepath.Base(path)
	return root, nil
}

// Decode builds the default scene of doc. dir is where relative image
// URIs are looked up.
func (l *GLTFLoader) Decode(doc *gltf.Document, dir string) (*scene.Group, error) {
	l.doc, l.dir = doc, dir
	l.materials = map[int]*material.Material{}
	l.textures = map[int]*material.Texture{}
	defer func() { l.doc = nil }()

	roots, err := l.rootNodes()
	if err != nil {
		return nil, err
	}
	group := scene.NewGroup()
	for _, idx := range roots {
		n, err := l.node(idx, 0)
		if err != nil {
			return nil, err
		}
		group.Add(n)
	}
	render.Logger().Debug("gltf decoded", "nodes", len(doc.Nodes), "meshes", len(doc.Meshes),
		"materials", len(l.materials), "textures", len(l.textures))
	return group, nil
}

// rootNodes lists the top-level nodes of the default scene. Documents
// without scenes fall back to every node that is nobody's child.
func (l *GLTFLoader) rootNodes() ([]int, error) {
	doc := l.doc
	if len(doc.Scenes) > 0 {
		sc := 0
		if doc.Scene != nil {
			sc = *doc.Scene
		}
		if sc < 0 || sc >= len(doc.Scenes) {
			return nil, fmt.Errorf("scene %d out of range", sc)
		}
		return doc.Scenes[sc].Nodes, nil
	}
	if len(doc.Nodes) == 0 {
		if len(doc.Meshes) == 0 {
			return nil, ErrNoScene
		}
		// bare meshes: give each an implicit node
		for i := range doc.Meshes {
			doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(i)})
		}
	}
	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

// node converts a glTF node and its subtree. depth guards against cyclic
// child lists.
func (l *GLTFLoader) node(idx, depth int) (*scene.Group, error) {
	if idx < 0 || idx >= len(l.doc.Nodes) {
		return nil, fmt.Errorf("node %d out of range", idx)
	}
	if depth > len(l.doc.Nodes) {
		return nil, fmt.Errorf("node %d: cyclic hierarchy", idx)
	}
	src := l.doc.Nodes[idx]

	g := scene.NewGroup()
	g.Name = src.Name
	applyTransform(g, src)

	if src.Mesh != nil {
		drawables, err := l.mesh(*src.Mesh)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", src.Name, err)
		}
		for _, d := range drawables {
			g.Add(d)
		}
	}
	for _, c := range src.Children {
		child, err := l.node(c, depth+1)
		if err != nil {
			return nil, err
		}
		g.Add(child)
	}
	return g, nil
}

// applyTransform copies a node's matrix or its TRS properties.
func applyTransform(g *scene.Group, n *gltf.Node) {
	m := math3d.Mat4(n.Matrix)
	if m != (math3d.Mat4{}) && m != math3d.Identity() {
		g.SetMatrix(m)
		return
	}
	g.SetPosition(math3d.V3(n.Translation[0], n.Translation[1], n.Translation[2]))
	if r := n.Rotation; r != ([4]float64{}) {
		g.SetRotation(math3d.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]})
	}
	if s := n.Scale; s != ([3]float64{}) {
		g.SetScale(math3d.V3(s[0], s[1], s[2]))
	}
}

// mesh converts a glTF mesh. Triangle-list primitives share one geometry
// with a group and material slot each; other topologies become their own
// drawables.
func (l *GLTFLoader) mesh(idx int) ([]scene.Node, error) {
	if idx < 0 || idx >= len(l.doc.Meshes) {
		return nil, fmt.Errorf("mesh %d out of range", idx)
	}
	src := l.doc.Meshes[idx]

	var (
		out   []scene.Node
		merge []*primitive
	)
	for i, p := range src.Primitives {
		prim, err := l.primitive(p)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", src.Name, i, err)
		}
		if prim == nil {
			continue
		}
		if p.Mode == gltf.PrimitiveTriangles {
			merge = append(merge, prim)
			continue
		}
		if n := l.standalone(p, prim); n != nil {
			n.Obj().Name = src.Name
			out = append(out, n)
		}
	}

	if len(merge) > 0 {
		g, mats := l.mergeTriangles(merge)
		g.Name = src.Name
		m := scene.NewMesh(g, mats...)
		m.Name = src.Name
		for i, w := range src.Weights {
			if i < len(m.MorphTargetInfluences) {
				m.MorphTargetInfluences[i] = float32(w)
			}
		}
		out = append([]scene.Node{m}, out...)
	}
	return out, nil
}

// primitive holds the decoded vertex streams of one glTF primitive.
type primitive struct {
	positions [][3]float32
	normals   [][3]float32
	uvs       [][2]float32
	colors    [][4]uint8
	indices   []uint32
	targets   [][][3]float32 // absolute morph positions
	material  *material.Material
}

func (l *GLTFLoader) primitive(p *gltf.Primitive) (*primitive, error) {
	posIdx, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	var (
		prim primitive
		err  error
	)
	if prim.positions, err = modeler.ReadPosition(l.doc, l.doc.Accessors[posIdx], nil); err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	if idx, ok := p.Attributes[gltf.NORMAL]; ok {
		if prim.normals, err = modeler.ReadNormal(l.doc, l.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}
	if idx, ok := p.Attributes[gltf.TEXCOORD_0]; ok {
		if prim.uvs, err = modeler.ReadTextureCoord(l.doc, l.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
	}
	if idx, ok := p.Attributes[gltf.COLOR_0]; ok {
		if prim.colors, err = modeler.ReadColor(l.doc, l.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read colors: %w", err)
		}
	}
	if p.Indices != nil {
		if prim.indices, err = modeler.ReadIndices(l.doc, l.doc.Accessors[*p.Indices], nil); err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
		for _, ix := range prim.indices {
			if int(ix) >= len(prim.positions) {
				return nil, fmt.Errorf("index %d exceeds %d vertices", ix, len(prim.positions))
			}
		}
	}
	for i, t := range p.Targets {
		idx, ok := t[gltf.POSITION]
		if !ok {
			continue
		}
		delta, err := modeler.ReadPosition(l.doc, l.doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("read morph target %d: %w", i, err)
		}
		// glTF stores offsets; the renderer wants absolute positions
		abs := make([][3]float32, len(prim.positions))
		for v := range abs {
			abs[v] = prim.positions[v]
			if v < len(delta) {
				abs[v][0] += delta[v][0]
				abs[v][1] += delta[v][1]
				abs[v][2] += delta[v][2]
			}
		}
		prim.targets = append(prim.targets, abs)
	}

	if prim.material, err = l.material(p.Material, p.Mode); err != nil {
		return nil, err
	}
	if len(prim.colors) > 0 {
		prim.material.VertexColors = true
	}
	if len(prim.targets) > 0 {
		prim.material.MorphTargets = true
	}
	return &prim, nil
}

// mergeTriangles concatenates triangle primitives into one indexed
// geometry. Streams missing from some primitives are zero filled.
func (l *GLTFLoader) mergeTriangles(prims []*primitive) (*geom.Geometry, []*material.Material) {
	var (
		hasNormals, hasUVs, hasColors bool
		targets                       = -1
	)
	for _, p := range prims {
		hasNormals = hasNormals || len(p.normals) > 0
		hasUVs = hasUVs || len(p.uvs) > 0
		hasColors = hasColors || len(p.colors) > 0
		if targets < 0 || len(p.targets) < targets {
			targets = len(p.targets)
		}
	}

	var (
		pos, nrm, uv, col []float32
		morph             = make([][]float32, targets)
		indices           []uint32
		mats              []*material.Material
	)
	g := geom.New()
	for slot, p := range prims {
		base := uint32(len(pos) / 3)
		start := len(indices)
		for v, q := range p.positions {
			pos = append(pos, q[0], q[1], q[2])
			if hasNormals {
				n := [3]float32{}
				if v < len(p.normals) {
					n = p.normals[v]
				}
				nrm = append(nrm, n[0], n[1], n[2])
			}
			if hasUVs {
				t := [2]float32{}
				if v < len(p.uvs) {
					t = p.uvs[v]
				}
				uv = append(uv, t[0], t[1])
			}
			if hasColors {
				c := [4]uint8{255, 255, 255, 255}
				if v < len(p.colors) {
					c = p.colors[v]
				}
				col = append(col, float32(c[0])/255, float32(c[1])/255, float32(c[2])/255)
			}
			for t := range morph {
				m := p.targets[t][v]
				morph[t] = append(morph[t], m[0], m[1], m[2])
			}
		}
		if p.indices != nil {
			for _, ix := range p.indices {
				indices = append(indices, base+ix)
			}
		} else {
			for v := range p.positions {
				indices = append(indices, base+uint32(v))
			}
		}
		g.AddGroup(start, len(indices)-start, slot)
		mats = append(mats, p.material)
	}

	g.SetAttribute(geom.AttrPosition, geom.NewAttribute(pos, 3))
	if hasNormals {
		g.SetAttribute(geom.AttrNormal, geom.NewAttribute(nrm, 3))
	}
	if hasUVs {
		g.SetAttribute(geom.AttrUV, geom.NewAttribute(uv, 2))
	}
	if hasColors {
		g.SetAttribute(geom.AttrColor, geom.NewAttribute(col, 3))
	}
	g.SetIndex(geom.NewIndex(indices))
	if targets > 0 {
		g.MorphAttributes = map[string][]*geom.Attribute{}
		for _, m := range morph {
			g.MorphAttributes[geom.AttrPosition] = append(g.MorphAttributes[geom.AttrPosition], geom.NewAttribute(m, 3))
		}
	}
	if !hasNormals && l.CalculateNormals {
		g.ComputeVertexNormals()
	}
	return g, mats
}

// standalone builds the drawable for a non-list topology.
func (l *GLTFLoader) standalone(p *gltf.Primitive, prim *primitive) scene.Node {
	g := geom.New()
	pos := make([]float32, 0, len(prim.positions)*3)
	for _, q := range prim.positions {
		pos = append(pos, q[0], q[1], q[2])
	}
	g.SetAttribute(geom.AttrPosition, geom.NewAttribute(pos, 3))
	if len(prim.normals) == len(prim.positions) {
		nrm := make([]float32, 0, len(pos))
		for _, n := range prim.normals {
			nrm = append(nrm, n[0], n[1], n[2])
		}
		g.SetAttribute(geom.AttrNormal, geom.NewAttribute(nrm, 3))
	}
	if len(prim.uvs) == len(prim.positions) {
		uv := make([]float32, 0, len(prim.uvs)*2)
		for _, t := range prim.uvs {
			uv = append(uv, t[0], t[1])
		}
		g.SetAttribute(geom.AttrUV, geom.NewAttribute(uv, 2))
	}
	if prim.indices != nil {
		g.SetIndex(geom.NewIndex(prim.indices))
	}

	switch p.Mode {
	case gltf.PrimitivePoints:
		return scene.NewPoints(g, prim.material)
	case gltf.PrimitiveLines:
		return scene.NewLineSegments(g, prim.material)
	case gltf.PrimitiveLineStrip:
		return scene.NewLine(g, prim.material)
	case gltf.PrimitiveLineLoop:
		line := scene.NewLine(g, prim.material)
		line.Mode = scene.LineLoop
		return line
	case gltf.PrimitiveTriangleStrip, gltf.PrimitiveTriangleFan:
		if l.CalculateNormals && g.Attribute(geom.AttrNormal) == nil {
			g.ComputeVertexNormals()
		}
		m := scene.NewMesh(g, prim.material)
		m.DrawMode = scene.TriangleStripDrawMode
		if p.Mode == gltf.PrimitiveTriangleFan {
			m.DrawMode = scene.TriangleFanDrawMode
		}
		return m
	}
	return nil
}

// material converts a glTF material. Point and line primitives get the
// matching material model with the base color.
func (l *GLTFLoader) material(idx *int, mode gltf.PrimitiveMode) (*material.Material, error) {
	var src *gltf.Material
	if idx != nil {
		if *idx < 0 || *idx >= len(l.doc.Materials) {
			return nil, fmt.Errorf("material %d out of range", *idx)
		}
		src = l.doc.Materials[*idx]
	}

	base := [4]float64{1, 1, 1, 1}
	roughness, metalness := 1.0, 1.0
	var colorTex *gltf.TextureInfo
	if src != nil && src.PBRMetallicRoughness != nil {
		pbr := src.PBRMetallicRoughness
		if pbr.BaseColorFactor != nil {
			base = *pbr.BaseColorFactor
		}
		if pbr.RoughnessFactor != nil {
			roughness = *pbr.RoughnessFactor
		}
		if pbr.MetallicFactor != nil {
			metalness = *pbr.MetallicFactor
		}
		colorTex = pbr.BaseColorTexture
	}
	c := math3d.ColorRGB(float32(base[0]), float32(base[1]), float32(base[2]))

	var m *material.Material
	switch mode {
	case gltf.PrimitivePoints:
		m = material.NewPoints(c, 1)
	case gltf.PrimitiveLines, gltf.PrimitiveLineStrip, gltf.PrimitiveLineLoop:
		m = material.NewLine(c, 1)
	default:
		// triangle materials are shared between primitives
		if idx != nil {
			if cached, ok := l.materials[*idx]; ok {
				return cached, nil
			}
		}
		m = material.NewStandard(c, float32(roughness), float32(metalness))
	}
	m.Opacity = float32(base[3])
	if src == nil {
		return m, nil
	}

	m.Name = src.Name
	m.Emissive = math3d.ColorRGB(float32(src.EmissiveFactor[0]), float32(src.EmissiveFactor[1]), float32(src.EmissiveFactor[2]))
	if src.DoubleSided {
		m.Side = material.DoubleSide
	}
	switch src.AlphaMode {
	case gltf.AlphaBlend:
		m.Transparent = true
	case gltf.AlphaMask:
		m.AlphaTest = 0.5
		if src.AlphaCutoff != nil {
			m.AlphaTest = float32(*src.AlphaCutoff)
		}
	}
	if colorTex != nil {
		tex, err := l.texture(colorTex.Index)
		if err != nil {
			return nil, err
		}
		m.Map = tex
	}
	if src.EmissiveTexture != nil {
		tex, err := l.texture(src.EmissiveTexture.Index)
		if err != nil {
			return nil, err
		}
		m.EmissiveMap = tex
	}
	if src.NormalTexture != nil && src.NormalTexture.Index != nil {
		tex, err := l.texture(*src.NormalTexture.Index)
		if err != nil {
			return nil, err
		}
		m.NormalMap = tex
	}
	if src.OcclusionTexture != nil && src.OcclusionTexture.Index != nil {
		tex, err := l.texture(*src.OcclusionTexture.Index)
		if err != nil {
			return nil, err
		}
		m.AOMap = tex
	}
	if idx != nil && m.Model == material.Standard {
		l.materials[*idx] = m
	}
	return m, nil
}

// texture decodes a glTF texture with its sampler. glTF puts v=0 at the
// top of the image, so textures are not flipped.
func (l *GLTFLoader) texture(idx int) (*material.Texture, error) {
	if tex, ok := l.textures[idx]; ok {
		return tex, nil
	}
	if idx < 0 || idx >= len(l.doc.Textures) {
		return nil, fmt.Errorf("texture %d out of range", idx)
	}
	src := l.doc.Textures[idx]
	if src.Source == nil || *src.Source < 0 || *src.Source >= len(l.doc.Images) {
		return nil, fmt.Errorf("texture %d has no image", idx)
	}
	img, err := l.image(l.doc.Images[*src.Source])
	if err != nil {
		return nil, fmt.Errorf("texture %d: %w", idx, err)
	}

	tex := material.TextureFromImage(img)
	tex.Name = l.doc.Images[*src.Source].Name
	tex.FlipY = false
	if src.Sampler != nil && *src.Sampler >= 0 && *src.Sampler < len(l.doc.Samplers) {
		s := l.doc.Samplers[*src.Sampler]
		tex.WrapS = wrapMode(s.WrapS)
		tex.WrapT = wrapMode(s.WrapT)
		if s.MagFilter == gltf.MagNearest {
			tex.MagFilter = material.FilterNearest
		}
		switch s.MinFilter {
		case gltf.MinNearest:
			tex.MinFilter = material.FilterNearest
			tex.GenerateMipmaps = false
		case gltf.MinLinear:
			tex.MinFilter = material.FilterBilinear
			tex.GenerateMipmaps = false
		}
	}
	l.textures[idx] = tex
	return tex, nil
}

func wrapMode(w gltf.WrappingMode) material.WrapMode {
	switch w {
	case gltf.WrapClampToEdge:
		return material.WrapClamp
	case gltf.WrapMirroredRepeat:
		return material.WrapMirror
	}
	return material.WrapRepeat
}

// image decodes embedded, data URI or external image data.
func (l *GLTFLoader) image(src *gltf.Image) (image.Image, error) {
	var data []byte
	switch {
	case src.BufferView != nil:
		bv := l.doc.BufferViews[*src.BufferView]
		buf := l.doc.Buffers[bv.Buffer]
		if bv.ByteOffset+bv.ByteLength > len(buf.Data) {
			return nil, fmt.Errorf("image %q: buffer view out of range", src.Name)
		}
		data = buf.Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
	case src.IsEmbeddedResource():
		var err error
		if data, err = src.MarshalData(); err != nil {
			return nil, fmt.Errorf("image %q: %w", src.Name, err)
		}
	case src.URI != "":
		var err error
		if data, err = os.ReadFile(filepath.Join(l.dir, src.URI)); err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
	default:
		return nil, fmt.Errorf("image %q has no data", src.Name)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %q: %w", src.Name, err)
	}
	return img, nil
}
