package models

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

var quadPositions = [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}

// newDocument returns a document whose only scene holds node 0.
func newDocument() *gltf.Document {
	doc := gltf.NewDocument()
	doc.Scenes = []*gltf.Scene{{Name: "root", Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)
	return doc
}

func addMaterial(doc *gltf.Document, name string, rgba [4]float64) int {
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &rgba,
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(0.5),
		},
	})
	return len(doc.Materials) - 1
}

// twoMaterialQuad has one mesh with two triangle primitives.
func twoMaterialQuad() *gltf.Document {
	doc := newDocument()
	pos := modeler.WritePosition(doc, quadPositions)
	first := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	second := modeler.WriteIndices(doc, []uint16{0, 2, 3})
	red := addMaterial(doc, "red", [4]float64{1, 0, 0, 1})
	blue := addMaterial(doc, "blue", [4]float64{0, 0, 1, 0.5})
	doc.Materials[blue].AlphaMode = gltf.AlphaBlend
	doc.Materials[blue].DoubleSided = true

	doc.Meshes = []*gltf.Mesh{{
		Name: "quad",
		Primitives: []*gltf.Primitive{
			{Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos}, Indices: gltf.Index(first), Material: gltf.Index(red)},
			{Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos}, Indices: gltf.Index(second), Material: gltf.Index(blue)},
		},
	}}
	doc.Nodes = []*gltf.Node{{Name: "root", Mesh: gltf.Index(0), Translation: [3]float64{0, 2, 0}}}
	return doc
}

func findMesh(t *testing.T, root scene.Node) *scene.Mesh {
	t.Helper()
	var found *scene.Mesh
	var walk func(n scene.Node)
	walk = func(n scene.Node) {
		if m, ok := n.(*scene.Mesh); ok && found == nil {
			found = m
		}
		for _, c := range n.Obj().Children() {
			walk(c)
		}
	}
	walk(root)
	require.NotNil(t, found, "no mesh in the loaded scene")
	return found
}

func TestDecodeMergesPrimitivesIntoGroups(t *testing.T) {
	root, err := NewGLTFLoader().Decode(twoMaterialQuad(), "")
	require.NoError(t, err)

	mesh := findMesh(t, root)
	assert.Equal(t, "quad", mesh.Name)
	g := mesh.Geometry
	assert.Equal(t, 8, g.Position().Count())
	assert.Equal(t, 6, g.Index().Count())
	assert.Equal(t, []geom.Group{{Start: 0, Count: 3, MaterialIndex: 0}, {Start: 3, Count: 3, MaterialIndex: 1}}, g.Groups)
	assert.NotNil(t, g.Attribute(geom.AttrNormal), "normals are computed when missing")

	require.Len(t, mesh.Materials, 2)
	red, blue := mesh.Materials[0], mesh.Materials[1]
	assert.Equal(t, material.Standard, red.Model)
	assert.Equal(t, "red", red.Name)
	assert.Equal(t, math3d.ColorRGB(1, 0, 0), red.Color)
	assert.InDelta(t, 0.5, red.Roughness, 1e-6)
	assert.InDelta(t, 0, red.Metalness, 1e-6)
	assert.False(t, red.IsTransparent())

	assert.True(t, blue.Transparent)
	assert.InDelta(t, 0.5, blue.Opacity, 1e-6)
	assert.Equal(t, material.DoubleSide, blue.Side)
}

func TestDecodeNodeTransforms(t *testing.T) {
	doc := twoMaterialQuad()
	doc.Nodes[0].Children = []int{1}
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name:  "child",
		Scale: [3]float64{2, 2, 2},
	})

	root, err := NewGLTFLoader().Decode(doc, "")
	require.NoError(t, err)
	root.UpdateMatrixWorld(true)

	node := root.FindByName("root")
	require.NotNil(t, node)
	assert.Equal(t, math3d.V3(0, 2, 0), node.Obj().WorldPosition())

	child := root.FindByName("child")
	require.NotNil(t, child)
	assert.Equal(t, math3d.V3(2, 2, 2), child.Obj().Scale())
}

func TestDecodeWithoutScenes(t *testing.T) {
	doc := twoMaterialQuad()
	doc.Scenes, doc.Scene, doc.Nodes = nil, nil, nil

	root, err := NewGLTFLoader().Decode(doc, "")
	require.NoError(t, err)
	findMesh(t, root)

	_, err = NewGLTFLoader().Decode(&gltf.Document{}, "")
	assert.ErrorIs(t, err, ErrNoScene)
}

func TestDecodeEmbeddedTexture(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	doc := newDocument()
	pos := modeler.WritePosition(doc, quadPositions[:3])
	uvs := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {1, 1}})
	imgIdx, err := modeler.WriteImage(doc, "checker", "image/png", &buf)
	require.NoError(t, err)
	doc.Samplers = []*gltf.Sampler{{MagFilter: gltf.MagNearest, WrapS: gltf.WrapClampToEdge}}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(imgIdx), Sampler: gltf.Index(0)}}
	mat := addMaterial(doc, "textured", [4]float64{1, 1, 1, 1})
	doc.Materials[mat].PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: 0}
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos, gltf.TEXCOORD_0: uvs},
			Material:   gltf.Index(mat),
		}},
	}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}

	root, err := NewGLTFLoader().Decode(doc, "")
	require.NoError(t, err)
	mesh := findMesh(t, root)
	assert.Equal(t, 3, mesh.Geometry.Index().Count(), "non-indexed primitives get sequential indices")
	assert.NotNil(t, mesh.Geometry.Attribute(geom.AttrUV))

	tex := mesh.Materials[0].Map
	require.NotNil(t, tex)
	assert.Equal(t, 2, tex.Width())
	assert.False(t, tex.FlipY)
	assert.Equal(t, material.FilterNearest, tex.MagFilter)
	assert.Equal(t, material.WrapClamp, tex.WrapS)
	assert.Equal(t, material.WrapRepeat, tex.WrapT)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, tex.Image.RGBAAt(0, 0))
}

func TestDecodeMorphTargetsAreAbsolute(t *testing.T) {
	doc := newDocument()
	pos := modeler.WritePosition(doc, quadPositions[:3])
	delta := modeler.WritePosition(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	doc.Meshes = []*gltf.Mesh{{
		Weights: []float64{0.25},
		Primitives: []*gltf.Primitive{{
			Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos},
			Targets:    []gltf.PrimitiveAttributes{{gltf.POSITION: delta}},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}

	root, err := NewGLTFLoader().Decode(doc, "")
	require.NoError(t, err)
	mesh := findMesh(t, root)

	targets := mesh.Geometry.MorphAttributes[geom.AttrPosition]
	require.Len(t, targets, 1)
	assert.Equal(t, []float32{1, 0, 1}, targets[0].Get(1))
	assert.Equal(t, []float32{0.25}, mesh.MorphTargetInfluences)
	assert.True(t, mesh.Materials[0].MorphTargets)
}

func TestDecodeStandaloneTopologies(t *testing.T) {
	doc := newDocument()
	pos := modeler.WritePosition(doc, quadPositions)
	doc.Meshes = []*gltf.Mesh{{
		Name: "mixed",
		Primitives: []*gltf.Primitive{
			{Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos}, Mode: gltf.PrimitivePoints},
			{Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos}, Mode: gltf.PrimitiveLineLoop},
			{Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos}, Mode: gltf.PrimitiveTriangleFan},
		},
	}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}

	root, err := NewGLTFLoader().Decode(doc, "")
	require.NoError(t, err)
	node := root.Children()[0]
	kids := node.Obj().Children()
	require.Len(t, kids, 3)

	assert.IsType(t, &scene.Points{}, kids[0])
	assert.Equal(t, material.Points, kids[0].Obj().Materials[0].Model)
	line, ok := kids[1].(*scene.Line)
	require.True(t, ok)
	assert.Equal(t, scene.LineLoop, line.Mode)
	mesh, ok := kids[2].(*scene.Mesh)
	require.True(t, ok)
	assert.Equal(t, scene.TriangleFanDrawMode, mesh.DrawMode)
}

func TestLoadGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.glb")
	require.NoError(t, gltf.SaveBinary(twoMaterialQuad(), path))

	root, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quad.glb", root.Name)
	mesh := findMesh(t, root)
	assert.Len(t, mesh.Materials, 2)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/nonexistent/path.glb")
	assert.Error(t, err)

	doc := twoMaterialQuad()
	bad := modeler.WriteIndices(doc, []uint16{0, 1, 9})
	doc.Meshes[0].Primitives[0].Indices = gltf.Index(bad)
	_, err = NewGLTFLoader().Decode(doc, "")
	assert.ErrorContains(t, err, "exceeds")

	doc = twoMaterialQuad()
	doc.Meshes[0].Primitives[0].Material = gltf.Index(7)
	_, err = NewGLTFLoader().Decode(doc, "")
	assert.ErrorContains(t, err, "out of range")
}
