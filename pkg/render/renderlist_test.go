package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

func listedMeshes(items []*RenderItem) []scene.Node {
	out := make([]scene.Node, len(items))
	for i, it := range items {
		out[i] = it.Object
	}
	return out
}

func TestRenderListPartitions(t *testing.T) {
	var l RenderList
	l.init()
	g := geom.NewBox(1, 1, 1)
	opaque := material.NewBasic(math3d.ColorHex(0xffffff))
	glass := material.NewBasic(math3d.ColorHex(0xffffff))
	glass.Transparent = true

	a := scene.NewMesh(g, opaque)
	b := scene.NewMesh(g, glass)
	l.Push(a, g, opaque, 0, nil, 1)
	l.Push(b, g, glass, 0, nil, 1)

	assert.Equal(t, []scene.Node{a}, listedMeshes(l.Opaque))
	assert.Equal(t, []scene.Node{b}, listedMeshes(l.Transparent))
}

func TestRenderListSortOpaque(t *testing.T) {
	var l RenderList
	l.init()
	g := geom.NewBox(1, 1, 1)
	m1 := material.NewBasic(math3d.ColorHex(0xffffff))
	m2 := material.NewBasic(math3d.ColorHex(0xffffff))

	far := scene.NewMesh(g, m1)
	near := scene.NewMesh(g, m1)
	otherProgram := scene.NewMesh(g, m2)
	first := scene.NewMesh(g, m2)
	first.RenderOrder = -1

	l.Push(otherProgram, g, m2, 0.1, nil, 2)
	l.Push(far, g, m1, 0.9, nil, 1)
	l.Push(near, g, m1, 0.2, nil, 1)
	l.Push(first, g, m2, 0.5, nil, 2)
	l.Sort()

	// render order, then program, then front to back
	assert.Equal(t, []scene.Node{first, near, far, otherProgram}, listedMeshes(l.Opaque))
}

func TestRenderListSortTransparent(t *testing.T) {
	var l RenderList
	l.init()
	g := geom.NewBox(1, 1, 1)
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Transparent = true

	near := scene.NewMesh(g, m)
	far := scene.NewMesh(g, m)
	l.Push(near, g, m, 0.1, nil, 1)
	l.Push(far, g, m, 0.8, nil, 1)
	l.Sort()

	assert.Equal(t, []scene.Node{far, near}, listedMeshes(l.Transparent))
}

func TestRenderListSortIsStableOnTies(t *testing.T) {
	var l RenderList
	l.init()
	g := geom.NewBox(1, 1, 1)
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	mesh := scene.NewMesh(g, m)

	// one object split into groups keeps group order
	groups := []*geom.Group{{Start: 0, Count: 6}, {Start: 6, Count: 6}, {Start: 12, Count: 6}}
	for _, grp := range groups {
		l.Push(mesh, g, m, 0.5, grp, 1)
	}
	l.Sort()

	require.Len(t, l.Opaque, 3)
	for i, it := range l.Opaque {
		assert.Same(t, groups[i], it.Group)
	}
}

func TestRenderListUnshift(t *testing.T) {
	var l RenderList
	l.init()
	g := geom.NewBox(1, 1, 1)
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	a := scene.NewMesh(g, m)
	sky := scene.NewMesh(g, m)

	l.Push(a, g, m, 0, nil, 1)
	l.Unshift(sky, g, m, 0, nil, 1)
	assert.Equal(t, []scene.Node{sky, a}, listedMeshes(l.Opaque))
}

func TestRenderListReusesItems(t *testing.T) {
	var l RenderList
	g := geom.NewBox(1, 1, 1)
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	mesh := scene.NewMesh(g, m)

	l.init()
	l.Push(mesh, g, m, 0, nil, 1)
	first := l.Opaque[0]

	l.init()
	assert.Empty(t, l.Opaque)
	l.Push(mesh, g, m, 0.3, nil, 1)
	assert.Same(t, first, l.Opaque[0])
	assert.Equal(t, 0.3, l.Opaque[0].Z)
}

func TestRenderListsPerSceneAndCamera(t *testing.T) {
	lists := newRenderLists()
	sc := scene.NewScene()
	a := scene.NewCamera()
	b := scene.NewCamera()

	assert.Same(t, lists.get(sc, a), lists.get(sc, a))
	assert.NotSame(t, lists.get(sc, a), lists.get(sc, b))
}
