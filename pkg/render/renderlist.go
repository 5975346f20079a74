package render

import (
	"cmp"
	"slices"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/scene"
)

// RenderItem is one draw: an object with one of its materials and the
// group of the geometry that material covers.
type RenderItem struct {
	ID          uint64
	Object      scene.Node
	Geometry    *geom.Geometry
	Material    *material.Material
	Program     int
	RenderOrder int
	Z           float64
	Group       *geom.Group
}

// RenderList holds the frame's items split by transparency. Items are
// pooled across frames.
type RenderList struct {
	Opaque      []*RenderItem
	Transparent []*RenderItem

	items []*RenderItem
	next  int
}

func (l *RenderList) init() {
	l.next = 0
	l.Opaque = l.Opaque[:0]
	l.Transparent = l.Transparent[:0]
}

func (l *RenderList) item(obj scene.Node, g *geom.Geometry, m *material.Material, z float64, group *geom.Group, program int) *RenderItem {
	if l.next == len(l.items) {
		l.items = append(l.items, &RenderItem{})
	}
	it := l.items[l.next]
	l.next++
	o := obj.Obj()
	*it = RenderItem{
		ID:          o.ID(),
		Object:      obj,
		Geometry:    g,
		Material:    m,
		Program:     program,
		RenderOrder: o.RenderOrder,
		Z:           z,
		Group:       group,
	}
	return it
}

// Push appends an item to the partition its material belongs to.
func (l *RenderList) Push(obj scene.Node, g *geom.Geometry, m *material.Material, z float64, group *geom.Group, program int) {
	it := l.item(obj, g, m, z, group, program)
	if m.IsTransparent() {
		l.Transparent = append(l.Transparent, it)
	} else {
		l.Opaque = append(l.Opaque, it)
	}
}

// Unshift prepends an item, used for skyboxes drawn before everything else.
func (l *RenderList) Unshift(obj scene.Node, g *geom.Geometry, m *material.Material, z float64, group *geom.Group, program int) {
	it := l.item(obj, g, m, z, group, program)
	if m.IsTransparent() {
		l.Transparent = slices.Insert(l.Transparent, 0, it)
	} else {
		l.Opaque = slices.Insert(l.Opaque, 0, it)
	}
}

// Sort orders opaque items to minimise state changes and front to back,
// and transparent items back to front.
func (l *RenderList) Sort() {
	slices.SortStableFunc(l.Opaque, compareOpaque)
	slices.SortStableFunc(l.Transparent, compareTransparent)
}

func compareOpaque(a, b *RenderItem) int {
	return cmp.Or(
		cmp.Compare(a.RenderOrder, b.RenderOrder),
		cmp.Compare(a.Program, b.Program),
		cmp.Compare(a.Material.ID(), b.Material.ID()),
		cmp.Compare(a.Z, b.Z),
		cmp.Compare(a.ID, b.ID),
	)
}

func compareTransparent(a, b *RenderItem) int {
	return cmp.Or(
		cmp.Compare(a.RenderOrder, b.RenderOrder),
		cmp.Compare(b.Z, a.Z),
		cmp.Compare(a.ID, b.ID),
	)
}

type listKey struct {
	scene, camera uint64
}

// renderLists keeps one list per scene and camera pair.
type renderLists struct {
	lists map[listKey]*RenderList
}

func newRenderLists() *renderLists {
	return &renderLists{lists: map[listKey]*RenderList{}}
}

func (r *renderLists) get(sc *scene.Scene, cam *scene.Camera) *RenderList {
	k := listKey{sc.ID(), cam.ID()}
	l, ok := r.lists[k]
	if !ok {
		l = &RenderList{}
		r.lists[k] = l
	}
	return l
}

func (r *renderLists) dispose() {
	clear(r.lists)
}
