package render

import (
	"github.com/taigrr/tableau/pkg/geom"
)

type wireframe struct {
	index   *geom.Index
	version int
}

// geometries tracks which geometries live on the device and owns their
// derived wireframe indices. Attributes a geometry stops using, after
// SetAttribute or SetIndex replaced them, are released on the next update.
type geometries struct {
	attrs      *attributes
	info       *Info
	known      map[*geom.Geometry]bool
	wireframes map[*geom.Geometry]*wireframe
	owned      map[*geom.Geometry]map[*geom.Attribute]bool
	indices    map[*geom.Geometry]*geom.Index
	scratch    map[*geom.Attribute]bool
	updates    int
}

func newGeometries(attrs *attributes, info *Info) *geometries {
	return &geometries{
		attrs:      attrs,
		info:       info,
		known:      map[*geom.Geometry]bool{},
		wireframes: map[*geom.Geometry]*wireframe{},
		owned:      map[*geom.Geometry]map[*geom.Attribute]bool{},
		indices:    map[*geom.Geometry]*geom.Index{},
		scratch:    map[*geom.Attribute]bool{},
	}
}

func (g *geometries) get(geo *geom.Geometry) *geom.Geometry {
	if g.known[geo] {
		return geo
	}
	g.known[geo] = true
	g.info.Memory.Geometries++
	geo.OnDispose(g.onDispose)
	return geo
}

// update uploads every attribute, including morph targets. Indices are
// uploaded at draw time because wireframe may replace them.
func (g *geometries) update(geo *geom.Geometry) {
	cur := g.scratch
	clear(cur)
	for _, name := range geo.AttributeNames() {
		attr := geo.Attribute(name)
		g.attrs.update(attr)
		cur[attr] = true
	}
	for _, targets := range geo.MorphAttributes {
		for _, attr := range targets {
			g.attrs.update(attr)
			cur[attr] = true
		}
	}

	prev := g.owned[geo]
	for attr := range cur {
		if !prev[attr] {
			g.attrs.retain(attr)
		}
	}
	for attr := range prev {
		if !cur[attr] {
			g.attrs.release(attr)
		}
	}
	g.owned[geo] = cur
	if prev == nil {
		prev = map[*geom.Attribute]bool{}
	}
	g.scratch = prev

	if old, ok := g.indices[geo]; ok && old != geo.Index() {
		g.attrs.removeIndex(old)
	}
	if ix := geo.Index(); ix != nil {
		g.indices[geo] = ix
	} else {
		delete(g.indices, geo)
	}
	g.updates++
}

// wireframeIndex returns a line index covering each unique triangle edge.
func (g *geometries) wireframeIndex(geo *geom.Geometry) *geom.Index {
	v := geo.Version()
	if w, ok := g.wireframes[geo]; ok && w.version == v {
		return w.index
	}
	if old, ok := g.wireframes[geo]; ok {
		g.attrs.removeIndex(old.index)
	}

	type edge [2]uint32
	seen := map[edge]bool{}
	var lines []uint32
	add := func(a, b uint32) {
		e := edge{min(a, b), max(a, b)}
		if seen[e] {
			return
		}
		seen[e] = true
		lines = append(lines, a, b)
	}

	if ix := geo.Index(); ix != nil {
		for i := 0; i+2 < len(ix.Data); i += 3 {
			a, b, c := ix.Data[i], ix.Data[i+1], ix.Data[i+2]
			add(a, b)
			add(b, c)
			add(c, a)
		}
	} else if pos := geo.Position(); pos != nil {
		for i := 0; i+2 < pos.Count(); i += 3 {
			a, b, c := uint32(i), uint32(i+1), uint32(i+2)
			add(a, b)
			add(b, c)
			add(c, a)
		}
	}

	w := &wireframe{index: geom.NewIndex(lines), version: v}
	g.wireframes[geo] = w
	return w.index
}

func (g *geometries) onDispose(geo *geom.Geometry) {
	if ix := geo.Index(); ix != nil {
		g.attrs.removeIndex(ix)
	}
	if ix, ok := g.indices[geo]; ok {
		g.attrs.removeIndex(ix)
		delete(g.indices, geo)
	}
	for attr := range g.owned[geo] {
		g.attrs.release(attr)
	}
	delete(g.owned, geo)
	// buffers uploaded at draw time without an update
	for _, name := range geo.AttributeNames() {
		if attr := geo.Attribute(name); g.attrs.refs[attr] == 0 {
			g.attrs.remove(attr)
		}
	}
	if w, ok := g.wireframes[geo]; ok {
		g.attrs.removeIndex(w.index)
		delete(g.wireframes, geo)
	}
	if g.known[geo] {
		delete(g.known, geo)
		g.info.Memory.Geometries--
	}
}

// objects uploads each geometry at most once per frame.
type objects struct {
	geometries *geometries
	info       *Info
	frames     map[*geom.Geometry]int
}

func newObjects(g *geometries, info *Info) *objects {
	return &objects{geometries: g, info: info, frames: map[*geom.Geometry]int{}}
}

func (o *objects) update(geo *geom.Geometry) *geom.Geometry {
	frame := o.info.Render.Frame
	geo = o.geometries.get(geo)
	if f, ok := o.frames[geo]; !ok || f != frame {
		o.geometries.update(geo)
		o.frames[geo] = frame
	}
	return geo
}

func (o *objects) dispose() {
	clear(o.frames)
}
