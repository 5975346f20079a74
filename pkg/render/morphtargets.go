package render

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
)

type influence struct {
	index int
	value float32
}

// morphTargets binds the strongest morph targets of a mesh as extra
// vertex attributes.
type morphTargets struct {
	influences map[*geom.Geometry][]influence
	weights    []float32
}

func newMorphTargets() *morphTargets {
	return &morphTargets{influences: map[*geom.Geometry][]influence{}}
}

// update sets morphTarget{i} (and morphNormal{i}) on g for the active
// targets and uploads their weights. At most 8 targets are used, or 4 when
// the material also morphs normals.
func (mt *morphTargets) update(g *geom.Geometry, m *material.Material, weights []float32, set func(string, any)) {
	positions := g.MorphAttributes[geom.AttrPosition]
	normals := g.MorphAttributes[geom.AttrNormal]

	infl := mt.influences[g]
	if len(infl) != len(weights) {
		infl = make([]influence, len(weights))
		mt.influences[g] = infl
	}
	for i, w := range weights {
		infl[i] = influence{index: i, value: w}
	}

	// strongest first; ties keep target order
	slices.SortStableFunc(infl, func(a, b influence) int {
		return cmp.Compare(math.Abs(float64(b.value)), math.Abs(float64(a.value)))
	})

	limit := 8
	if m.MorphNormals {
		limit = 4
	}
	if cap(mt.weights) < limit {
		mt.weights = make([]float32, limit)
	}
	mt.weights = mt.weights[:limit]
	clear(mt.weights)

	for i := range limit {
		name := strconv.Itoa(i)
		if i < len(infl) && infl[i].value != 0 && infl[i].index < len(positions) {
			idx := infl[i].index
			setAttribute(g, "morphTarget"+name, positions[idx])
			if m.MorphNormals && idx < len(normals) {
				setAttribute(g, "morphNormal"+name, normals[idx])
			}
			mt.weights[i] = infl[i].value
			continue
		}
		g.DeleteAttribute("morphTarget" + name)
		if m.MorphNormals {
			g.DeleteAttribute("morphNormal" + name)
		}
	}
	set("morphTargetInfluences", mt.weights)
}

// setAttribute avoids bumping the geometry version when a is already set.
func setAttribute(g *geom.Geometry, name string, a *geom.Attribute) {
	if g.Attribute(name) != a {
		g.SetAttribute(name, a)
	}
}

func (mt *morphTargets) forget(g *geom.Geometry) {
	delete(mt.influences, g)
}
