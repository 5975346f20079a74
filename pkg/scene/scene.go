package scene

import (
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// Group is a transform-only node.
type Group struct {
	Object
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	g := &Group{}
	g.init(g)
	return g
}

func (*Group) node() {}

// FogKind selects the fog falloff.
type FogKind int

const (
	FogLinear FogKind = iota
	FogExp2
)

// Fog blends distant fragments toward a color.
type Fog struct {
	Kind    FogKind
	Color   math3d.Color
	Near    float32
	Far     float32
	Density float32
}

// NewFog creates linear fog between near and far.
func NewFog(c math3d.Color, near, far float32) *Fog {
	return &Fog{Kind: FogLinear, Color: c, Near: near, Far: far}
}

// NewFogExp2 creates exponential-squared fog.
func NewFogExp2(c math3d.Color, density float32) *Fog {
	return &Fog{Kind: FogExp2, Color: c, Density: density}
}

// Background is what the frame is cleared to. A nil Texture clears to
// Color; a 2D texture is drawn as a full-screen plane and a cube texture as
// a skybox.
type Background struct {
	Color   math3d.Color
	Texture *material.Texture
}

// Scene is the root of a renderable graph.
type Scene struct {
	Object

	// AutoUpdate recomputes world matrices at the start of every frame.
	AutoUpdate bool
	Fog        *Fog
	Background *Background

	// OverrideMaterial replaces every item's material when set.
	OverrideMaterial *material.Material
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	s := &Scene{AutoUpdate: true}
	s.init(s)
	return s
}

func (*Scene) node() {}
