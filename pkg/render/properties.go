package render

import (
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/scene"
)

// materialProperties is the renderer's per-material state.
type materialProperties struct {
	program  *Program
	uniforms map[string]*material.Uniform

	fog           *scene.Fog
	lightsHash    lightsHash
	shaderVersion uint64
	observed      bool

	// clipping counts are only tracked for programs that clip.
	clips             bool
	numClippingPlanes int
	numIntersection   int
	clippingState     []float32
}

type textureProperties struct {
	handle  Handle
	version int
}

type targetProperties struct {
	framebuffer Handle
	texture     Handle
}

// properties stores renderer-side data keyed by the objects it belongs to.
type properties struct {
	materials map[*material.Material]*materialProperties
	textures  map[*material.Texture]*textureProperties
	targets   map[*material.RenderTarget]*targetProperties
}

func newProperties() *properties {
	return &properties{
		materials: map[*material.Material]*materialProperties{},
		textures:  map[*material.Texture]*textureProperties{},
		targets:   map[*material.RenderTarget]*targetProperties{},
	}
}

func (p *properties) material(m *material.Material) *materialProperties {
	mp, ok := p.materials[m]
	if !ok {
		mp = &materialProperties{}
		p.materials[m] = mp
	}
	return mp
}

func (p *properties) texture(t *material.Texture) *textureProperties {
	tp, ok := p.textures[t]
	if !ok {
		tp = &textureProperties{}
		p.textures[t] = tp
	}
	return tp
}

func (p *properties) target(rt *material.RenderTarget) *targetProperties {
	tp, ok := p.targets[rt]
	if !ok {
		tp = &targetProperties{}
		p.targets[rt] = tp
	}
	return tp
}

func (p *properties) clear() {
	clear(p.materials)
	clear(p.textures)
	clear(p.targets)
}
