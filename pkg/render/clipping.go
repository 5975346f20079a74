package render

import (
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

// clipping maintains the view-space clipping planes uploaded through the
// shared "clippingPlanes" uniform: the renderer's global planes, optionally
// followed by a material's local planes.
type clipping struct {
	uniform *material.Uniform

	globalState      []float32
	numGlobalPlanes  int
	localEnabled     bool
	renderingShadows bool

	NumPlanes       int
	NumIntersection int
}

func newClipping() *clipping {
	return &clipping{uniform: &material.Uniform{}}
}

// init projects the global planes for the frame and reports whether any
// clipping is active.
func (c *clipping) init(planes []math3d.Plane, enableLocal bool, cam *scene.Camera) bool {
	enabled := len(planes) != 0 || enableLocal ||
		// a disabled state must be uploaded once after clipping was used
		c.numGlobalPlanes != 0 || c.localEnabled

	c.localEnabled = enableLocal
	c.uniform.Value = c.globalState
	c.globalState = c.projectPlanes(planes, cam, 0, false)
	c.numGlobalPlanes = len(planes)
	return enabled
}

func (c *clipping) beginShadows() {
	c.renderingShadows = true
	c.projectPlanes(nil, nil, 0, false)
}

func (c *clipping) endShadows() {
	c.renderingShadows = false
	c.resetGlobalState()
}

// setState selects the planes for one material. cache holds the material's
// projected planes so an unchanged camera can skip the transform.
func (c *clipping) setState(m *material.Material, cam *scene.Camera, cache *materialProperties, useCache bool) {
	planes := m.ClippingPlanes
	if !c.localEnabled || len(planes) == 0 || (c.renderingShadows && !m.ClipShadows) {
		if c.renderingShadows {
			// no local planes: the global ones are off during shadows
			c.projectPlanes(nil, nil, 0, false)
		} else {
			c.resetGlobalState()
		}
		return
	}

	nGlobal := c.numGlobalPlanes
	if c.renderingShadows {
		nGlobal = 0
	}
	lGlobal := nGlobal * 4

	c.uniform.Value = cache.clippingState
	dst := c.projectPlanes(planes, cam, lGlobal, useCache)
	copy(dst[:lGlobal], c.globalState)
	cache.clippingState = dst

	if m.ClipIntersection {
		c.NumIntersection = c.NumPlanes
	} else {
		c.NumIntersection = 0
	}
	c.NumPlanes += nGlobal
}

func (c *clipping) resetGlobalState() {
	if v, _ := c.uniform.Value.([]float32); !sameSlice(v, c.globalState) {
		c.uniform.Value = c.globalState
		c.uniform.UpToDate = c.numGlobalPlanes == 0
	}
	c.NumPlanes = c.numGlobalPlanes
	c.NumIntersection = 0
}

// projectPlanes writes planes in view space into the uniform array after
// dstOffset floats and returns it. skipTransform reuses the array as is.
func (c *clipping) projectPlanes(planes []math3d.Plane, cam *scene.Camera, dstOffset int, skipTransform bool) []float32 {
	var dst []float32
	if n := len(planes); n != 0 {
		dst, _ = c.uniform.Value.([]float32)
		flatSize := dstOffset + n*4
		if !skipTransform || len(dst) != flatSize {
			view := cam.ViewMatrix()
			normal := math3d.NormalMatrix(view)
			if cap(dst) < flatSize {
				dst = make([]float32, flatSize)
			} else {
				dst = dst[:flatSize]
			}
			for i, p := range planes {
				p = p.Transform(view, normal)
				o := dstOffset + i*4
				dst[o] = float32(p.Normal.X)
				dst[o+1] = float32(p.Normal.Y)
				dst[o+2] = float32(p.Normal.Z)
				dst[o+3] = float32(p.D)
			}
		}
		c.uniform.Value = dst
		c.uniform.UpToDate = false
	}
	c.NumPlanes = len(planes)
	return dst
}

func sameSlice(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
