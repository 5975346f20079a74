package render

import (
	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
	"github.com/taigrr/tableau/pkg/shaderlib"
)

// backgroundRenderer clears the frame and draws texture backgrounds. A
// cube texture becomes a skybox queued ahead of the opaque items; a 2D
// texture is drawn at once as a full-screen plane.
type backgroundRenderer struct {
	r *Renderer

	box        *scene.Mesh
	boxVersion uint64

	plane       *scene.Mesh
	planeCamera *scene.Camera
}

func newBackgroundRenderer(r *Renderer) *backgroundRenderer {
	return &backgroundRenderer{r: r}
}

func (b *backgroundRenderer) render(list *RenderList, sc *scene.Scene, cam *scene.Camera, forceClear bool) error {
	r := b.r
	bg := sc.Background

	switch {
	case bg == nil:
		r.setClear(r.clearColor, r.clearAlpha)
	case bg.Texture == nil:
		r.setClear(bg.Color, 1)
		forceClear = true
	}

	if r.AutoClear || forceClear {
		r.Clear(r.AutoClearColor, r.AutoClearDepth, r.AutoClearStencil)
	}

	if bg == nil || bg.Texture == nil {
		return nil
	}
	if bg.Texture.Cube {
		return b.skybox(list, cam, bg.Texture)
	}
	return b.fullscreen(bg.Texture)
}

func (b *backgroundRenderer) skybox(list *RenderList, cam *scene.Camera, tex *material.Texture) error {
	r := b.r
	if b.box == nil || b.boxVersion != r.lib.Version() {
		sh, err := r.lib.Get(shaderlib.Cube)
		if err != nil {
			return err
		}
		if b.box == nil {
			g := geom.NewBox(1, 1, 1)
			g.Name = "background"
			g.DeleteAttribute(geom.AttrNormal)
			g.DeleteAttribute(geom.AttrUV)

			m := material.NewShader(sh.Vertex, sh.Fragment, sh.Uniforms.Clone())
			m.Name = "background.cube"
			m.Side = material.BackSide
			m.DepthWrite = false
			b.box = scene.NewMesh(g, m)
			b.box.FrustumCulled = false
		} else {
			m := b.box.Material()
			m.Shader.Vertex = sh.Vertex
			m.Shader.Fragment = sh.Fragment
			m.NeedsUpdate = true
		}
		b.boxVersion = r.lib.Version()
	}

	m := b.box.Material()
	m.Shader.Uniforms["tCube"].Value = tex
	m.Shader.Uniforms["tFlip"].Value = float32(-1)
	m.Shader.UniformsNeedUpdate = true

	// the box follows the camera so it never parallaxes
	b.box.SetPosition(cam.WorldPosition())
	b.box.UpdateMatrixWorld(true)

	g := r.objects.update(b.box.Geometry)
	list.Unshift(b.box, g, m, 0, nil, r.programID(m))
	return nil
}

func (b *backgroundRenderer) fullscreen(tex *material.Texture) error {
	r := b.r
	if b.plane == nil {
		g := geom.NewPlane(2, 2)
		g.Name = "background"
		m := material.NewBasic(math3d.ColorRGB(1, 1, 1))
		m.Name = "background.plane"
		m.DepthTest = false
		m.DepthWrite = false
		m.Fog = false
		b.plane = scene.NewMesh(g, m)
		b.planeCamera = scene.NewOrthographicCamera(-1, 1, 1, -1, 0, 1)
		b.planeCamera.UpdateMatrixWorld(true)
	}

	m := b.plane.Material()
	if m.Map != tex {
		m.Map = tex
		m.NeedsUpdate = true
	}
	g := r.objects.update(b.plane.Geometry)
	return r.renderBufferDirect(b.planeCamera, nil, g, m, b.plane, nil)
}

func (b *backgroundRenderer) dispose() {
	for _, mesh := range []*scene.Mesh{b.box, b.plane} {
		if mesh == nil {
			continue
		}
		mesh.Material().Dispose()
		mesh.Geometry.Dispose()
	}
	b.box, b.plane = nil, nil
}
