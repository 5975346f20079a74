package render

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
	"github.com/taigrr/tableau/pkg/shaderlib"
)

// quadPass draws textured unit quads with one program built from a
// library shader. Sprites and lens flares both use it.
type quadPass struct {
	r        *Renderer
	id       shaderlib.ID
	extra    []string
	geometry *geom.Geometry
	program  *Program
	version  uint64
	white    *material.Texture
}

func newQuadPass(r *Renderer, id shaderlib.ID, extra ...string) *quadPass {
	g := geom.New()
	g.Name = id.String() + ".quad"
	g.SetAttribute(geom.AttrPosition, geom.NewAttribute([]float32{
		-0.5, -0.5, 0,
		0.5, -0.5, 0,
		0.5, 0.5, 0,
		-0.5, 0.5, 0,
	}, 3))
	g.SetAttribute(geom.AttrUV, geom.NewAttribute([]float32{0, 0, 1, 0, 1, 1, 0, 1}, 2))
	g.SetIndex(geom.NewIndex([]uint32{0, 1, 2, 0, 2, 3}))

	white := material.NewTexture(1, 1)
	white.Name = "white"
	for i := range white.Image.Pix {
		white.Image.Pix[i] = 0xff
	}
	return &quadPass{r: r, id: id, extra: extra, geometry: g, white: white}
}

// begin binds the program and the quad. It rebuilds the program when the
// library sources changed.
func (q *quadPass) begin() (*Program, error) {
	r := q.r
	if q.program == nil || q.version != r.lib.Version() {
		sh, err := r.lib.Get(q.id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownShader, err)
		}
		names := uniformNames(sh.Uniforms.Clone())
		names = append(names, q.extra...)
		slices.Sort(names)
		src := ProgramSource{
			Name:       q.id.String(),
			Vertex:     sh.Vertex,
			Fragment:   sh.Fragment,
			Defines:    map[string]string{},
			Uniforms:   slices.Compact(names),
			Attributes: []string{geom.AttrPosition, geom.AttrUV},
		}
		code := fmt.Sprintf("%s:%d", q.id, r.lib.Version())
		prog, err := r.programs.acquire(code, src)
		if err != nil {
			return nil, err
		}
		r.programs.release(q.program)
		q.program = prog
		q.version = r.lib.Version()
	}

	prog := q.program
	r.state.UseProgram(prog.handle)
	r.currentGeometryProgram = ""
	r.currentMaterialID = 0

	r.setupVertexAttributes(prog, q.geometry)
	r.dev.BindIndexBuffer(r.attrs.updateIndex(q.geometry.Index()).handle)

	r.state.SetCullFace(gputypes.CullModeNone)
	r.state.SetFlipSided(false)
	return prog, nil
}

// end restores the state the main passes expect.
func (q *quadPass) end() {
	q.r.state.SetCullFace(gputypes.CullModeBack)
	// the next setProgram must rebind its uniforms
	q.r.currentCamera = nil
}

func (q *quadPass) draw() {
	q.r.dev.DrawElements(DrawTriangles, 6, 0)
	q.r.info.update(6, DrawTriangles, 1)
}

func (q *quadPass) setTexture(prog *Program, name string, tex *material.Texture) error {
	if tex == nil {
		tex = q.white
	}
	q.r.textures.resetUnits()
	return q.r.uploader.set(prog, name, tex)
}

func (q *quadPass) dispose() {
	q.r.programs.release(q.program)
	q.program = nil
	q.geometry.Dispose()
	q.white.Dispose()
}

// spriteRenderer draws camera-facing sprites after the scene's transparent
// items.
type spriteRenderer struct {
	*quadPass
	items []spriteItem
}

type spriteItem struct {
	sprite    *scene.Sprite
	modelView math3d.Mat4
	z         float64
}

func newSpriteRenderer(r *Renderer) *spriteRenderer {
	return &spriteRenderer{quadPass: newQuadPass(r, shaderlib.Sprite,
		"scale", "fogType", "fogColor", "fogNear", "fogFar", "fogDensity")}
}

// Fog selector uploaded as fogType.
const (
	spriteNoFog int32 = iota
	spriteLinearFog
	spriteExp2Fog
)

// painterSort orders sprites back to front. Equal depths draw the newest
// object first.
func painterSort(a, b spriteItem) int {
	return cmp.Or(
		cmp.Compare(a.sprite.RenderOrder, b.sprite.RenderOrder),
		cmp.Compare(b.z, a.z),
		cmp.Compare(b.sprite.ID(), a.sprite.ID()),
	)
}

func (s *spriteRenderer) render(sprites []*scene.Sprite, sc *scene.Scene, cam *scene.Camera) error {
	if len(sprites) == 0 {
		return nil
	}
	r := s.r
	prog, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end()
	set := func(name string, v any) { r.uploader.value(prog, name, v) }

	set("projectionMatrix", cam.ProjectionMatrix())

	fogType := spriteNoFog
	if fog := sc.Fog; fog != nil {
		set("fogColor", fog.Color)
		switch fog.Kind {
		case scene.FogLinear:
			fogType = spriteLinearFog
			set("fogNear", fog.Near)
			set("fogFar", fog.Far)
		case scene.FogExp2:
			fogType = spriteExp2Fog
			set("fogDensity", fog.Density)
		}
	}
	set("fogType", fogType)

	view := cam.ViewMatrix()
	s.items = s.items[:0]
	for _, sp := range sprites {
		mv := view.Mul(sp.MatrixWorld())
		s.items = append(s.items, spriteItem{sprite: sp, modelView: mv, z: -mv[14]})
	}
	slices.SortStableFunc(s.items, painterSort)

	for _, it := range s.items {
		sp := it.sprite
		m := sp.Material()
		if m == nil || !m.Visible {
			continue
		}
		sp.FireBeforeRender(sc, cam, nil, m, nil)

		world := sp.MatrixWorld()
		scale := math3d.V2(
			math3d.V3(world[0], world[1], world[2]).Len(),
			math3d.V3(world[4], world[5], world[6]).Len(),
		)
		set("modelViewMatrix", it.modelView)
		set("scale", scale)
		set("center", sp.Center)
		set("diffuse", m.Color)
		set("opacity", m.Opacity)
		set("rotation", m.Rotation)
		if m.Map != nil {
			set("uvTransform", m.Map.Matrix())
		} else {
			set("uvTransform", math3d.Identity3())
		}
		if m.Fog {
			set("fogType", fogType)
		} else {
			set("fogType", spriteNoFog)
		}

		r.state.SetBlending(m.Blending, m.Premultiplied, m.BlendState)
		r.state.SetDepthTest(m.DepthTest)
		r.state.SetDepthMask(m.DepthWrite)
		if err := s.setTexture(prog, "map", m.Map); err != nil {
			return err
		}
		s.draw()

		sp.FireAfterRender(sc, cam, nil, m, nil)
	}
	return nil
}
