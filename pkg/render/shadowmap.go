package render

import (
	"image"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

// Point light shadows render the six cube faces into one 4×2 atlas.
var (
	cubeDirections = [6]math3d.Vec3{
		math3d.V3(1, 0, 0), math3d.V3(-1, 0, 0), math3d.V3(0, 0, 1),
		math3d.V3(0, 0, -1), math3d.V3(0, 1, 0), math3d.V3(0, -1, 0),
	}
	cubeUps = [6]math3d.Vec3{
		math3d.V3(0, 1, 0), math3d.V3(0, 1, 0), math3d.V3(0, 1, 0),
		math3d.V3(0, 1, 0), math3d.V3(0, 0, 1), math3d.V3(0, 0, -1),
	}
	cubeViewports = [6]image.Point{
		{2, 1}, {0, 1}, {3, 1}, {1, 1}, {3, 0}, {1, 0},
	}
)

// shadowBias maps clip space [-1, 1] to texture space [0, 1].
var shadowBias = math3d.Translate(math3d.V3(0.5, 0.5, 0.5)).Mul(math3d.ScaleUniform(0.5))

const (
	variantMorph = 1 << iota
	variantSkin
)

type clipVariantKey struct {
	variant, material uint64
}

// ShadowMap renders depth from each shadow-casting light before the main
// pass.
type ShadowMap struct {
	Enabled bool

	// AutoUpdate re-renders shadow maps every frame. When false they are
	// only rendered on frames where NeedsUpdate is set.
	AutoUpdate  bool
	NeedsUpdate bool

	Type ShadowMapType

	r         *Renderer
	frustum   Frustum
	depth     [4]*material.Material
	distance  [4]*material.Material
	clipCache map[clipVariantKey]*material.Material
}

func newShadowMap(r *Renderer) *ShadowMap {
	s := &ShadowMap{
		AutoUpdate: true,
		Type:       PCFShadowMap,
		r:          r,
		clipCache:  map[clipVariantKey]*material.Material{},
	}
	for i := range s.depth {
		morph, skin := i&variantMorph != 0, i&variantSkin != 0
		s.depth[i] = material.NewDepth(material.RGBADepthPacking, morph, skin)
		s.distance[i] = material.NewDistance(morph, skin)
	}
	return s
}

func (s *ShadowMap) render(lights []*scene.Light, sc *scene.Scene, cam *scene.Camera) error {
	if !s.Enabled || len(lights) == 0 {
		return nil
	}
	if !s.AutoUpdate && !s.NeedsUpdate {
		return nil
	}
	r := s.r
	prev := r.renderTarget

	r.state.SetClearColor(math3d.ColorRGB(1, 1, 1), 1)
	r.state.SetDepthTest(true)
	r.state.SetScissorTest(false)

	for _, l := range lights {
		sh := l.Shadow
		if sh == nil || sh.Camera == nil {
			Logger().Warn("shadow-casting light has no shadow", "light", l.Name, "kind", l.Kind)
			continue
		}
		isPoint := l.Kind == scene.PointLight
		shadowCam := sh.Camera

		mapW := min(sh.MapSize[0], r.caps.MaxTextureSize)
		mapH := min(sh.MapSize[1], r.caps.MaxTextureSize)
		vpW, vpH := mapW, mapH
		if isPoint {
			mapW *= 4
			mapH *= 2
		}

		if sh.Map == nil {
			sh.Map = material.NewRenderTarget(mapW, mapH)
			sh.Map.Texture.Name = l.Name + ".shadowMap"
			sh.Map.Texture.MagFilter = material.FilterNearest
			sh.Map.Texture.MinFilter = material.FilterNearest
			shadowCam.UpdateProjectionMatrix()
		}
		if l.Kind == scene.SpotLight {
			updateSpotShadow(l, float64(mapW)/float64(mapH))
		}

		lightPos := l.WorldPosition()
		shadowCam.SetPosition(lightPos)

		faces := 1
		if isPoint {
			faces = 6
			sh.Matrix = math3d.Translate(lightPos.Negate())
		} else {
			target := math3d.Zero3()
			if l.Target != nil {
				target = l.Target.WorldPosition()
			}
			shadowCam.LookAt(target)
			shadowCam.UpdateMatrixWorld(true)
			sh.Matrix = shadowBias.Mul(shadowCam.ProjectionMatrix()).Mul(shadowCam.ViewMatrix())
		}

		r.SetRenderTarget(sh.Map)
		r.Clear(true, true, true)

		for face := range faces {
			if isPoint {
				shadowCam.LookAtUp(lightPos.Add(cubeDirections[face]), cubeUps[face])
				shadowCam.UpdateMatrixWorld(true)
				vp := cubeViewports[face]
				r.state.SetViewport(image.Rect(vp.X*vpW, vp.Y*vpH, (vp.X+1)*vpW, (vp.Y+1)*vpH))
			}
			s.frustum = NewFrustumFromMatrix(shadowCam.ViewProjectionMatrix())
			if err := s.renderObject(sc, cam, shadowCam, l, isPoint); err != nil {
				return err
			}
		}
	}

	s.NeedsUpdate = false
	r.SetRenderTarget(prev)
	return nil
}

// updateSpotShadow fits the shadow camera to the spot cone.
func updateSpotShadow(l *scene.Light, aspect float64) {
	c := l.Shadow.Camera
	fov := 2 * l.Angle
	far := c.Far
	if l.Distance > 0 {
		far = float64(l.Distance)
	}
	if fov != c.FOV || aspect != c.AspectRatio || far != c.Far {
		c.SetFOV(fov)
		c.SetAspectRatio(aspect)
		c.SetClipPlanes(c.Near, far)
	}
}

func (s *ShadowMap) renderObject(node scene.Node, cam, shadowCam *scene.Camera, l *scene.Light, isPoint bool) error {
	o := node.Obj()
	if !o.Visible {
		return nil
	}

	if o.Layers.Test(cam.Layers) && o.CastShadow && o.Geometry != nil {
		switch node.(type) {
		case *scene.Mesh, *scene.SkinnedMesh, *scene.Line, *scene.Points:
			if !o.FrustumCulled || s.frustum.IntersectsObject(o) {
				if err := s.drawCaster(node, shadowCam, l, isPoint); err != nil {
					return err
				}
			}
		}
	}

	for _, child := range o.Children() {
		if err := s.renderObject(child, cam, shadowCam, l, isPoint); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShadowMap) drawCaster(node scene.Node, shadowCam *scene.Camera, l *scene.Light, isPoint bool) error {
	r := s.r
	o := node.Obj()
	g := r.objects.update(o.Geometry)

	if len(o.Materials) > 1 {
		for i := range g.Groups {
			grp := &g.Groups[i]
			if grp.MaterialIndex < 0 || grp.MaterialIndex >= len(o.Materials) {
				continue
			}
			m := o.Materials[grp.MaterialIndex]
			if m == nil || !m.Visible {
				continue
			}
			dm := s.depthMaterial(node, m, l, shadowCam, isPoint)
			if err := r.renderBufferDirect(shadowCam, nil, g, dm, node, grp); err != nil {
				return err
			}
		}
		return nil
	}

	m := o.Materials[0]
	if m == nil || !m.Visible {
		return nil
	}
	dm := s.depthMaterial(node, m, l, shadowCam, isPoint)
	return r.renderBufferDirect(shadowCam, nil, g, dm, node, nil)
}

// depthMaterial picks the depth (or distance, for point lights) variant
// matching the caster's morphing and skinning, and copies the caster's
// side, wireframe and clipping onto it.
func (s *ShadowMap) depthMaterial(node scene.Node, m *material.Material, l *scene.Light, shadowCam *scene.Camera, isPoint bool) *material.Material {
	o := node.Obj()
	variant := 0
	if m.MorphTargets && len(o.Geometry.MorphAttributes[geom.AttrPosition]) > 0 {
		variant |= variantMorph
	}
	if _, skinned := node.(*scene.SkinnedMesh); skinned {
		if m.Skinning {
			variant |= variantSkin
		} else {
			Logger().Debug("skinned mesh drawn into shadow map without skinning", "object", o.Name)
		}
	}

	result := s.depth[variant]
	if isPoint {
		result = s.distance[variant]
	}

	if s.r.LocalClippingEnabled && m.ClipShadows && len(m.ClippingPlanes) > 0 {
		key := clipVariantKey{result.ID(), m.ID()}
		cached, ok := s.clipCache[key]
		if !ok {
			cached = result.Clone()
			s.clipCache[key] = cached
			m.OnDispose(func(*material.Material) {
				cached.Dispose()
				delete(s.clipCache, key)
			})
		}
		result = cached
	}

	result.Visible = m.Visible
	result.Wireframe = m.Wireframe
	result.Side = shadowSide(m)
	result.ClipShadows = m.ClipShadows
	result.ClippingPlanes = m.ClippingPlanes
	result.ClipIntersection = m.ClipIntersection
	result.WireframeLineWidth = m.WireframeLineWidth
	result.LineWidth = m.LineWidth

	if isPoint {
		result.ReferencePosition = l.WorldPosition()
		result.NearDistance = float32(shadowCam.Near)
		result.FarDistance = float32(shadowCam.Far)
	}
	return result
}

// shadowSide renders the faces facing away from the light unless the
// material asks for a specific side.
func shadowSide(m *material.Material) material.Side {
	if m.ShadowSide != nil {
		return *m.ShadowSide
	}
	switch m.Side {
	case material.FrontSide:
		return material.BackSide
	case material.BackSide:
		return material.FrontSide
	}
	return m.Side
}

func (s *ShadowMap) dispose() {
	for i := range s.depth {
		s.depth[i].Dispose()
		s.distance[i].Dispose()
	}
	for _, m := range s.clipCache {
		m.Dispose()
	}
	clear(s.clipCache)
}
