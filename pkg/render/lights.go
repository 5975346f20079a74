package render

import (
	"math"
	"strconv"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

// lightsHash changes whenever programs need different light loops.
type lightsHash struct {
	directional int
	point       int
	spot        int
	hemi        int
	shadows     int
}

// lights aggregates the frame's lights into view-space uniforms. Uniform
// values are shared by pointer with every lit material so one setup per
// frame serves all of them.
type lights struct {
	hash     lightsHash
	uniforms map[string]*material.Uniform
	names    []string
}

func newLights() *lights {
	return &lights{uniforms: map[string]*material.Uniform{}}
}

func (l *lights) set(name string, v any) {
	u, ok := l.uniforms[name]
	if !ok {
		u = &material.Uniform{}
		l.uniforms[name] = u
	}
	u.Value = v
	l.names = append(l.names, name)
}

func indexed(array string, i int, field string) string {
	name := array + "[" + strconv.Itoa(i) + "]"
	if field != "" {
		name += "." + field
	}
	return name
}

func lightShadow(l *scene.Light, enabled bool) (*scene.LightShadow, bool) {
	if !enabled || !l.CastShadow || l.Shadow == nil || l.Shadow.Map == nil {
		return nil, false
	}
	return l.Shadow, true
}

// setup recomputes the light uniforms for cam.
func (l *lights) setup(all []*scene.Light, shadows []*scene.Light, cam *scene.Camera, shadowsEnabled bool) {
	view := cam.ViewMatrix()
	l.names = l.names[:0]

	var ambient math3d.Color
	var nDir, nPoint, nSpot, nHemi int

	for _, light := range all {
		if t := light.Target; t != nil && t.Parent() == nil {
			t.UpdateMatrixWorld(false)
		}
		c := light.Color.Scale(light.Intensity)

		switch light.Kind {
		case scene.AmbientLight:
			ambient = ambient.Add(c)

		case scene.DirectionalLight:
			dir := view.MulVec3Dir(light.Direction().Negate()).Normalize()
			l.set(indexed("directionalLights", nDir, "direction"), dir)
			l.set(indexed("directionalLights", nDir, "color"), c)
			sh, ok := lightShadow(light, shadowsEnabled)
			l.setShadow("directionalLights", nDir, sh, ok)
			if ok {
				l.set(indexed("directionalShadowMap", nDir, ""), sh.Map.Texture)
				l.set(indexed("directionalShadowMatrix", nDir, ""), sh.Matrix)
			}
			nDir++

		case scene.SpotLight:
			pos := view.MulVec3(light.WorldPosition())
			dir := view.MulVec3Dir(light.Direction().Negate()).Normalize()
			l.set(indexed("spotLights", nSpot, "position"), pos)
			l.set(indexed("spotLights", nSpot, "direction"), dir)
			l.set(indexed("spotLights", nSpot, "color"), c)
			l.set(indexed("spotLights", nSpot, "distance"), light.Distance)
			l.set(indexed("spotLights", nSpot, "coneCos"), float32(math.Cos(light.Angle)))
			l.set(indexed("spotLights", nSpot, "penumbraCos"), float32(math.Cos(light.Angle*(1-light.Penumbra))))
			l.set(indexed("spotLights", nSpot, "decay"), decayOf(light))
			sh, ok := lightShadow(light, shadowsEnabled)
			l.setShadow("spotLights", nSpot, sh, ok)
			if ok {
				l.set(indexed("spotShadowMap", nSpot, ""), sh.Map.Texture)
				l.set(indexed("spotShadowMatrix", nSpot, ""), sh.Matrix)
			}
			nSpot++

		case scene.PointLight:
			pos := view.MulVec3(light.WorldPosition())
			l.set(indexed("pointLights", nPoint, "position"), pos)
			l.set(indexed("pointLights", nPoint, "color"), c)
			l.set(indexed("pointLights", nPoint, "distance"), light.Distance)
			l.set(indexed("pointLights", nPoint, "decay"), decayOf(light))
			sh, ok := lightShadow(light, shadowsEnabled)
			l.setShadow("pointLights", nPoint, sh, ok)
			if ok {
				l.set(indexed("pointLights", nPoint, "shadowCameraNear"), float32(sh.Camera.Near))
				l.set(indexed("pointLights", nPoint, "shadowCameraFar"), float32(sh.Camera.Far))
				l.set(indexed("pointShadowMap", nPoint, ""), sh.Map.Texture)
				l.set(indexed("pointShadowMatrix", nPoint, ""), sh.Matrix)
			}
			nPoint++

		case scene.HemisphereLight:
			dir := view.MulVec3Dir(light.WorldPosition()).Normalize()
			l.set(indexed("hemisphereLights", nHemi, "direction"), dir)
			l.set(indexed("hemisphereLights", nHemi, "skyColor"), c)
			l.set(indexed("hemisphereLights", nHemi, "groundColor"), light.GroundColor.Scale(light.Intensity))
			nHemi++
		}
	}
	l.set("ambientLightColor", ambient)

	l.hash = lightsHash{
		directional: nDir,
		point:       nPoint,
		spot:        nSpot,
		hemi:        nHemi,
		shadows:     len(shadows),
	}
}

func (l *lights) setShadow(array string, i int, sh *scene.LightShadow, ok bool) {
	l.set(indexed(array, i, "shadow"), ok)
	if !ok {
		return
	}
	l.set(indexed(array, i, "shadowBias"), sh.Bias)
	l.set(indexed(array, i, "shadowRadius"), sh.Radius)
	l.set(indexed(array, i, "shadowMapSize"), math3d.V2(float64(sh.MapSize[0]), float64(sh.MapSize[1])))
}

// decayOf disables decay for lights with infinite range.
func decayOf(l *scene.Light) float32 {
	if l.Distance == 0 {
		return 0
	}
	return l.Decay
}

// bind points the material's light uniforms at the shared values.
func (l *lights) bind(uniforms map[string]*material.Uniform) {
	for _, name := range l.names {
		uniforms[name] = l.uniforms[name]
	}
}

// markNeedsUpdate flags the shared values for upload, or marks them as
// already current.
func (l *lights) markNeedsUpdate(uniforms map[string]*material.Uniform, refresh bool) {
	for _, name := range l.names {
		if u, ok := uniforms[name]; ok {
			u.UpToDate = !refresh
		}
	}
}
