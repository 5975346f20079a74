package render

import (
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/scene"
)

// setValue updates a declared uniform. Names the shader does not declare
// are ignored.
func setValue(u map[string]*material.Uniform, name string, v any) {
	if un, ok := u[name]; ok {
		un.Value = v
	}
}

func refreshFog(u map[string]*material.Uniform, fog *scene.Fog) {
	setValue(u, "fogColor", fog.Color)
	switch fog.Kind {
	case scene.FogLinear:
		setValue(u, "fogNear", fog.Near)
		setValue(u, "fogFar", fog.Far)
	case scene.FogExp2:
		setValue(u, "fogDensity", fog.Density)
	}
}

// refreshMaterial copies the material's parameters into its uniforms.
func (r *Renderer) refreshMaterial(u map[string]*material.Uniform, m *material.Material) {
	switch m.Model {
	case material.Basic:
		refreshCommon(u, m)
	case material.Lambert:
		refreshCommon(u, m)
		setValue(u, "emissiveMap", m.EmissiveMap)
	case material.Phong:
		refreshCommon(u, m)
		refreshPhong(u, m)
	case material.Toon:
		refreshCommon(u, m)
		refreshPhong(u, m)
		setValue(u, "gradientMap", m.GradientMap)
	case material.Standard:
		refreshCommon(u, m)
		refreshStandard(u, m)
	case material.Physical:
		refreshCommon(u, m)
		refreshStandard(u, m)
		setValue(u, "clearCoat", m.ClearCoat)
		setValue(u, "clearCoatRoughness", m.ClearCoatRoughness)
	case material.Normal:
		refreshSurface(u, m)
		setValue(u, "opacity", m.Opacity)
	case material.Depth:
		refreshCommon(u, m)
		refreshDisplacement(u, m)
	case material.Distance:
		refreshCommon(u, m)
		refreshDisplacement(u, m)
		setValue(u, "referencePosition", m.ReferencePosition)
		setValue(u, "nearDistance", m.NearDistance)
		setValue(u, "farDistance", m.FarDistance)
	case material.LineBasic:
		refreshLine(u, m)
	case material.LineDashed:
		refreshLine(u, m)
		setValue(u, "dashSize", m.DashSize)
		setValue(u, "totalSize", m.DashSize+m.GapSize)
		setValue(u, "scale", m.Scale)
	case material.Points:
		setValue(u, "diffuse", m.Color)
		setValue(u, "opacity", m.Opacity)
		setValue(u, "size", m.Size*float32(r.pixelRatio))
		setValue(u, "scale", float32(r.height)*0.5)
		setValue(u, "map", m.Map)
		if m.Map != nil {
			setValue(u, "uvTransform", m.Map.Matrix())
		}
	case material.Sprite:
		setValue(u, "diffuse", m.Color)
		setValue(u, "opacity", m.Opacity)
		setValue(u, "rotation", m.Rotation)
		setValue(u, "map", m.Map)
	case material.Shader, material.RawShader:
		// user uniforms are set by the caller
	}
}

// uvTransformSource picks the map whose transform drives every map's uv.
func uvTransformSource(m *material.Material) *material.Texture {
	for _, t := range []*material.Texture{
		m.Map, m.SpecularMap, m.DisplacementMap, m.NormalMap, m.BumpMap,
		m.RoughnessMap, m.MetalnessMap, m.AlphaMap, m.EmissiveMap,
	} {
		if t != nil {
			return t
		}
	}
	return nil
}

func refreshCommon(u map[string]*material.Uniform, m *material.Material) {
	setValue(u, "opacity", m.Opacity)
	setValue(u, "diffuse", m.Color)
	setValue(u, "emissive", m.Emissive.Scale(m.EmissiveIntensity))
	setValue(u, "map", m.Map)
	setValue(u, "alphaMap", m.AlphaMap)
	setValue(u, "specularMap", m.SpecularMap)

	setValue(u, "envMap", m.EnvMap)
	if m.EnvMap != nil {
		flip := float32(1)
		if m.EnvMap.Cube {
			flip = -1
		}
		setValue(u, "flipEnvMap", flip)
		setValue(u, "reflectivity", m.Reflectivity)
		setValue(u, "refractionRatio", m.RefractionRatio)
	}

	setValue(u, "lightMap", m.LightMap)
	setValue(u, "lightMapIntensity", m.LightMapIntensity)
	setValue(u, "aoMap", m.AOMap)
	setValue(u, "aoMapIntensity", m.AOMapIntensity)

	if t := uvTransformSource(m); t != nil {
		setValue(u, "uvTransform", t.Matrix())
	}
}

func refreshLine(u map[string]*material.Uniform, m *material.Material) {
	setValue(u, "diffuse", m.Color)
	setValue(u, "opacity", m.Opacity)
}

func refreshDisplacement(u map[string]*material.Uniform, m *material.Material) {
	setValue(u, "displacementMap", m.DisplacementMap)
	if m.DisplacementMap != nil {
		setValue(u, "displacementScale", m.DisplacementScale)
		setValue(u, "displacementBias", m.DisplacementBias)
	}
}

// refreshSurface sets the bump, normal and displacement maps. Back faces
// invert the perturbation.
func refreshSurface(u map[string]*material.Uniform, m *material.Material) {
	back := m.Side == material.BackSide
	setValue(u, "bumpMap", m.BumpMap)
	if m.BumpMap != nil {
		scale := m.BumpScale
		if back {
			scale = -scale
		}
		setValue(u, "bumpScale", scale)
	}
	setValue(u, "normalMap", m.NormalMap)
	if m.NormalMap != nil {
		scale := m.NormalScale
		if back {
			scale = scale.Scale(-1)
		}
		setValue(u, "normalScale", scale)
	}
	refreshDisplacement(u, m)
}

func refreshPhong(u map[string]*material.Uniform, m *material.Material) {
	setValue(u, "specular", m.Specular)
	setValue(u, "shininess", max(m.Shininess, 1e-4))
	setValue(u, "emissiveMap", m.EmissiveMap)
	refreshSurface(u, m)
}

func refreshStandard(u map[string]*material.Uniform, m *material.Material) {
	setValue(u, "roughness", m.Roughness)
	setValue(u, "metalness", m.Metalness)
	setValue(u, "roughnessMap", m.RoughnessMap)
	setValue(u, "metalnessMap", m.MetalnessMap)
	setValue(u, "emissiveMap", m.EmissiveMap)
	refreshSurface(u, m)
	if m.EnvMap != nil {
		setValue(u, "envMapIntensity", m.EnvMapIntensity)
	}
}
