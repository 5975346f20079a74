package shaderlib

import (
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// Uniforms maps uniform names to default values.
type Uniforms map[string]any

func merge(groups ...Uniforms) Uniforms {
	out := Uniforms{}
	for _, g := range groups {
		for k, v := range g {
			out[k] = v
		}
	}
	return out
}

// Clone returns fresh material uniforms initialised with the defaults.
func (u Uniforms) Clone() map[string]*material.Uniform {
	out := make(map[string]*material.Uniform, len(u))
	for k, v := range u {
		out[k] = &material.Uniform{Value: v}
	}
	return out
}

var noTexture *material.Texture

// Uniform groups shared by the built-in shaders.
var (
	commonUniforms = Uniforms{
		"diffuse":     math3d.ColorHex(0xeeeeee),
		"opacity":     float32(1),
		"map":         noTexture,
		"uvTransform": math3d.Identity3(),
		"alphaMap":    noTexture,
	}
	specularMapUniforms = Uniforms{
		"specularMap": noTexture,
	}
	envMapUniforms = Uniforms{
		"envMap":          noTexture,
		"flipEnvMap":      float32(-1),
		"reflectivity":    float32(1),
		"refractionRatio": float32(0.98),
	}
	aoMapUniforms = Uniforms{
		"aoMap":          noTexture,
		"aoMapIntensity": float32(1),
	}
	lightMapUniforms = Uniforms{
		"lightMap":          noTexture,
		"lightMapIntensity": float32(1),
	}
	emissiveMapUniforms = Uniforms{
		"emissiveMap": noTexture,
	}
	bumpMapUniforms = Uniforms{
		"bumpMap":   noTexture,
		"bumpScale": float32(1),
	}
	normalMapUniforms = Uniforms{
		"normalMap":   noTexture,
		"normalScale": math3d.V2(1, 1),
	}
	displacementMapUniforms = Uniforms{
		"displacementMap":   noTexture,
		"displacementScale": float32(1),
		"displacementBias":  float32(0),
	}
	roughnessMapUniforms = Uniforms{
		"roughnessMap": noTexture,
	}
	metalnessMapUniforms = Uniforms{
		"metalnessMap": noTexture,
	}
	gradientMapUniforms = Uniforms{
		"gradientMap": noTexture,
	}
	fogUniforms = Uniforms{
		"fogDensity": float32(0.00025),
		"fogNear":    float32(1),
		"fogFar":     float32(2000),
		"fogColor":   math3d.ColorHex(0xffffff),
	}
	// Per-light arrays are declared by the renderer from the light counts.
	lightUniforms = Uniforms{
		"ambientLightColor": math3d.Color{},
	}
	pointsUniforms = Uniforms{
		"diffuse":     math3d.ColorHex(0xeeeeee),
		"opacity":     float32(1),
		"size":        float32(1),
		"scale":       float32(1),
		"map":         noTexture,
		"uvTransform": math3d.Identity3(),
	}
	spriteUniforms = Uniforms{
		"diffuse":     math3d.ColorHex(0xffffff),
		"opacity":     float32(1),
		"rotation":    float32(0),
		"center":      math3d.V2(0.5, 0.5),
		"map":         noTexture,
		"uvTransform": math3d.Identity3(),
	}
)
