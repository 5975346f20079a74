package render

import (
	"slices"

	"github.com/Masterminds/semver/v3"
)

var (
	instancingConstraint = mustConstraint(">= 3.3")
	floatTexConstraint   = mustConstraint(">= 3.0")
)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Capabilities is what the device supports, queried once when the renderer
// is created.
type Capabilities struct {
	APIVersion *semver.Version

	MaxTextures         int
	MaxVertexTextures   int
	MaxTextureSize      int
	MaxCubemapSize      int
	MaxAttributes       int
	MaxVertexUniforms   int
	MaxVaryings         int
	MaxFragmentUniforms int

	VertexTextures        bool
	FloatFragmentTextures bool
	FloatVertexTextures   bool

	Precision              string
	LogarithmicDepthBuffer bool
	Instancing             bool

	extensions []string
}

func newCapabilities(dev Device, opts Options) Capabilities {
	c := Capabilities{
		MaxTextures:         dev.Parameter(MaxTextureImageUnits),
		MaxVertexTextures:   dev.Parameter(MaxVertexTextureImageUnits),
		MaxTextureSize:      dev.Parameter(MaxTextureSize),
		MaxCubemapSize:      dev.Parameter(MaxCubeMapTextureSize),
		MaxAttributes:       dev.Parameter(MaxVertexAttribs),
		MaxVertexUniforms:   dev.Parameter(MaxVertexUniformVectors),
		MaxVaryings:         dev.Parameter(MaxVaryingVectors),
		MaxFragmentUniforms: dev.Parameter(MaxFragmentUniformVectors),
		Precision:           opts.Precision,
		extensions:          dev.Extensions(),
	}
	if c.Precision == "" {
		c.Precision = "highp"
	}

	v, err := semver.NewVersion(dev.APIVersion())
	if err != nil {
		Logger().Warn("unparseable device API version", "version", dev.APIVersion(), "err", err)
		v = semver.MustParse("0.0.0")
	}
	c.APIVersion = v

	modern := floatTexConstraint.Check(v)
	c.VertexTextures = c.MaxVertexTextures > 0
	c.FloatFragmentTextures = modern || c.HasExtension("OES_texture_float")
	c.FloatVertexTextures = c.VertexTextures && c.FloatFragmentTextures
	c.LogarithmicDepthBuffer = opts.LogarithmicDepthBuffer && (modern || c.HasExtension("EXT_frag_depth"))
	c.Instancing = instancingConstraint.Check(v) || c.HasExtension("ANGLE_instanced_arrays")

	Logger().Info("device capabilities",
		"api", v.String(),
		"maxTextures", c.MaxTextures,
		"maxTextureSize", c.MaxTextureSize,
		"instancing", c.Instancing,
		"floatVertexTextures", c.FloatVertexTextures)
	return c
}

// HasExtension reports whether the device advertised the extension.
func (c Capabilities) HasExtension(name string) bool {
	return slices.Contains(c.extensions, name)
}

// Modern reports whether the API version needs no power-of-two resizing.
func (c Capabilities) Modern() bool {
	return c.APIVersion != nil && floatTexConstraint.Check(c.APIVersion)
}
