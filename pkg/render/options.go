package render

import (
	"fmt"
	"strings"
)

// ShadowMapType selects shadow map filtering.
type ShadowMapType int

const (
	BasicShadowMap ShadowMapType = iota
	PCFShadowMap
	PCFSoftShadowMap
)

var shadowMapTypeNames = map[string]ShadowMapType{
	"basic":   BasicShadowMap,
	"pcf":     PCFShadowMap,
	"pcfsoft": PCFSoftShadowMap,
}

func (t ShadowMapType) String() string {
	for k, v := range shadowMapTypeNames {
		if v == t {
			return k
		}
	}
	return fmt.Sprintf("ShadowMapType(%d)", int(t))
}

// UnmarshalText parses "basic", "pcf" or "pcfsoft".
func (t *ShadowMapType) UnmarshalText(b []byte) error {
	v, ok := shadowMapTypeNames[strings.ToLower(string(b))]
	if !ok {
		return fmt.Errorf("unknown shadow map type %q", b)
	}
	*t = v
	return nil
}

// ToneMapping selects the tone mapping operator.
type ToneMapping int

const (
	NoToneMapping ToneMapping = iota
	LinearToneMapping
	ReinhardToneMapping
	Uncharted2ToneMapping
	CineonToneMapping
)

var toneMappingNames = map[string]ToneMapping{
	"none":       NoToneMapping,
	"linear":     LinearToneMapping,
	"reinhard":   ReinhardToneMapping,
	"uncharted2": Uncharted2ToneMapping,
	"cineon":     CineonToneMapping,
}

func (t ToneMapping) String() string {
	for k, v := range toneMappingNames {
		if v == t {
			return k
		}
	}
	return fmt.Sprintf("ToneMapping(%d)", int(t))
}

// UnmarshalText parses an operator name such as "reinhard".
func (t *ToneMapping) UnmarshalText(b []byte) error {
	v, ok := toneMappingNames[strings.ToLower(string(b))]
	if !ok {
		return fmt.Errorf("unknown tone mapping %q", b)
	}
	*t = v
	return nil
}

// ShadowOptions configures the shadow map pass.
type ShadowOptions struct {
	Enabled bool          `toml:"enabled" yaml:"enabled"`
	Type    ShadowMapType `toml:"type" yaml:"type"`
}

// ShaderOptions configures the shader library.
type ShaderOptions struct {
	// Dir holds <id>.vert.wgsl / <id>.frag.wgsl overrides.
	Dir      string `toml:"dir" yaml:"dir"`
	Watch    bool   `toml:"watch" yaml:"watch"`
	Validate bool   `toml:"validate" yaml:"validate"`
}

// Options configures a Renderer. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	Width      int     `toml:"width" yaml:"width"`
	Height     int     `toml:"height" yaml:"height"`
	PixelRatio float64 `toml:"pixel_ratio" yaml:"pixel_ratio"`

	Precision              string `toml:"precision" yaml:"precision"`
	Alpha                  bool   `toml:"alpha" yaml:"alpha"`
	PremultipliedAlpha     bool   `toml:"premultiplied_alpha" yaml:"premultiplied_alpha"`
	LogarithmicDepthBuffer bool   `toml:"logarithmic_depth_buffer" yaml:"logarithmic_depth_buffer"`

	SortObjects      bool `toml:"sort_objects" yaml:"sort_objects"`
	AutoClear        bool `toml:"auto_clear" yaml:"auto_clear"`
	AutoClearColor   bool `toml:"auto_clear_color" yaml:"auto_clear_color"`
	AutoClearDepth   bool `toml:"auto_clear_depth" yaml:"auto_clear_depth"`
	AutoClearStencil bool `toml:"auto_clear_stencil" yaml:"auto_clear_stencil"`

	// ClearColor is 0xRRGGBB.
	ClearColor uint32  `toml:"clear_color" yaml:"clear_color"`
	ClearAlpha float32 `toml:"clear_alpha" yaml:"clear_alpha"`

	GammaFactor             float32     `toml:"gamma_factor" yaml:"gamma_factor"`
	GammaOutput             bool        `toml:"gamma_output" yaml:"gamma_output"`
	PhysicallyCorrectLights bool        `toml:"physically_correct_lights" yaml:"physically_correct_lights"`
	ToneMapping             ToneMapping `toml:"tone_mapping" yaml:"tone_mapping"`
	ToneMappingExposure     float32     `toml:"tone_mapping_exposure" yaml:"tone_mapping_exposure"`
	ToneMappingWhitePoint   float32     `toml:"tone_mapping_white_point" yaml:"tone_mapping_white_point"`

	MaxMorphTargets      int  `toml:"max_morph_targets" yaml:"max_morph_targets"`
	MaxMorphNormals      int  `toml:"max_morph_normals" yaml:"max_morph_normals"`
	LocalClippingEnabled bool `toml:"local_clipping" yaml:"local_clipping"`

	Shadows ShadowOptions `toml:"shadows" yaml:"shadows"`
	Shaders ShaderOptions `toml:"shaders" yaml:"shaders"`

	// LogLevel is read by the CLI: debug, info, warn or error.
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		Width:                 80,
		Height:                48,
		PixelRatio:            1,
		Precision:             "highp",
		PremultipliedAlpha:    true,
		SortObjects:           true,
		AutoClear:             true,
		AutoClearColor:        true,
		AutoClearDepth:        true,
		AutoClearStencil:      true,
		ClearAlpha:            1,
		GammaFactor:           2,
		ToneMappingExposure:   1,
		ToneMappingWhitePoint: 1,
		MaxMorphTargets:       8,
		MaxMorphNormals:       4,
		Shadows:               ShadowOptions{Type: PCFShadowMap},
		LogLevel:              "info",
	}
}
