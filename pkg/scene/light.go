package scene

import (
	"math"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// LightKind is the type of a light.
type LightKind int

const (
	AmbientLight LightKind = iota
	DirectionalLight
	PointLight
	SpotLight
	HemisphereLight
)

func (k LightKind) String() string {
	switch k {
	case AmbientLight:
		return "ambient"
	case DirectionalLight:
		return "directional"
	case PointLight:
		return "point"
	case SpotLight:
		return "spot"
	case HemisphereLight:
		return "hemisphere"
	}
	return "unknown"
}

// LightShadow is the shadow-map state of a shadow-casting light.
type LightShadow struct {
	Camera  *Camera
	MapSize [2]int
	Bias    float32
	Radius  float32

	// Map and Matrix are filled in by the renderer's shadow pass.
	Map    *material.RenderTarget
	Matrix math3d.Mat4
}

// Light illuminates the scene. Which fields matter depends on Kind.
type Light struct {
	Object

	Kind        LightKind
	Color       math3d.Color
	Intensity   float32
	GroundColor math3d.Color

	// Point and spot falloff
	Distance float32
	Decay    float32

	// Spot cone
	Angle    float64
	Penumbra float64

	// Target is the point directional and spot lights aim at. It does not
	// need to be part of the scene.
	Target *Object

	Shadow *LightShadow
}

func newLight(kind LightKind, c math3d.Color, intensity float32) *Light {
	l := &Light{Kind: kind, Color: c, Intensity: intensity, Decay: 1}
	l.init(l)
	return l
}

func (*Light) node() {}

// NewAmbientLight creates a light that lights everything equally.
func NewAmbientLight(c math3d.Color, intensity float32) *Light {
	return newLight(AmbientLight, c, intensity)
}

// NewHemisphereLight creates a sky/ground gradient light.
func NewHemisphereLight(sky, ground math3d.Color, intensity float32) *Light {
	l := newLight(HemisphereLight, sky, intensity)
	l.GroundColor = ground
	l.SetPosition(math3d.Up())
	return l
}

// NewDirectionalLight creates a light shining from its position toward its
// target (the origin by default).
func NewDirectionalLight(c math3d.Color, intensity float32) *Light {
	l := newLight(DirectionalLight, c, intensity)
	l.SetPosition(math3d.Up())
	l.Target = &NewGroup().Object
	l.Shadow = &LightShadow{
		Camera:  NewOrthographicCamera(-5, 5, 5, -5, 0.5, 500),
		MapSize: [2]int{512, 512},
	}
	return l
}

// NewPointLight creates an omnidirectional light.
func NewPointLight(c math3d.Color, intensity, distance, decay float32) *Light {
	l := newLight(PointLight, c, intensity)
	l.Distance = distance
	l.Decay = decay
	l.Shadow = &LightShadow{
		Camera:  NewPerspectiveCamera(math.Pi/2, 1, 0.5, 500),
		MapSize: [2]int{512, 512},
	}
	return l
}

// NewSpotLight creates a cone light.
func NewSpotLight(c math3d.Color, intensity, distance float32, angle, penumbra float64) *Light {
	l := newLight(SpotLight, c, intensity)
	l.Distance = distance
	l.Angle = angle
	l.Penumbra = penumbra
	l.SetPosition(math3d.Up())
	l.Target = &NewGroup().Object
	l.Shadow = &LightShadow{
		Camera:  NewPerspectiveCamera(2*angle, 1, 0.5, 500),
		MapSize: [2]int{512, 512},
	}
	return l
}

// Direction returns the world-space unit vector from the light toward its
// target.
func (l *Light) Direction() math3d.Vec3 {
	target := math3d.Zero3()
	if l.Target != nil {
		target = l.Target.WorldPosition()
	}
	return target.Sub(l.WorldPosition()).Normalize()
}
