package render

import (
	"math"

	"github.com/gogpu/gputypes"

	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
	"github.com/taigrr/tableau/pkg/shaderlib"
)

// flareRenderer draws lens flare elements in screen space along the line
// from the flare's projected position through the screen center. Flares
// are not occlusion tested.
type flareRenderer struct {
	*quadPass
}

func newFlareRenderer(r *Renderer) *flareRenderer {
	return &flareRenderer{quadPass: newQuadPass(r, shaderlib.Flare)}
}

// flarePosition projects the flare anchor to normalized device
// coordinates. ok is false when it falls outside the view.
func flarePosition(f *scene.LensFlare, cam *scene.Camera) (ndc math3d.Vec3, ok bool) {
	clip := cam.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(f.WorldPosition(), 1))
	if clip.W <= 0 {
		return math3d.Vec3{}, false
	}
	ndc = clip.PerspectiveDivide()
	ok = ndc.X >= -1 && ndc.X <= 1 && ndc.Y >= -1 && ndc.Y <= 1 && ndc.Z >= -1 && ndc.Z <= 1
	return ndc, ok
}

func (fr *flareRenderer) render(flares []*scene.LensFlare, cam *scene.Camera) error {
	if len(flares) == 0 {
		return nil
	}
	r := fr.r
	vp := r.currentViewport
	if vp.Dx() == 0 || vp.Dy() == 0 {
		return nil
	}
	invAspect := float64(vp.Dy()) / float64(vp.Dx())

	prog, err := fr.begin()
	if err != nil {
		return err
	}
	defer fr.end()
	r.state.SetDepthTest(false)
	r.state.SetDepthMask(false)
	set := func(name string, v any) { r.uploader.value(prog, name, v) }

	for _, f := range flares {
		anchor, ok := flarePosition(f, cam)
		if !ok {
			continue
		}

		// elements mirror the anchor through the screen center
		mirror := anchor.Scale(-2)
		for _, el := range f.Elements {
			if el.Opacity <= 0.001 || el.Size <= 0.001 {
				continue
			}
			pos := math3d.V3(
				anchor.X+mirror.X*float64(el.Distance),
				anchor.Y+mirror.Y*float64(el.Distance),
				anchor.Z,
			)
			size := float64(el.Size) / float64(vp.Dy())

			set("screenPosition", pos)
			set("flareScale", math3d.V2(size*invAspect, size))
			set("rotation", float32(pos.X*math.Pi*0.25))
			set("opacity", el.Opacity)
			set("diffuse", el.Color)
			set("uvTransform", math3d.Identity3())

			r.state.SetBlending(el.Blending, false, gputypes.BlendStateAlpha())
			if err := fr.setTexture(prog, "map", el.Texture); err != nil {
				return err
			}
			fr.draw()
		}
	}
	return nil
}
