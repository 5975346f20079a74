package soft

import (
	"image"
	"math"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/render"
)

// texture is a device texture: a 2D image, six cube faces or a square of
// RGBA floats. Colors are sampled as 0-1 vectors (X=R, Y=G, Z=B, W=A).
type texture struct {
	img    *image.RGBA
	faces  [6]*image.RGBA
	cube   bool
	params render.TextureParams

	floats []float32
	size   int
}

// sample2D samples at uv. v=0 is the bottom row of a flipped image and the
// top row otherwise.
func (t *texture) sample2D(u, v float64) math3d.Vec4 {
	if t == nil || t.img == nil {
		return math3d.Vec4{X: 1, Y: 1, Z: 1, W: 1}
	}
	if t.params.FlipY {
		v = 1 - v
	}
	return sampleImage(t.img, u, v, t.params)
}

// sampleCube picks the face along the major axis of dir.
func (t *texture) sampleCube(dir math3d.Vec3) math3d.Vec4 {
	if t == nil || !t.cube {
		return math3d.Vec4{X: 1, Y: 1, Z: 1, W: 1}
	}
	face, u, v := cubeFace(dir)
	img := t.faces[face]
	if img == nil {
		return math3d.Vec4{W: 1}
	}
	p := t.params
	p.WrapS, p.WrapT = material.WrapClamp, material.WrapClamp
	return sampleImage(img, u, v, p)
}

// cubeFace returns the face index (+X, -X, +Y, -Y, +Z, -Z) and the face
// coordinates of dir, with v growing downwards as in the face image.
func cubeFace(dir math3d.Vec3) (face int, u, v float64) {
	ax, ay, az := math.Abs(dir.X), math.Abs(dir.Y), math.Abs(dir.Z)
	var sc, tc, ma float64
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir.X > 0 {
			face, sc, tc = 0, -dir.Z, -dir.Y
		} else {
			face, sc, tc = 1, dir.Z, -dir.Y
		}
	case ay >= az:
		ma = ay
		if dir.Y > 0 {
			face, sc, tc = 2, dir.X, dir.Z
		} else {
			face, sc, tc = 3, dir.X, -dir.Z
		}
	default:
		ma = az
		if dir.Z > 0 {
			face, sc, tc = 4, dir.X, -dir.Y
		} else {
			face, sc, tc = 5, -dir.X, -dir.Y
		}
	}
	if ma == 0 {
		return 4, 0.5, 0.5
	}
	return face, (sc/ma + 1) / 2, (tc/ma + 1) / 2
}

// texel returns the i-th RGBA float texel.
func (t *texture) texel(i int) []float32 {
	if t == nil || i < 0 || (i+1)*4 > len(t.floats) {
		return nil
	}
	return t.floats[i*4 : i*4+4]
}

// sampleImage samples img at (u, v) with v=0 on the first image row.
// Magnification and minification share one filter; mipmapped minification
// falls back to bilinear.
func sampleImage(img *image.RGBA, u, v float64, p render.TextureParams) math3d.Vec4 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return math3d.Vec4{}
	}
	if p.MagFilter == material.FilterNearest {
		x := wrapTexel(int(math.Floor(wrapCoord(u, p.WrapS)*float64(w))), w, p.WrapS)
		y := wrapTexel(int(math.Floor(wrapCoord(v, p.WrapT)*float64(h))), h, p.WrapT)
		return pixel(img, x, y)
	}

	fx := u*float64(w) - 0.5
	fy := v*float64(h) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)
	x1 := wrapTexel(x0+1, w, p.WrapS)
	y1 := wrapTexel(y0+1, h, p.WrapT)
	x0 = wrapTexel(x0, w, p.WrapS)
	y0 = wrapTexel(y0, h, p.WrapT)

	top := pixel(img, x0, y0).Lerp(pixel(img, x1, y0), tx)
	bot := pixel(img, x0, y1).Lerp(pixel(img, x1, y1), tx)
	return top.Lerp(bot, ty)
}

// wrapCoord maps a coordinate into [0,1].
func wrapCoord(c float64, mode material.WrapMode) float64 {
	switch mode {
	case material.WrapClamp:
		return math.Max(0, math.Min(1, c))
	case material.WrapMirror:
		c = math.Mod(math.Abs(c), 2)
		if c > 1 {
			c = 2 - c
		}
		return c
	default:
		return c - math.Floor(c)
	}
}

// wrapTexel maps a texel index into [0,size).
func wrapTexel(x, size int, mode material.WrapMode) int {
	switch mode {
	case material.WrapClamp:
		return min(max(x, 0), size-1)
	case material.WrapMirror:
		period := 2 * size
		x %= period
		if x < 0 {
			x += period
		}
		if x >= size {
			x = period - 1 - x
		}
		return x
	default:
		x %= size
		if x < 0 {
			x += size
		}
		return x
	}
}

func pixel(img *image.RGBA, x, y int) math3d.Vec4 {
	i := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
	p := img.Pix[i : i+4 : i+4]
	return math3d.Vec4{
		X: float64(p[0]) / 255,
		Y: float64(p[1]) / 255,
		Z: float64(p[2]) / 255,
		W: float64(p[3]) / 255,
	}
}
