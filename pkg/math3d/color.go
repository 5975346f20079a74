package math3d

import (
	"image/color"

	"github.com/chewxy/math32"
)

// Color is a linear RGB color with float32 channels, the layout shader
// uniforms expect.
type Color struct {
	R, G, B float32
}

// ColorHex creates a color from a 0xRRGGBB value.
func ColorHex(hex uint32) Color {
	return Color{
		R: float32(hex>>16&0xff) / 255,
		G: float32(hex>>8&0xff) / 255,
		B: float32(hex&0xff) / 255,
	}
}

// ColorRGB creates a color from channel values in 0-1.
func ColorRGB(r, g, b float32) Color {
	return Color{r, g, b}
}

// Scale multiplies every channel by s.
func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Add returns the channel-wise sum.
func (c Color) Add(o Color) Color {
	return Color{c.R + o.R, c.G + o.G, c.B + o.B}
}

// Mul returns the channel-wise product.
func (c Color) Mul(o Color) Color {
	return Color{c.R * o.R, c.G * o.G, c.B * o.B}
}

// RGBA converts to an 8-bit color with the given alpha (0-1).
func (c Color) RGBA(alpha float32) color.RGBA {
	return color.RGBA{
		R: to8(c.R),
		G: to8(c.G),
		B: to8(c.B),
		A: to8(alpha),
	}
}

func to8(v float32) uint8 {
	return uint8(math32.Round(math32.Max(0, math32.Min(1, v)) * 255))
}
