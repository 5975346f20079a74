// Package soft is a software implementation of render.Device. Draws are
// rasterized on the CPU into a Framebuffer that can be shown on a terminal
// or saved as an image.
package soft

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
)

// Framebuffer is a color buffer with a depth buffer of the same size. On
// a terminal every cell shows two vertically stacked pixels, so Height is
// twice the number of rows.
type Framebuffer struct {
	Width  int
	Height int
	Pixels []color.RGBA // row-major
	Depth  []float64    // row-major, 1 is the far plane
}

// NewFramebuffer creates a framebuffer cleared to transparent black and
// the far depth.
func NewFramebuffer(width, height int) *Framebuffer {
	fb := &Framebuffer{}
	fb.Resize(width, height)
	return fb
}

// Resize reallocates both buffers, discarding their contents.
func (fb *Framebuffer) Resize(width, height int) {
	fb.Width, fb.Height = max(width, 0), max(height, 0)
	fb.Pixels = make([]color.RGBA, fb.Width*fb.Height)
	fb.Depth = make([]float64, fb.Width*fb.Height)
	fb.ClearDepth(fb.Bounds())
}

// Bounds is the framebuffer rectangle.
func (fb *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.Width, fb.Height)
}

// Clear fills the part of r inside the framebuffer with c.
func (fb *Framebuffer) Clear(c color.RGBA, r image.Rectangle) {
	r = r.Intersect(fb.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := fb.Pixels[y*fb.Width+r.Min.X : y*fb.Width+r.Max.X]
		for i := range row {
			row[i] = c
		}
	}
}

// ClearDepth resets the depth of r to the far plane.
func (fb *Framebuffer) ClearDepth(r image.Rectangle) {
	r = r.Intersect(fb.Bounds())
	if r.Empty() {
		return
	}
	if r == fb.Bounds() {
		// copy-doubling beats a plain loop on large buffers
		fb.Depth[0] = 1
		for i := 1; i < len(fb.Depth); i *= 2 {
			copy(fb.Depth[i:], fb.Depth[:i])
		}
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := fb.Depth[y*fb.Width+r.Min.X : y*fb.Width+r.Max.X]
		for i := range row {
			row[i] = 1
		}
	}
}

// SetPixel sets the pixel at (x, y). Out of range writes are ignored.
func (fb *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// GetPixel returns the pixel at (x, y), transparent black when out of range.
func (fb *Framebuffer) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return color.RGBA{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// DepthAt returns the stored depth at (x, y), +Inf when out of range.
func (fb *Framebuffer) DepthAt(x, y int) float64 {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return math.Inf(1)
	}
	return fb.Depth[y*fb.Width+x]
}

// ToImage copies the color buffer into an image.
func (fb *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(fb.Bounds())
	for i, c := range fb.Pixels {
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img
}

// SavePNG writes the color buffer to path.
func (fb *Framebuffer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, fb.ToImage()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
