package material

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"sync/atomic"

	"github.com/taigrr/tableau/pkg/math3d"
)

// WrapMode determines how texture coordinates outside [0,1] are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota // Tile the texture
	WrapClamp                  // Clamp to edge
	WrapMirror                 // Tile, mirroring every other repeat
)

// FilterMode determines how texture sampling is performed.
type FilterMode int

const (
	FilterNearest  FilterMode = iota // Nearest-neighbor (pixelated)
	FilterBilinear                   // Bilinear interpolation (smooth)
	FilterMipmap                     // Bilinear with mipmaps (minification only)
)

// Mapping says how an environment texture is projected.
type Mapping int

const (
	UVMapping Mapping = iota
	CubeReflectionMapping
	CubeRefractionMapping
	EquirectangularReflectionMapping
	EquirectangularRefractionMapping
)

var nextTextureID atomic.Uint64

// Texture is image data plus the sampling state used to bind it. Cube
// textures carry six faces (+X, -X, +Y, -Y, +Z, -Z) instead of Image.
type Texture struct {
	Name  string
	Image *image.RGBA
	Faces [6]*image.RGBA
	Cube  bool

	WrapS, WrapT WrapMode
	MagFilter    FilterMode
	MinFilter    FilterMode
	Mapping      Mapping

	GenerateMipmaps bool
	FlipY           bool

	// UV transform applied through the uvTransform uniform.
	Offset   math3d.Vec2
	Repeat   math3d.Vec2
	Center   math3d.Vec2
	Rotation float64

	// Version is bumped by NeedsUpdate; a newer version triggers a re-upload.
	Version int

	id        uint64
	onDispose []func(*Texture)
	disposed  bool
}

// NewTexture creates an empty texture with the given dimensions.
func NewTexture(width, height int) *Texture {
	return newTexture(image.NewRGBA(image.Rect(0, 0, width, height)))
}

func newTexture(img *image.RGBA) *Texture {
	return &Texture{
		id:              nextTextureID.Add(1),
		Image:           img,
		WrapS:           WrapRepeat,
		WrapT:           WrapRepeat,
		MagFilter:       FilterBilinear,
		MinFilter:       FilterMipmap,
		GenerateMipmaps: true,
		FlipY:           true,
		Repeat:          math3d.V2(1, 1),
		Version:         1,
	}
}

// NewCubeTexture creates a cube texture from six faces.
func NewCubeTexture(faces [6]image.Image) *Texture {
	t := newTexture(nil)
	t.Cube = true
	t.FlipY = false
	t.Mapping = CubeReflectionMapping
	for i, f := range faces {
		if f != nil {
			t.Faces[i] = toRGBA(f)
		}
	}
	return t
}

// LoadTexture loads a texture from an image file.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	tex := TextureFromImage(img)
	tex.Name = path
	return tex, nil
}

// TextureFromImage creates a texture from an image.Image.
func TextureFromImage(img image.Image) *Texture {
	return newTexture(toRGBA(img))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// NewCheckerTexture creates a procedural checkerboard texture.
func NewCheckerTexture(width, height, checkSize int, c1, c2 color.RGBA) *Texture {
	tex := NewTexture(width, height)
	for y := range height {
		for x := range width {
			cx := x / checkSize
			cy := y / checkSize
			if (cx+cy)%2 == 0 {
				tex.Image.SetRGBA(x, y, c1)
			} else {
				tex.Image.SetRGBA(x, y, c2)
			}
		}
	}
	return tex
}

// ID returns the unique texture id.
func (t *Texture) ID() uint64 { return t.id }

// Width returns the image width (the first face for cube textures).
func (t *Texture) Width() int {
	if img := t.first(); img != nil {
		return img.Rect.Dx()
	}
	return 0
}

// Height returns the image height (the first face for cube textures).
func (t *Texture) Height() int {
	if img := t.first(); img != nil {
		return img.Rect.Dy()
	}
	return 0
}

func (t *Texture) first() *image.RGBA {
	if t.Cube {
		return t.Faces[0]
	}
	return t.Image
}

// PowerOfTwo reports whether both dimensions are powers of two.
func (t *Texture) PowerOfTwo() bool {
	return math3d.IsPowerOfTwo(t.Width()) && math3d.IsPowerOfTwo(t.Height())
}

// Matrix returns the uv transform for the texture's offset, repeat,
// rotation and center.
func (t *Texture) Matrix() math3d.Mat3 {
	return math3d.UVTransform(t.Offset, t.Repeat, t.Rotation, t.Center)
}

// NeedsUpdate flags the image or sampling state as changed.
func (t *Texture) NeedsUpdate() {
	t.Version++
}

// OnDispose registers fn to run when the texture is disposed.
func (t *Texture) OnDispose(fn func(*Texture)) {
	t.onDispose = append(t.onDispose, fn)
}

// Dispose notifies observers that GPU copies can be released.
func (t *Texture) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	for _, fn := range t.onDispose {
		fn(t)
	}
	t.onDispose = nil
}

// RenderTarget is an offscreen color buffer with optional depth.
type RenderTarget struct {
	Width, Height int
	Texture       *Texture
	DepthBuffer   bool
	StencilBuffer bool

	Viewport    image.Rectangle
	Scissor     image.Rectangle
	ScissorTest bool

	id        uint64
	onDispose []func(*RenderTarget)
	disposed  bool
}

// NewRenderTarget creates a render target whose texture is sized to match.
func NewRenderTarget(width, height int) *RenderTarget {
	tex := NewTexture(width, height)
	tex.FlipY = false
	tex.GenerateMipmaps = false
	tex.MinFilter = FilterBilinear
	return &RenderTarget{
		id:          nextTextureID.Add(1),
		Width:       width,
		Height:      height,
		Texture:     tex,
		DepthBuffer: true,
		Viewport:    image.Rect(0, 0, width, height),
		Scissor:     image.Rect(0, 0, width, height),
	}
}

// ID returns the unique render target id.
func (rt *RenderTarget) ID() uint64 { return rt.id }

// SetSize resizes the target and its texture. The GPU copy is rebuilt on
// next use.
func (rt *RenderTarget) SetSize(width, height int) {
	if rt.Width == width && rt.Height == height {
		return
	}
	rt.Width, rt.Height = width, height
	rt.Texture.Image = image.NewRGBA(image.Rect(0, 0, width, height))
	rt.Texture.NeedsUpdate()
	rt.Viewport = image.Rect(0, 0, width, height)
	rt.Scissor = image.Rect(0, 0, width, height)
	rt.disposeGPU()
}

// OnDispose registers fn to run when the target is disposed.
func (rt *RenderTarget) OnDispose(fn func(*RenderTarget)) {
	rt.onDispose = append(rt.onDispose, fn)
}

func (rt *RenderTarget) disposeGPU() {
	for _, fn := range rt.onDispose {
		fn(rt)
	}
	rt.onDispose = nil
}

// Dispose notifies observers that GPU copies can be released.
func (rt *RenderTarget) Dispose() {
	if rt.disposed {
		return
	}
	rt.disposed = true
	rt.disposeGPU()
	rt.Texture.Dispose()
}
