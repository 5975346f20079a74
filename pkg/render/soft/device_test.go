package soft

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/render"
	"github.com/taigrr/tableau/pkg/scene"
)

const frameSize = 16

func newRenderer(d *Device) *render.Renderer {
	opts := render.DefaultOptions()
	opts.Width, opts.Height = frameSize, frameSize
	return render.New(d, opts)
}

func newCamera() *scene.Camera {
	cam := scene.NewPerspectiveCamera(math.Pi/3, 1, 0.1, 100)
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.LookAt(math3d.Zero3())
	return cam
}

func renderScene(t *testing.T, sc *scene.Scene) *Device {
	t.Helper()
	d := New(frameSize, frameSize)
	r := newRenderer(d)
	if err := r.Render(sc, newCamera(), nil, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return d
}

func centre(d *Device) color.RGBA {
	return d.Framebuffer().GetPixel(frameSize/2, frameSize/2)
}

func TestRenderBasicMesh(t *testing.T) {
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xff0000))))
	d := renderScene(t, sc)

	if got := centre(d); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("centre = %v, want red", got)
	}
	if got := d.Framebuffer().GetPixel(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("corner = %v, want the opaque black clear color", got)
	}
	if d.Stats.DrawCalls != 1 {
		t.Errorf("draw calls = %d, want 1", d.Stats.DrawCalls)
	}
	if d.Stats.TrianglesCulled == 0 {
		t.Error("expected the box's back faces to be culled")
	}
}

func TestRenderBackgroundColor(t *testing.T) {
	sc := scene.NewScene()
	sc.Background = &scene.Background{Color: math3d.ColorHex(0x0000ff)}
	d := renderScene(t, sc)

	if got := d.Framebuffer().GetPixel(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("corner = %v, want blue", got)
	}
}

func TestRenderDepthOrder(t *testing.T) {
	sc := scene.NewScene()
	near := scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0x00ff00)))
	near.SetPosition(math3d.V3(0, 0, 1))
	far := scene.NewMesh(geom.NewBox(2, 2, 1), material.NewBasic(math3d.ColorHex(0xff0000)))
	far.SetPosition(math3d.V3(0, 0, -1))
	// far is added last so the depth buffer, not insertion order, decides
	sc.Add(near, far)
	d := renderScene(t, sc)

	if got := centre(d); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("centre = %v, want the nearer green box", got)
	}
}

func TestRenderLambertLighting(t *testing.T) {
	tests := []struct {
		name string
		pos  math3d.Vec3
		lit  bool
	}{
		{"facing the light", math3d.V3(0, 0, 5), true},
		{"lit from behind", math3d.V3(0, 0, -5), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc := scene.NewScene()
			sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewLambert(math3d.ColorHex(0xff0000))))
			light := scene.NewDirectionalLight(math3d.ColorHex(0xffffff), 1)
			light.SetPosition(tc.pos)
			sc.Add(light)
			d := renderScene(t, sc)

			got := centre(d)
			if got.G != 0 || got.B != 0 {
				t.Errorf("centre = %v, want only red", got)
			}
			if lit := got.R > 0; lit != tc.lit {
				t.Errorf("centre = %v, lit = %v, want %v", got, lit, tc.lit)
			}
		})
	}
}

func TestRenderTransparentBlends(t *testing.T) {
	sc := scene.NewScene()
	m := material.NewBasic(math3d.ColorHex(0xffffff))
	m.Transparent = true
	m.Opacity = 0.5
	sc.Add(scene.NewMesh(geom.NewPlane(2, 2), m))
	d := renderScene(t, sc)

	got := centre(d)
	if got.R < 120 || got.R > 135 || got.R != got.G || got.G != got.B {
		t.Errorf("centre = %v, want mid grey", got)
	}
}

func TestRenderAlphaTestDiscards(t *testing.T) {
	tests := []struct {
		name      string
		alphaTest float32
		drawn     bool
	}{
		{"below the cutoff", 0.5, false},
		{"above the cutoff", 0.2, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc := scene.NewScene()
			m := material.NewBasic(math3d.ColorHex(0xffffff))
			m.Transparent = true
			m.Opacity = 0.3
			m.AlphaTest = tc.alphaTest
			sc.Add(scene.NewMesh(geom.NewPlane(2, 2), m))
			d := renderScene(t, sc)

			if drawn := centre(d).R > 0; drawn != tc.drawn {
				t.Errorf("centre = %v, drawn = %v, want %v", centre(d), drawn, tc.drawn)
			}
		})
	}
}

func TestRenderTargetResolvesIntoTexture(t *testing.T) {
	d := New(4, 4)
	tex := d.CreateTexture()
	fb := d.CreateFramebuffer(tex, 2, 2, true)

	d.BindFramebuffer(fb)
	d.ClearColor(math3d.ColorRGB(0, 1, 0), 1)
	d.Clear(render.ClearColorBit | render.ClearDepthBit)
	d.BindFramebuffer(0)

	rt := d.textures[tex]
	if rt.img == nil {
		t.Fatal("texture was not resolved")
	}
	if got := rt.img.RGBAAt(1, 1); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("texel = %v, want green", got)
	}
	if !rt.params.FlipY {
		t.Error("resolved textures sample with v flipped")
	}
	if got := d.Framebuffer().GetPixel(0, 0); got != (color.RGBA{}) {
		t.Errorf("default framebuffer pixel = %v, want untouched", got)
	}
}

func TestContextLoss(t *testing.T) {
	d := New(4, 4)
	d.Lose()
	if !d.IsContextLost() {
		t.Fatal("IsContextLost = false after Lose")
	}
	if _, err := d.CreateProgram(render.ProgramSource{Name: "basic"}); !errors.Is(err, ErrContextLost) {
		t.Errorf("CreateProgram error = %v, want ErrContextLost", err)
	}

	r := newRenderer(d)
	sc := scene.NewScene()
	sc.Add(scene.NewMesh(geom.NewBox(1, 1, 1), material.NewBasic(math3d.ColorHex(0xff0000))))
	if err := r.Render(sc, newCamera(), nil, false); err != nil {
		t.Errorf("Render on a lost context = %v, want nil", err)
	}
	if d.Stats.DrawCalls != 0 {
		t.Errorf("draw calls = %d on a lost context", d.Stats.DrawCalls)
	}

	d.Restore()
	if _, err := d.CreateProgram(render.ProgramSource{Name: "basic"}); err != nil {
		t.Errorf("CreateProgram after Restore: %v", err)
	}
}

func TestSampleImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})
	nearest := render.TextureParams{MagFilter: material.FilterNearest}

	tests := []struct {
		name string
		tex  *texture
		u, v float64
		want math3d.Vec4
	}{
		{"top left", &texture{img: img, params: nearest}, 0.25, 0.25, math3d.V4(1, 0, 0, 1)},
		{"bottom right", &texture{img: img, params: nearest}, 0.75, 0.75, math3d.V4(1, 1, 1, 1)},
		{"repeat wraps", &texture{img: img, params: nearest}, 1.75, 0.25, math3d.V4(0, 1, 0, 1)},
		{"flipped", &texture{img: img, params: render.TextureParams{MagFilter: material.FilterNearest, FlipY: true}}, 0.25, 0.25, math3d.V4(0, 0, 1, 1)},
		{"missing texture", nil, 0.5, 0.5, math3d.V4(1, 1, 1, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.tex.sample2D(tc.u, tc.v)
			if got.Sub(tc.want).Len() > 1e-9 {
				t.Errorf("sample2D(%v, %v) = %v, want %v", tc.u, tc.v, got, tc.want)
			}
		})
	}
}

func TestCubeFace(t *testing.T) {
	tests := []struct {
		dir  math3d.Vec3
		face int
	}{
		{math3d.V3(1, 0.2, 0.1), 0},
		{math3d.V3(-1, 0, 0), 1},
		{math3d.V3(0, 2, 1), 2},
		{math3d.V3(0, -1, 0), 3},
		{math3d.V3(0.3, 0, 1), 4},
		{math3d.V3(0, 0, -1), 5},
	}
	for _, tc := range tests {
		face, u, v := cubeFace(tc.dir)
		if face != tc.face {
			t.Errorf("cubeFace(%v) face = %d, want %d", tc.dir, face, tc.face)
		}
		if u < 0 || u > 1 || v < 0 || v > 1 {
			t.Errorf("cubeFace(%v) = (%v, %v), want coordinates in [0,1]", tc.dir, u, v)
		}
	}
}

func TestPackDepthRoundTrips(t *testing.T) {
	for _, z := range []float64{0, 0.25, 0.5, 0.999} {
		p := packDepth(z)
		got := p.Dot(math3d.V4(1.0/(256*256*256), 1.0/(256*256), 1.0/256, 1)) * 255 / 256
		if math.Abs(got-z) > 1e-6 {
			t.Errorf("unpack(packDepth(%v)) = %v", z, got)
		}
	}
}
