package main

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/render"
	"github.com/taigrr/tableau/pkg/scene"
)

// RotationAxis is one rotation angle whose velocity springs back to rest.
type RotationAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64
}

// NewRotationAxis creates an axis decaying at a critically damped rate.
func NewRotationAxis(fps int) RotationAxis {
	return RotationAxis{
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Update advances the angle by one frame.
func (a *RotationAxis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// Orbit spins the model node with spring-damped pitch, yaw and roll.
type Orbit struct {
	Pitch, Yaw, Roll RotationAxis
	fps              int
}

func NewOrbit(fps int) *Orbit {
	o := &Orbit{fps: fps}
	o.Reset()
	return o
}

func (o *Orbit) Update() {
	o.Pitch.Update()
	o.Yaw.Update()
	o.Roll.Update()
}

func (o *Orbit) ApplyImpulse(pitch, yaw, roll float64) {
	o.Pitch.Velocity += pitch
	o.Yaw.Velocity += yaw
	o.Roll.Velocity += roll
}

func (o *Orbit) Reset() {
	o.Pitch = NewRotationAxis(o.fps)
	o.Yaw = NewRotationAxis(o.fps)
	o.Roll = NewRotationAxis(o.fps)
}

// Apply sets the node's rotation from the current angles.
func (o *Orbit) Apply(n *scene.Group) {
	n.SetRotationEuler(o.Pitch.Position, o.Yaw.Position, o.Roll.Position)
}

// ViewState holds the toggles driven by the keyboard.
type ViewState struct {
	TextureEnabled bool
	Wireframe      bool
	LightMode      bool
	LightDir       math3d.Vec3
	PendingLight   math3d.Vec3
	ShowHUD        bool
}

func NewViewState() *ViewState {
	return &ViewState{
		TextureEnabled: true,
		LightDir:       math3d.V3(0.5, 1, 0.3).Normalize(),
	}
}

// ScreenToLightDir maps a terminal cell onto the hemisphere facing the
// viewer.
func (v *ViewState) ScreenToLightDir(x, y, width, height int) math3d.Vec3 {
	nx := (float64(x)/float64(width))*2 - 1
	ny := (float64(y)/float64(height))*2 - 1

	lenSq := nx*nx + ny*ny
	if lenSq > 1 {
		l := math.Sqrt(lenSq)
		nx /= l
		ny /= l
		lenSq = 1
	}
	return math3d.V3(nx, -ny, math.Sqrt(1-lenSq)).Normalize()
}

// materialSet remembers the original maps of every material in a model so
// texturing can be switched off and back on.
type materialSet struct {
	maps map[*material.Material]*material.Texture
}

func collectMaterials(root scene.Node) *materialSet {
	s := &materialSet{maps: map[*material.Material]*material.Texture{}}
	var walk func(n scene.Node)
	walk = func(n scene.Node) {
		for _, m := range n.Obj().Materials {
			if m != nil {
				s.maps[m] = m.Map
			}
		}
		for _, c := range n.Obj().Children() {
			walk(c)
		}
	}
	walk(root)
	return s
}

// apply pushes the view toggles into the materials. Changed materials are
// flagged so their programs are rebuilt.
func (s *materialSet) apply(v *ViewState) {
	for m, tex := range s.maps {
		want := tex
		if !v.TextureEnabled {
			want = nil
		}
		if m.Map != want || m.Wireframe != v.Wireframe {
			m.Map = want
			m.Wireframe = v.Wireframe
			m.NeedsUpdate = true
		}
	}
}

// HUD draws the status lines over the frame with raw ANSI sequences.
type HUD struct {
	filename  string
	triangles int
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

func NewHUD(filename string, triangles int) *HUD {
	return &HUD{filename: filename, triangles: triangles, fpsTime: time.Now()}
}

// UpdateFPS counts a frame.
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	if elapsed := time.Since(h.fpsTime); elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// Render prints the overlay. The first and last rows are always cleared
// so hiding the HUD takes effect at once.
func (h *HUD) Render(width, height int, view *ViewState, info render.Info) {
	const (
		reset     = "\x1b[0m"
		bold      = "\x1b[1m"
		dim       = "\x1b[2m"
		bgBlack   = "\x1b[40m"
		fgWhite   = "\x1b[97m"
		fgGreen   = "\x1b[92m"
		fgYellow  = "\x1b[93m"
		fgCyan    = "\x1b[96m"
		clearLine = "\x1b[2K"
	)
	moveTo := func(row, col int) string { return fmt.Sprintf("\x1b[%d;%dH", row, col) }

	fmt.Print(moveTo(1, 1) + clearLine)
	fmt.Print(moveTo(height, 1) + clearLine)

	if view.LightMode {
		msg := fmt.Sprintf("%s%s%s ◉ LIGHT MODE - move the mouse to aim, click to set, Esc to cancel %s", bgBlack, bold, fgYellow, reset)
		fmt.Print(moveTo(height, max((width-64)/2, 1)) + msg)
		return
	}
	if !view.ShowHUD {
		return
	}

	fmt.Printf("%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, h.fps, reset)
	fmt.Print(moveTo(1, max((width-len(h.filename)-2)/2, 1)) +
		fmt.Sprintf("%s%s%s %s %s", bold, bgBlack, fgWhite, h.filename, reset))
	stats := fmt.Sprintf("%d tris %d calls", h.triangles, info.Render.Calls)
	fmt.Print(moveTo(1, max(width-len(stats)-1, 1)) +
		fmt.Sprintf("%s%s%s %s %s", bgBlack, fgCyan, bold, stats, reset))

	check := func(on bool) string {
		if on {
			return "[✓]"
		}
		return "[ ]"
	}
	fmt.Print(moveTo(height, 1) + fmt.Sprintf("%s%s %s Texture  %s Wireframe %s",
		bgBlack, fgWhite, check(view.TextureEnabled && !view.Wireframe), check(view.Wireframe), reset))
	fmt.Print(moveTo(height, max(width-18, 1)) + fmt.Sprintf("%s%s%s L: position light %s", bgBlack, dim, fgYellow, reset))
}
