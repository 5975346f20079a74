// tableau - terminal viewer for glTF scenes, drawn by the software renderer.
//
// Controls:
//
//	Mouse drag  - Rotate model (yaw/pitch)
//	Scroll      - Zoom in/out
//	W/S         - Pitch up/down
//	A/D         - Yaw left/right
//	Q/E         - Roll left/right
//	Space       - Apply random impulse
//	R           - Reset rotation
//	T           - Toggle textures
//	X           - Toggle wireframe
//	L           - Light positioning mode (move mouse, click to set, Esc to cancel)
//	?           - Toggle HUD overlay
//	+/-         - Adjust zoom
//	Esc         - Quit (or cancel light mode)
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/tableau/pkg/config"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/models"
	"github.com/taigrr/tableau/pkg/render"
	"github.com/taigrr/tableau/pkg/render/soft"
	"github.com/taigrr/tableau/pkg/scene"
)

var (
	configPath = flag.String("config", "", "Renderer options file (.toml, .yaml)")
	targetFPS  = flag.Int("fps", 30, "Target FPS")
	bgColor    = flag.String("bg", "", "Background color as RRGGBB (overrides the config)")
	savePath   = flag.String("o", "", "Render one frame to this PNG instead of the terminal")
	logPath    = flag.String("log", "", "Write logs to this file while the viewer runs")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tableau - terminal glTF viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tableau [options] <model.gltf|model.glb>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  Mouse drag  - Rotate model\n")
		fmt.Fprintf(os.Stderr, "  Scroll      - Zoom in/out\n")
		fmt.Fprintf(os.Stderr, "  W/S/A/D     - Pitch and yaw\n")
		fmt.Fprintf(os.Stderr, "  Q/E         - Roll left/right\n")
		fmt.Fprintf(os.Stderr, "  Space       - Random spin\n")
		fmt.Fprintf(os.Stderr, "  R           - Reset view\n")
		fmt.Fprintf(os.Stderr, "  T           - Toggle textures\n")
		fmt.Fprintf(os.Stderr, "  X           - Toggle wireframe\n")
		fmt.Fprintf(os.Stderr, "  L           - Position light (mouse to aim, click to set)\n")
		fmt.Fprintf(os.Stderr, "  ?           - Toggle HUD overlay\n")
		fmt.Fprintf(os.Stderr, "  Esc         - Quit\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadOptions() (render.Options, error) {
	opts := render.DefaultOptions()
	if *configPath != "" {
		var err error
		if opts, err = config.Load(*configPath); err != nil {
			return opts, err
		}
	}
	if *bgColor != "" {
		c, err := strconv.ParseUint(strings.TrimPrefix(*bgColor, "#"), 16, 32)
		if err != nil || c > 0xffffff {
			return opts, fmt.Errorf("bad -bg %q: want RRGGBB", *bgColor)
		}
		opts.ClearColor = uint32(c)
	}
	return opts, nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// setupLogging routes renderer logs to w, or discards them when w is nil.
func setupLogging(w io.Writer, level string) {
	if w == nil {
		render.SetLogger(nil)
		return
	}
	render.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})))
}

// viewer is the scene shown by the CLI: the fitted model, its lights and
// the camera looking at it.
type viewer struct {
	scene  *scene.Scene
	camera *scene.Camera
	model  *scene.Group
	light  *scene.Light
	mats   *materialSet

	triangles int
}

func newViewer(modelPath string, opts render.Options) (*viewer, error) {
	ext := strings.ToLower(filepath.Ext(modelPath))
	if ext != ".glb" && ext != ".gltf" {
		return nil, fmt.Errorf("unsupported format: %s (use .gltf or .glb)", ext)
	}
	model, err := models.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	models.Fit(model, 2)
	_, vertices, triangles := models.Stats(model)
	render.Logger().Info("model loaded", "path", modelPath, "vertices", vertices, "triangles", triangles)

	sc := scene.NewScene()
	sc.Add(model)
	sc.Add(scene.NewAmbientLight(math3d.ColorHex(0xffffff), 0.3))
	light := scene.NewDirectionalLight(math3d.ColorHex(0xffffff), 0.9)
	light.CastShadow = opts.Shadows.Enabled
	sc.Add(light)

	cam := scene.NewPerspectiveCamera(math.Pi/3, float64(opts.Width)/float64(opts.Height), 0.1, 100)
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.LookAt(math3d.Zero3())

	return &viewer{
		scene:     sc,
		camera:    cam,
		model:     model,
		light:     light,
		mats:      collectMaterials(model),
		triangles: triangles,
	}, nil
}

func (v *viewer) setLight(dir math3d.Vec3) {
	v.light.SetPosition(dir.Scale(5))
}

func run(modelPath string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	if *savePath != "" {
		return renderToFile(modelPath, opts, *savePath)
	}
	return runTerminal(modelPath, opts)
}

// renderToFile draws a single frame at the configured size.
func renderToFile(modelPath string, opts render.Options, out string) error {
	setupLogging(os.Stderr, opts.LogLevel)
	v, err := newViewer(modelPath, opts)
	if err != nil {
		return err
	}
	v.setLight(NewViewState().LightDir)

	dev := soft.New(opts.Width, opts.Height)
	r := render.New(dev, opts)
	defer r.Dispose()
	if err := startShaders(context.Background(), r, opts); err != nil {
		return err
	}
	if err := r.Render(v.scene, v.camera, nil, false); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := dev.Framebuffer().SavePNG(out); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	render.Logger().Info("frame written", "path", out, "calls", r.Info().Render.Calls)
	return nil
}

// startShaders applies shader overrides and starts watching them when
// configured.
func startShaders(ctx context.Context, r *render.Renderer, opts render.Options) error {
	dir := opts.Shaders.Dir
	if dir == "" {
		return nil
	}
	if opts.Shaders.Watch {
		return r.WatchShaders(ctx, dir)
	}
	return r.LoadShaders(dir)
}

// termSize is the framebuffer size for a terminal: one column per pixel
// and two pixel rows per cell.
func termSize(width, height int) (int, int) {
	return max(width, 1), max(height*2, 1)
}

func runTerminal(modelPath string, opts render.Options) error {
	var logOut io.Writer
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	setupLogging(logOut, opts.LogLevel)

	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	opts.Width, opts.Height = termSize(width, height)

	v, err := newViewer(modelPath, opts)
	if err != nil {
		return err
	}
	dev := soft.New(opts.Width, opts.Height)
	r := render.New(dev, opts)
	defer r.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := startShaders(ctx, r, opts); err != nil {
		return err
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	fmt.Fprint(os.Stdout, "\x1b[?1003h") // any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // SGR extended mouse mode

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	orbit := NewOrbit(max(*targetFPS, 1))
	view := NewViewState()
	hud := NewHUD(filepath.Base(modelPath), v.triangles)

	inputTorque := struct{ pitch, yaw, roll float64 }{}
	const torqueStrength = 3.0
	var mouseDown bool
	var lastMouseX, lastMouseY int
	cameraZ := 5.0

	setZoom := func(z float64) {
		cameraZ = math.Max(1, math.Min(20, z))
		v.camera.SetPosition(math3d.V3(0, 0, cameraZ))
	}

	// handle applies one input event. It runs on the frame loop, so it
	// can touch the scene directly.
	handle := func(ev uv.Event) bool {
		switch ev := ev.(type) {
		case uv.WindowSizeEvent:
			width, height = ev.Width, ev.Height
			term.Erase()
			term.Resize(width, height)
			w, h := termSize(width, height)
			r.SetSize(w, h)
			v.camera.SetAspectRatio(float64(w) / float64(h))
			render.Logger().Debug("resized", "width", w, "height", h)

		case uv.KeyPressEvent:
			switch {
			case ev.MatchString("escape"):
				if !view.LightMode {
					return false
				}
				view.LightMode = false
			case ev.MatchString("ctrl+c"):
				return false
			case ev.MatchString("q"):
				inputTorque.roll = -torqueStrength
			case ev.MatchString("e"):
				inputTorque.roll = torqueStrength
			case ev.MatchString("w", "up"):
				inputTorque.pitch = -torqueStrength
			case ev.MatchString("s", "down"):
				inputTorque.pitch = torqueStrength
			case ev.MatchString("a", "left"):
				inputTorque.yaw = -torqueStrength
			case ev.MatchString("d", "right"):
				inputTorque.yaw = torqueStrength
			case ev.MatchString("r"):
				orbit.Reset()
				setZoom(5)
			case ev.MatchString("space"):
				orbit.ApplyImpulse((rand.Float64()-0.5)*1.5, (rand.Float64()-0.5)*1.5, (rand.Float64()-0.5)*1.5)
			case ev.MatchString("+", "="):
				setZoom(cameraZ - 0.5)
			case ev.MatchString("-", "_"):
				setZoom(cameraZ + 0.5)
			case ev.MatchString("t"):
				view.TextureEnabled = !view.TextureEnabled
				v.mats.apply(view)
			case ev.MatchString("x"):
				view.Wireframe = !view.Wireframe
				v.mats.apply(view)
			case ev.MatchString("l"):
				view.LightMode = true
				view.PendingLight = view.LightDir
			case ev.MatchString("?"), ev.MatchString("shift+/"):
				view.ShowHUD = !view.ShowHUD
			}

		case uv.KeyReleaseEvent:
			switch {
			case ev.MatchString("w", "up", "s", "down"):
				inputTorque.pitch = 0
			case ev.MatchString("a", "left", "d", "right"):
				inputTorque.yaw = 0
			case ev.MatchString("q", "e"):
				inputTorque.roll = 0
			}

		case uv.MouseClickEvent:
			if view.LightMode {
				view.LightDir = view.PendingLight
				view.LightMode = false
			} else {
				mouseDown = true
				lastMouseX, lastMouseY = ev.X, ev.Y
			}

		case uv.MouseReleaseEvent:
			mouseDown = false

		case uv.MouseMotionEvent:
			if view.LightMode {
				view.PendingLight = view.ScreenToLightDir(ev.X, ev.Y, width, height)
			} else if mouseDown {
				orbit.ApplyImpulse(float64(ev.Y-lastMouseY)*0.03, float64(ev.X-lastMouseX)*0.03, 0)
				lastMouseX, lastMouseY = ev.X, ev.Y
			}

		case uv.MouseWheelEvent:
			switch ev.Button {
			case uv.MouseWheelUp:
				setZoom(cameraZ - 0.5)
			case uv.MouseWheelDown:
				setZoom(cameraZ + 0.5)
			}
		}
		return true
	}

	ticker := time.NewTicker(time.Second / time.Duration(max(*targetFPS, 1)))
	defer ticker.Stop()
	lastFrame := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigChan:
			return nil
		case ev := <-term.Events():
			if !handle(ev) {
				return nil
			}
			continue
		case <-ticker.C:
		}

		now := time.Now()
		dt := math.Min(now.Sub(lastFrame).Seconds(), 0.1)
		lastFrame = now

		// key release events are unreliable, so held torque fades out
		orbit.ApplyImpulse(inputTorque.pitch*dt, inputTorque.yaw*dt, inputTorque.roll*dt)
		inputTorque.pitch *= 0.9
		inputTorque.yaw *= 0.9
		inputTorque.roll *= 0.9
		orbit.Update()
		orbit.Apply(v.model)

		if view.LightMode {
			v.setLight(view.PendingLight)
		} else {
			v.setLight(view.LightDir)
		}

		if err := r.Render(v.scene, v.camera, nil, false); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		dev.Framebuffer().Draw(term, uv.Rect(0, 0, width, height))
		if err := term.Display(); err != nil {
			return fmt.Errorf("display: %w", err)
		}

		hud.UpdateFPS()
		hud.Render(width, height, view, r.Info())
	}
}
