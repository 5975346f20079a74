// Package render draws a scene graph through a Device. A Renderer turns
// the graph into sorted render lists every frame, resolves each material
// to a shared program and forwards only the state changes the device does
// not already have.
package render

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
	"github.com/taigrr/tableau/pkg/shaderlib"
)

// FrameHook observes a frame before or after it is rendered.
type FrameHook func(sc *scene.Scene, cam *scene.Camera)

// Renderer draws scenes. It is not safe for concurrent use.
type Renderer struct {
	// Clearing at the start of each frame.
	AutoClear        bool
	AutoClearColor   bool
	AutoClearDepth   bool
	AutoClearStencil bool

	// SortObjects sorts render lists before drawing.
	SortObjects bool

	// ClippingPlanes are global world-space planes applied to every
	// material. LocalClippingEnabled honours per-material planes.
	ClippingPlanes       []math3d.Plane
	LocalClippingEnabled bool

	GammaFactor             float32
	GammaOutput             bool
	PhysicallyCorrectLights bool

	ToneMapping           ToneMapping
	ToneMappingExposure   float32
	ToneMappingWhitePoint float32

	MaxMorphTargets int
	MaxMorphNormals int

	ShadowMap *ShadowMap

	dev        Device
	caps       Capabilities
	state      *State
	info       Info
	props      *properties
	attrs      *attributes
	geometries *geometries
	objects    *objects
	textures   *textures
	programs   *programCache
	uploader   *uniformUploader
	morphs     *morphTargets
	lights     *lights
	clipping   *clipping
	lists      *renderLists
	bg         *backgroundRenderer
	sprites    *spriteRenderer
	flares     *flareRenderer
	immediate  *immediateBuffers
	lib        *shaderlib.Library

	premultipliedAlpha bool
	width, height      int
	pixelRatio         float64
	viewport           image.Rectangle
	scissor            image.Rectangle
	scissorTest        bool
	clearColor         math3d.Color
	clearAlpha         float32

	renderTarget       *material.RenderTarget
	currentViewport    image.Rectangle
	currentScissor     image.Rectangle
	currentScissorTest bool

	// Per-frame state.
	frustum                Frustum
	projScreen             math3d.Mat4
	clippingEnabled        bool
	localClippingEnabled   bool
	currentGeometryProgram string
	currentMaterialID      uint64
	currentCamera          *scene.Camera
	lightList              []*scene.Light
	shadows                []*scene.Light
	spriteList             []*scene.Sprite
	flareList              []*scene.LensFlare
	list                   *RenderList

	rebuilds         int
	warnedInstancing bool
	before, after    []FrameHook
}

// New creates a renderer drawing through dev.
func New(dev Device, opts Options) *Renderer {
	r := &Renderer{
		AutoClear:               opts.AutoClear,
		AutoClearColor:          opts.AutoClearColor,
		AutoClearDepth:          opts.AutoClearDepth,
		AutoClearStencil:        opts.AutoClearStencil,
		SortObjects:             opts.SortObjects,
		LocalClippingEnabled:    opts.LocalClippingEnabled,
		GammaFactor:             opts.GammaFactor,
		GammaOutput:             opts.GammaOutput,
		PhysicallyCorrectLights: opts.PhysicallyCorrectLights,
		ToneMapping:             opts.ToneMapping,
		ToneMappingExposure:     opts.ToneMappingExposure,
		ToneMappingWhitePoint:   opts.ToneMappingWhitePoint,
		MaxMorphTargets:         opts.MaxMorphTargets,
		MaxMorphNormals:         opts.MaxMorphNormals,

		dev:                dev,
		premultipliedAlpha: opts.PremultipliedAlpha,
		pixelRatio:         opts.PixelRatio,
		clearColor:         math3d.ColorHex(opts.ClearColor),
		clearAlpha:         opts.ClearAlpha,
		lib:                shaderlib.New(),
	}
	r.lib.SetLogger(Logger())
	if r.pixelRatio <= 0 {
		r.pixelRatio = 1
	}
	if !opts.Alpha {
		r.clearAlpha = 1
	}

	r.caps = newCapabilities(dev, opts)
	r.state = newState(dev, r.caps.MaxAttributes)
	r.props = newProperties()
	r.attrs = newAttributes(dev)
	r.geometries = newGeometries(r.attrs, &r.info)
	r.objects = newObjects(r.geometries, &r.info)
	r.textures = newTextures(dev, &r.caps, r.props, &r.info, r.state)
	r.programs = newProgramCache(dev, &r.info)
	r.uploader = newUniformUploader(dev, r.textures)
	r.morphs = newMorphTargets()
	r.lights = newLights()
	r.clipping = newClipping()
	r.lists = newRenderLists()
	r.bg = newBackgroundRenderer(r)
	r.sprites = newSpriteRenderer(r)
	r.flares = newFlareRenderer(r)
	r.immediate = newImmediateBuffers(dev)
	r.ShadowMap = newShadowMap(r)
	r.ShadowMap.Enabled = opts.Shadows.Enabled
	r.ShadowMap.Type = opts.Shadows.Type

	if opts.Shaders.Validate {
		r.programs.compiler = NagaCompiler{}
	}

	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	r.SetSize(w, h)
	r.state.SetClearColor(r.clearColor, r.clearAlpha)
	return r
}

// Capabilities returns what the device reported at creation.
func (r *Renderer) Capabilities() Capabilities { return r.caps }

// State returns the state tracker.
func (r *Renderer) State() *State { return r.state }

// Info returns frame and memory statistics.
func (r *Renderer) Info() Info { return r.info }

// ShaderLibrary returns the library built-in programs are generated from.
func (r *Renderer) ShaderLibrary() *shaderlib.Library { return r.lib }

// SetShaderLibrary replaces the shader library. Programs are rebuilt on
// next use.
func (r *Renderer) SetShaderLibrary(lib *shaderlib.Library) {
	r.lib = lib
	for _, mp := range r.props.materials {
		mp.shaderVersion = math.MaxUint64
	}
}

// SetCompiler installs a validator run before programs are linked. nil
// disables validation.
func (r *Renderer) SetCompiler(c Compiler) {
	r.programs.compiler = c
}

// LoadShaders overrides built-in sources from dir.
func (r *Renderer) LoadShaders(dir string) error {
	return r.lib.Load(dir)
}

// WatchShaders reloads sources from dir whenever they change, until ctx is
// done. Reloads are applied at the start of the next frame.
func (r *Renderer) WatchShaders(ctx context.Context, dir string) error {
	if err := r.lib.Load(dir); err != nil {
		return err
	}
	return r.lib.Watch(ctx, dir)
}

// OnBeforeRender registers a hook run at the start of every frame.
func (r *Renderer) OnBeforeRender(fn FrameHook) { r.before = append(r.before, fn) }

// OnAfterRender registers a hook run once a frame is finished.
func (r *Renderer) OnAfterRender(fn FrameHook) { r.after = append(r.after, fn) }

// Size returns the drawing buffer size in pixels.
func (r *Renderer) Size() (width, height int) { return r.width, r.height }

// PixelRatio returns the device pixel ratio.
func (r *Renderer) PixelRatio() float64 { return r.pixelRatio }

// SetSize resizes the drawing buffer and resets the viewport to cover it.
func (r *Renderer) SetSize(width, height int) {
	r.width, r.height = width, height
	r.dev.SetSize(r.scaled(width), r.scaled(height))
	r.SetViewport(image.Rect(0, 0, width, height))
	r.SetScissor(image.Rect(0, 0, width, height))
}

// SetPixelRatio changes the ratio between logical and device pixels.
func (r *Renderer) SetPixelRatio(ratio float64) {
	if ratio <= 0 {
		return
	}
	r.pixelRatio = ratio
	r.SetSize(r.width, r.height)
}

func (r *Renderer) scaled(v int) int {
	return int(math.Floor(float64(v) * r.pixelRatio))
}

func (r *Renderer) scaledRect(rc image.Rectangle) image.Rectangle {
	return image.Rect(r.scaled(rc.Min.X), r.scaled(rc.Min.Y), r.scaled(rc.Max.X), r.scaled(rc.Max.Y))
}

// SetViewport sets the viewport of the default framebuffer.
func (r *Renderer) SetViewport(rc image.Rectangle) {
	r.viewport = rc
	if r.renderTarget == nil {
		r.currentViewport = r.scaledRect(rc)
		r.state.SetViewport(r.currentViewport)
	}
}

// SetScissor sets the scissor rectangle of the default framebuffer.
func (r *Renderer) SetScissor(rc image.Rectangle) {
	r.scissor = rc
	if r.renderTarget == nil {
		r.currentScissor = r.scaledRect(rc)
		r.state.SetScissor(r.currentScissor)
	}
}

// SetScissorTest enables the scissor test for the default framebuffer.
func (r *Renderer) SetScissorTest(on bool) {
	r.scissorTest = on
	if r.renderTarget == nil {
		r.currentScissorTest = on
		r.state.SetScissorTest(on)
	}
}

// SetClearColor sets the color the default framebuffer clears to.
func (r *Renderer) SetClearColor(c math3d.Color, alpha float32) {
	r.clearColor = c
	r.clearAlpha = alpha
	r.setClear(c, alpha)
}

// ClearColor returns the clear color and alpha.
func (r *Renderer) ClearColor() (math3d.Color, float32) { return r.clearColor, r.clearAlpha }

func (r *Renderer) setClear(c math3d.Color, alpha float32) {
	if r.premultipliedAlpha {
		c = c.Scale(alpha)
	}
	r.state.SetClearColor(c, alpha)
}

// Clear clears the selected buffers of the bound framebuffer.
func (r *Renderer) Clear(color, depth, stencil bool) {
	var mask ClearMask
	if color {
		mask |= ClearColorBit
	}
	if depth {
		mask |= ClearDepthBit
		// a masked depth buffer would not clear
		r.state.SetDepthMask(true)
	}
	if stencil {
		mask |= ClearStencilBit
		r.state.SetStencilMask(0xffffffff)
	}
	if mask != 0 {
		r.dev.Clear(mask)
	}
}

// RenderTarget returns the bound render target, nil for the default one.
func (r *Renderer) RenderTarget() *material.RenderTarget { return r.renderTarget }

// SetRenderTarget binds rt, or the default framebuffer when rt is nil, and
// applies its viewport and scissor.
func (r *Renderer) SetRenderTarget(rt *material.RenderTarget) {
	r.renderTarget = rt
	var fb Handle
	if rt != nil {
		fb = r.textures.setupRenderTarget(rt).framebuffer
		r.currentViewport = rt.Viewport
		r.currentScissor = rt.Scissor
		r.currentScissorTest = rt.ScissorTest
	} else {
		r.currentViewport = r.scaledRect(r.viewport)
		r.currentScissor = r.scaledRect(r.scissor)
		r.currentScissorTest = r.scissorTest
	}
	r.state.BindFramebuffer(fb)
	r.state.SetViewport(r.currentViewport)
	r.state.SetScissor(r.currentScissor)
	r.state.SetScissorTest(r.currentScissorTest)
}

// SetTexture2D binds tex to unit outside of a material, for callers that
// drive programs themselves.
func (r *Renderer) SetTexture2D(tex *material.Texture, unit int) {
	r.textures.setTexture2D(tex, unit)
}

// SetTextureCube binds a cube texture to unit.
func (r *Renderer) SetTextureCube(tex *material.Texture, unit int) {
	r.textures.setTextureCube(tex, unit)
}

// Dispose releases every device resource the renderer created.
func (r *Renderer) Dispose() {
	r.programs.dispose()
	r.textures.dispose()
	r.attrs.dispose()
	r.objects.dispose()
	r.immediate.dispose()
	r.bg.dispose()
	r.ShadowMap.dispose()
	r.sprites.dispose()
	r.flares.dispose()
	r.lists.dispose()
	r.props.clear()
	r.info.Memory = MemoryInfo{}
}

// Render draws sc as seen from cam into target (the default framebuffer
// when nil). forceClear clears even when AutoClear is off. A lost device
// context makes Render return nil without drawing.
func (r *Renderer) Render(sc *scene.Scene, cam *scene.Camera, target *material.RenderTarget, forceClear bool) error {
	if r.dev.IsContextLost() {
		return nil
	}
	if changed, err := r.lib.Sync(); err != nil {
		Logger().Warn("shader reload failed", "err", err)
	} else if changed {
		Logger().Info("shader sources reloaded", "version", r.lib.Version())
	}

	for _, fn := range r.before {
		fn(sc, cam)
	}

	r.currentGeometryProgram = ""
	r.currentMaterialID = 0
	r.currentCamera = nil

	if sc.AutoUpdate {
		sc.UpdateMatrixWorld(false)
	}
	if cam.Parent() == nil {
		cam.UpdateMatrixWorld(false)
	}

	r.projScreen = cam.ViewProjectionMatrix()
	r.frustum = NewFrustumFromMatrix(r.projScreen)

	r.lightList = r.lightList[:0]
	r.shadows = r.shadows[:0]
	r.spriteList = r.spriteList[:0]
	r.flareList = r.flareList[:0]

	r.localClippingEnabled = r.LocalClippingEnabled
	r.clippingEnabled = r.clipping.init(r.ClippingPlanes, r.localClippingEnabled, cam)

	r.list = r.lists.get(sc, cam)
	r.list.init()
	r.projectObject(sc, cam, r.SortObjects)
	if r.SortObjects {
		r.list.Sort()
	}

	if r.clippingEnabled {
		r.clipping.beginShadows()
	}
	if err := r.ShadowMap.render(r.shadows, sc, cam); err != nil {
		return err
	}
	r.lights.setup(r.lightList, r.shadows, cam, r.ShadowMap.Enabled)
	if r.clippingEnabled {
		r.clipping.endShadows()
	}

	r.info.reset()
	r.SetRenderTarget(target)

	if err := r.bg.render(r.list, sc, cam, forceClear); err != nil {
		return err
	}

	override := sc.OverrideMaterial
	if err := r.renderObjects(r.list.Opaque, sc, cam, override); err != nil {
		return err
	}
	if err := r.renderObjects(r.list.Transparent, sc, cam, override); err != nil {
		return err
	}

	if err := r.sprites.render(r.spriteList, sc, cam); err != nil {
		return err
	}
	if err := r.flares.render(r.flareList, cam); err != nil {
		return err
	}

	if target != nil {
		r.textures.updateRenderTargetMipmap(target)
	}

	// leave the pipeline writable for whoever draws next
	r.state.SetDepthTest(true)
	r.state.SetDepthMask(true)
	r.state.SetColorMask(true)
	r.dev.Finish()

	for _, fn := range r.after {
		fn(sc, cam)
	}
	return nil
}

func (r *Renderer) programID(m *material.Material) int {
	if mp, ok := r.props.materials[m]; ok && mp.program != nil {
		return mp.program.ID
	}
	return 0
}

// screenZ projects a world position and returns its normalized depth.
func (r *Renderer) screenZ(p math3d.Vec3) float64 {
	return r.projScreen.MulVec4(math3d.V4FromV3(p, 1)).PerspectiveDivide().Z
}

// projectObject collects the renderable nodes under node into the frame's
// lists. Invisible nodes hide their subtree; a failed layer test only
// skips the node itself.
func (r *Renderer) projectObject(node scene.Node, cam *scene.Camera, sortObjects bool) {
	o := node.Obj()
	if !o.Visible {
		return
	}

	if o.Layers.Test(cam.Layers) {
		switch n := node.(type) {
		case *scene.Light:
			r.lightList = append(r.lightList, n)
			if n.CastShadow {
				r.shadows = append(r.shadows, n)
			}
		case *scene.Sprite:
			if !n.FrustumCulled || r.frustum.IntersectsSprite(n) {
				r.spriteList = append(r.spriteList, n)
			}
		case *scene.LensFlare:
			r.flareList = append(r.flareList, n)
		case *scene.ImmediateObject:
			if m := n.Material(); m != nil {
				var z float64
				if sortObjects {
					z = r.screenZ(n.WorldPosition())
				}
				r.list.Push(n, nil, m, z, nil, r.programID(m))
			}
		case *scene.SkinnedMesh:
			if n.Skeleton != nil {
				n.Skeleton.Update()
			}
			r.pushDrawable(n, sortObjects)
		case *scene.Mesh, *scene.Line, *scene.Points:
			r.pushDrawable(n, sortObjects)
		}
	}

	for _, child := range o.Children() {
		r.projectObject(child, cam, sortObjects)
	}
}

func (r *Renderer) pushDrawable(node scene.Node, sortObjects bool) {
	o := node.Obj()
	if o.Geometry == nil || len(o.Materials) == 0 {
		return
	}
	if o.FrustumCulled && !r.frustum.IntersectsObject(o) {
		return
	}

	var z float64
	if sortObjects {
		z = r.screenZ(o.WorldPosition())
	}
	g := r.objects.update(o.Geometry)

	if len(o.Materials) > 1 {
		for i := range g.Groups {
			grp := &g.Groups[i]
			if grp.MaterialIndex < 0 || grp.MaterialIndex >= len(o.Materials) {
				continue
			}
			m := o.Materials[grp.MaterialIndex]
			if m != nil && m.Visible {
				r.list.Push(node, g, m, z, grp, r.programID(m))
			}
		}
		return
	}
	if m := o.Materials[0]; m != nil && m.Visible {
		r.list.Push(node, g, m, z, nil, r.programID(m))
	}
}

func (r *Renderer) renderObjects(items []*RenderItem, sc *scene.Scene, cam *scene.Camera, override *material.Material) error {
	for _, it := range items {
		m := it.Material
		if override != nil {
			m = override
		}
		if err := r.renderObject(it.Object, sc, cam, it.Geometry, m, it.Group); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderObject(node scene.Node, sc *scene.Scene, cam *scene.Camera, g *geom.Geometry, m *material.Material, group *geom.Group) error {
	o := node.Obj()
	o.FireBeforeRender(sc, cam, g, m, group)

	if imm, ok := node.(*scene.ImmediateObject); ok {
		r.state.SetMaterial(m, false)
		prog, err := r.setProgram(cam, sc.Fog, m, node)
		if err != nil {
			return err
		}
		r.currentGeometryProgram = ""
		r.renderBufferImmediate(imm, prog, m)
	} else if err := r.renderBufferDirect(cam, sc.Fog, g, m, node, group); err != nil {
		return err
	}

	o.FireAfterRender(sc, cam, g, m, group)
	return nil
}

// addCapped adds without overflowing past math.MaxInt.
func addCapped(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

func mulCapped(a, f int) int {
	if a > math.MaxInt/f {
		return math.MaxInt
	}
	return a * f
}

// drawRange intersects the geometry draw range, the group and the data.
// rangeFactor scales ranges given in triangles to wireframe line indices.
func drawRange(dataCount int, dr geom.DrawRange, group *geom.Group, rangeFactor int) (start, count int) {
	rangeStart := mulCapped(dr.Start, rangeFactor)
	rangeCount := math.MaxInt
	if dr.Count >= 0 {
		rangeCount = mulCapped(dr.Count, rangeFactor)
	}
	groupStart, groupCount := 0, math.MaxInt
	if group != nil {
		groupStart = mulCapped(group.Start, rangeFactor)
		groupCount = mulCapped(group.Count, rangeFactor)
	}
	start = max(rangeStart, groupStart)
	end := min(dataCount, addCapped(rangeStart, rangeCount), addCapped(groupStart, groupCount))
	return start, max(0, end-start)
}

// renderBufferDirect draws one geometry (or one group of it) with m.
func (r *Renderer) renderBufferDirect(cam *scene.Camera, fog *scene.Fog, g *geom.Geometry, m *material.Material, node scene.Node, group *geom.Group) error {
	o := node.Obj()
	mesh, isMesh := meshOf(node)
	frontFaceCW := isMesh && o.MatrixWorld().Determinant() < 0

	r.state.SetMaterial(m, frontFaceCW)
	prog, err := r.setProgram(cam, fog, m, node)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%d_%d_%d_%t", g.ID(), g.Version(), prog.ID, m.Wireframe)
	updateBuffers := key != r.currentGeometryProgram
	r.currentGeometryProgram = key

	if isMesh && len(mesh.MorphTargetInfluences) > 0 {
		r.morphs.update(g, m, mesh.MorphTargetInfluences, func(name string, v any) {
			r.uploader.value(prog, name, v)
		})
		updateBuffers = true
	}

	index := g.Index()
	rangeFactor := 1
	if m.Wireframe {
		index = r.geometries.wireframeIndex(g)
		rangeFactor = 2
	}

	var ib *buffer
	if index != nil {
		ib = r.attrs.updateIndex(index)
	}
	if updateBuffers {
		r.setupVertexAttributes(prog, g)
		if ib != nil {
			r.dev.BindIndexBuffer(ib.handle)
		}
	}

	dataCount := 0
	if index != nil {
		dataCount = index.Count()
	} else if pos := g.Position(); pos != nil {
		dataCount = pos.Count()
	}
	start, count := drawRange(dataCount, g.DrawRange, group, rangeFactor)
	if count == 0 {
		return nil
	}

	var mode DrawMode
	switch n := node.(type) {
	case *scene.Mesh, *scene.SkinnedMesh:
		switch {
		case m.Wireframe:
			r.state.SetLineWidth(m.WireframeLineWidth * float32(r.pixelRatio))
			mode = DrawLines
		case mesh.DrawMode == scene.TriangleStripDrawMode:
			mode = DrawTriangleStrip
		case mesh.DrawMode == scene.TriangleFanDrawMode:
			mode = DrawTriangleFan
		default:
			mode = DrawTriangles
		}
	case *scene.Line:
		lw := m.LineWidth
		if lw <= 0 {
			lw = 1
		}
		r.state.SetLineWidth(lw * float32(r.pixelRatio))
		switch n.Mode {
		case scene.LineSegments:
			mode = DrawLines
		case scene.LineLoop:
			mode = DrawLineLoop
		default:
			mode = DrawLineStrip
		}
	case *scene.Points:
		mode = DrawPoints
	default:
		return nil
	}

	if g.Instanced {
		if !r.caps.Instancing {
			if !r.warnedInstancing {
				r.warnedInstancing = true
				Logger().Warn("instanced geometry skipped, device has no instancing", "geometry", g.Name)
			}
			return nil
		}
		if g.InstanceCount <= 0 {
			return nil
		}
		if index != nil {
			r.dev.DrawElementsInstanced(mode, count, start, g.InstanceCount)
		} else {
			r.dev.DrawArraysInstanced(mode, start, count, g.InstanceCount)
		}
		r.info.update(count, mode, g.InstanceCount)
		return nil
	}

	if index != nil {
		r.dev.DrawElements(mode, count, start)
	} else {
		r.dev.DrawArrays(mode, start, count)
	}
	r.info.update(count, mode, 1)
	return nil
}

// setupVertexAttributes points every attribute the program reads at the
// geometry's buffers.
func (r *Renderer) setupVertexAttributes(prog *Program, g *geom.Geometry) {
	r.state.InitAttributes()
	for _, name := range prog.attrNames {
		loc := prog.attributes[name]
		attr := g.Attribute(name)
		if attr == nil {
			continue
		}
		b := r.attrs.get(attr)
		if b == nil {
			b = r.attrs.update(attr)
		}
		divisor := 0
		if attr.Instanced() {
			divisor = attr.Divisor
		}
		r.state.EnableAttributeAndDivisor(loc, divisor)
		r.dev.VertexAttribPointer(loc, b.handle, attr.ItemSize, attr.Normalized)
	}
	r.state.DisableUnusedAttributes()
}
