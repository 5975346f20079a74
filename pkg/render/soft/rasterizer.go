package soft

import (
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/render"
)

// screenVertex is a vertex after the perspective divide, in framebuffer
// pixels with y down.
type screenVertex struct {
	X, Y, Z float64
	InvW    float64
	vary    *varyings
}

// draw assembles primitives from the bound buffers and rasterizes them.
func (d *Device) draw(mode render.DrawMode, first, count, instances int, indexed bool) {
	if d.lost || d.current == nil || count <= 0 || instances <= 0 {
		return
	}
	if indexed && d.index == nil {
		return
	}
	d.Stats.DrawCalls++

	vertexAt := func(i int) (int, bool) { return first + i, true }
	if indexed {
		ints := d.index.ints
		vertexAt = func(i int) (int, bool) {
			if first+i >= len(ints) {
				return 0, false
			}
			return int(ints[first+i]), true
		}
	}

	sh := newShader(d, d.current)
	cache := map[int]*vertexOut{}
	for inst := range instances {
		clear(cache)
		fetch := func(i int) *vertexOut {
			vi, ok := vertexAt(i)
			if !ok {
				return nil
			}
			if v, ok := cache[vi]; ok {
				return v
			}
			v := sh.vertex(vi, inst)
			cache[vi] = &v
			return &v
		}
		d.assemble(sh, mode, count, fetch)
	}
}

// assemble walks count vertices as primitives of mode.
func (d *Device) assemble(sh *shader, mode render.DrawMode, count int, fetch func(int) *vertexOut) {
	tri := func(a, b, c int) {
		va, vb, vc := fetch(a), fetch(b), fetch(c)
		if va != nil && vb != nil && vc != nil {
			d.triangle(sh, va, vb, vc)
		}
	}
	line := func(a, b int) {
		va, vb := fetch(a), fetch(b)
		if va != nil && vb != nil {
			d.line(sh, va, vb)
		}
	}

	switch mode {
	case render.DrawTriangles:
		for i := 0; i+2 < count; i += 3 {
			tri(i, i+1, i+2)
		}
	case render.DrawTriangleStrip:
		for i := 0; i+2 < count; i++ {
			if i%2 == 0 {
				tri(i, i+1, i+2)
			} else {
				tri(i+1, i, i+2)
			}
		}
	case render.DrawTriangleFan:
		for i := 1; i+1 < count; i++ {
			tri(0, i, i+1)
		}
	case render.DrawLines:
		for i := 0; i+1 < count; i += 2 {
			line(i, i+1)
		}
	case render.DrawLineStrip:
		for i := 0; i+1 < count; i++ {
			line(i, i+1)
		}
	case render.DrawLineLoop:
		for i := 0; i+1 < count; i++ {
			line(i, i+1)
		}
		if count > 2 {
			line(count-1, 0)
		}
	case render.DrawPoints:
		for i := range count {
			if v := fetch(i); v != nil {
				d.point(sh, v)
			}
		}
	}
}

// clip planes in homogeneous space: near z >= -w and far z <= w
var clipPlanes = [2]math3d.Vec4{{Z: 1, W: 1}, {Z: -1, W: 1}}

// clipPolygon clips a convex polygon against the near and far planes.
func clipPolygon(poly []vertexOut) []vertexOut {
	for _, pl := range clipPlanes {
		if len(poly) == 0 {
			return nil
		}
		var out []vertexOut
		prev := poly[len(poly)-1]
		prevD := prev.clip.Dot(pl)
		for _, cur := range poly {
			curD := cur.clip.Dot(pl)
			if curD >= 0 {
				if prevD < 0 {
					out = append(out, lerpVertex(prev, cur, prevD/(prevD-curD)))
				}
				out = append(out, cur)
			} else if prevD >= 0 {
				out = append(out, lerpVertex(prev, cur, prevD/(prevD-curD)))
			}
			prev, prevD = cur, curD
		}
		poly = out
	}
	return poly
}

func lerpVertex(a, b vertexOut, t float64) vertexOut {
	out := vertexOut{clip: a.clip.Lerp(b.clip, t), size: a.size + (b.size-a.size)*t}
	for i := range out.vary {
		out.vary[i] = a.vary[i] + (b.vary[i]-a.vary[i])*t
	}
	return out
}

// toScreen maps a clip-space vertex through the viewport.
func (d *Device) toScreen(v *vertexOut) screenVertex {
	invW := 1 / v.clip.W
	vp := d.viewport
	x := float64(vp.Min.X) + (v.clip.X*invW+1)*0.5*float64(vp.Dx())
	y := float64(vp.Min.Y) + (v.clip.Y*invW+1)*0.5*float64(vp.Dy())
	return screenVertex{
		X:    x,
		Y:    float64(d.target.Height) - y,
		Z:    v.clip.Z*invW*0.5 + 0.5,
		InvW: invW,
		vary: &v.vary,
	}
}

// drawArea is where fragments may land: the viewport, the scissor box when
// enabled and the target.
func (d *Device) drawArea() image.Rectangle {
	area := d.target.Bounds().Intersect(d.toRows(d.viewport))
	if d.caps[render.CapScissorTest] {
		area = area.Intersect(d.toRows(d.scissor))
	}
	return area
}

func (d *Device) triangle(sh *shader, a, b, c *vertexOut) {
	poly := clipPolygon([]vertexOut{*a, *b, *c})
	for i := 1; i+1 < len(poly); i++ {
		d.rasterize(sh, &poly[0], &poly[i], &poly[i+1])
	}
}

// edgeCoeffs returns A, B, C of the edge function A*x + B*y + C, positive
// on the left of x0,y0 -> x1,y1 in y-down coordinates.
func edgeCoeffs(x0, y0, x1, y1 float64) (A, B, C float64) {
	return y0 - y1, x1 - x0, x0*y1 - x1*y0
}

// topLeft reports whether an edge is a top or left edge of a triangle
// with positive area. Pixels centred exactly on an edge belong to the
// triangle only for those edges, so shared edges are filled once.
func topLeft(A, B float64) bool {
	return A > 0 || (A == 0 && B > 0)
}

func covers(w float64, topLeft bool) bool {
	return w > 0 || (w == 0 && topLeft)
}

// rasterize fills one clipped triangle with incremental edge functions.
func (d *Device) rasterize(sh *shader, a, b, c *vertexOut) {
	sv := [3]screenVertex{d.toScreen(a), d.toScreen(b), d.toScreen(c)}

	area := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[1].Y-sv[0].Y)*(sv[2].X-sv[0].X)
	if area == 0 || math.IsNaN(area) {
		return
	}
	// counter-clockwise in NDC turns clockwise once y points down
	front := area < 0
	if d.frontFace == gputypes.FrontFaceCW {
		front = !front
	}
	if d.caps[render.CapCullFace] {
		if (d.cull == gputypes.CullModeBack && !front) || (d.cull == gputypes.CullModeFront && front) {
			d.Stats.TrianglesCulled++
			return
		}
	}
	if area < 0 {
		sv[1], sv[2] = sv[2], sv[1]
		area = -area
	}
	d.Stats.Triangles++

	bounds := d.drawArea()
	minX := max(bounds.Min.X, int(math.Floor(min(sv[0].X, sv[1].X, sv[2].X))))
	maxX := min(bounds.Max.X-1, int(math.Ceil(max(sv[0].X, sv[1].X, sv[2].X))))
	minY := max(bounds.Min.Y, int(math.Floor(min(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := min(bounds.Max.Y-1, int(math.Ceil(max(sv[0].Y, sv[1].Y, sv[2].Y))))
	if minX > maxX || minY > maxY {
		return
	}

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	A0, B0, C0 := edgeCoeffs(sv[1].X, sv[1].Y, sv[2].X, sv[2].Y)
	A1, B1, C1 := edgeCoeffs(sv[2].X, sv[2].Y, sv[0].X, sv[0].Y)
	A2, B2, C2 := edgeCoeffs(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y)
	invArea := 1 / area
	tl0, tl1, tl2 := topLeft(A0, B0), topLeft(A1, B1), topLeft(A2, B2)

	offset := 0.0
	if d.caps[render.CapPolygonOffsetFill] {
		// depth slope from the plane through the three vertices
		dzdx := (A0*sv[0].Z + A1*sv[1].Z + A2*sv[2].Z) * invArea
		dzdy := (B0*sv[0].Z + B1*sv[1].Z + B2*sv[2].Z) * invArea
		offset = float64(d.offsetFactor)*math.Max(math.Abs(dzdx), math.Abs(dzdy)) + float64(d.offsetUnits)/(1<<24)
	}

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	w0Row := A0*px + B0*py + C0
	w1Row := A1*px + B1*py + C1
	w2Row := A2*px + B2*py + C2

	var vary varyings
	for y := minY; y <= maxY; y++ {
		w0, w1, w2 := w0Row, w1Row, w2Row
		for x := minX; x <= maxX; x++ {
			if covers(w0, tl0) && covers(w1, tl1) && covers(w2, tl2) {
				bc0, bc1, bc2 := w0*invArea, w1*invArea, w2*invArea
				z := bc0*sv[0].Z + bc1*sv[1].Z + bc2*sv[2].Z + offset

				// perspective-correct varyings
				pw0, pw1, pw2 := bc0*sv[0].InvW, bc1*sv[1].InvW, bc2*sv[2].InvW
				if sum := pw0 + pw1 + pw2; sum != 0 {
					inv := 1 / sum
					pw0, pw1, pw2 = pw0*inv, pw1*inv, pw2*inv
					for i := range vary {
						vary[i] = pw0*sv[0].vary[i] + pw1*sv[1].vary[i] + pw2*sv[2].vary[i]
					}
					d.fragment(sh, x, y, z, &vary, front, vary[vU], vary[vV])
				}
			}
			w0 += A0
			w1 += A1
			w2 += A2
		}
		w0Row += B0
		w1Row += B1
		w2Row += B2
	}
}

// fragment shades one pixel and runs the depth test and blending.
func (d *Device) fragment(sh *shader, x, y int, z float64, vary *varyings, front bool, u, v float64) {
	fb := d.target
	idx := y*fb.Width + x
	if d.caps[render.CapDepthTest] && !depthPasses(d.depthFunc, z, fb.Depth[idx]) {
		return
	}
	c, ok := sh.fragment(vary, front, u, v)
	if !ok {
		return
	}
	if d.caps[render.CapDepthTest] && d.depthMask {
		fb.Depth[idx] = math.Max(0, math.Min(1, z))
	}
	if !d.colorMask {
		return
	}
	if d.caps[render.CapBlend] {
		c = blend(d.blend, c, fromRGBA(fb.Pixels[idx]))
	}
	fb.Pixels[idx] = toRGBA(c)
	d.Stats.Fragments++
}

func depthPasses(f gputypes.CompareFunction, z, stored float64) bool {
	switch f {
	case gputypes.CompareFunctionNever:
		return false
	case gputypes.CompareFunctionLess:
		return z < stored
	case gputypes.CompareFunctionEqual:
		return z == stored
	case gputypes.CompareFunctionLessEqual:
		return z <= stored
	case gputypes.CompareFunctionGreater:
		return z > stored
	case gputypes.CompareFunctionNotEqual:
		return z != stored
	case gputypes.CompareFunctionGreaterEqual:
		return z >= stored
	default:
		return true
	}
}

// blend combines a source fragment with the stored color.
func blend(b gputypes.BlendState, src, dst math3d.Vec4) math3d.Vec4 {
	sf := blendFactor(b.Color.SrcFactor, src, dst)
	df := blendFactor(b.Color.DstFactor, src, dst)
	rgb := combine(b.Color.Operation,
		math3d.V3(src.X*sf.X, src.Y*sf.Y, src.Z*sf.Z),
		math3d.V3(dst.X*df.X, dst.Y*df.Y, dst.Z*df.Z),
		src.Vec3(), dst.Vec3())

	sa := blendFactor(b.Alpha.SrcFactor, src, dst).W
	da := blendFactor(b.Alpha.DstFactor, src, dst).W
	a := combine(b.Alpha.Operation,
		math3d.V3(src.W*sa, 0, 0), math3d.V3(dst.W*da, 0, 0),
		math3d.V3(src.W, 0, 0), math3d.V3(dst.W, 0, 0))
	return math3d.V4(rgb.X, rgb.Y, rgb.Z, a.X)
}

// blendFactor returns the per-channel factor. Constant factors use a white
// blend constant.
func blendFactor(f gputypes.BlendFactor, src, dst math3d.Vec4) math3d.Vec4 {
	one := math3d.V4(1, 1, 1, 1)
	switch f {
	case gputypes.BlendFactorZero:
		return math3d.Vec4{}
	case gputypes.BlendFactorOne, gputypes.BlendFactorConstant:
		return one
	case gputypes.BlendFactorSrc:
		return src
	case gputypes.BlendFactorOneMinusSrc:
		return one.Sub(src)
	case gputypes.BlendFactorSrcAlpha:
		return math3d.V4(src.W, src.W, src.W, src.W)
	case gputypes.BlendFactorOneMinusSrcAlpha:
		a := 1 - src.W
		return math3d.V4(a, a, a, a)
	case gputypes.BlendFactorDst:
		return dst
	case gputypes.BlendFactorOneMinusDst:
		return one.Sub(dst)
	case gputypes.BlendFactorDstAlpha:
		return math3d.V4(dst.W, dst.W, dst.W, dst.W)
	case gputypes.BlendFactorOneMinusDstAlpha:
		a := 1 - dst.W
		return math3d.V4(a, a, a, a)
	case gputypes.BlendFactorSrcAlphaSaturated:
		f := math.Min(src.W, 1-dst.W)
		return math3d.V4(f, f, f, 1)
	case gputypes.BlendFactorOneMinusConstant:
		return math3d.Vec4{}
	}
	return one
}

// combine applies op to the weighted terms; min and max ignore the
// factors.
func combine(op gputypes.BlendOperation, s, d, rawS, rawD math3d.Vec3) math3d.Vec3 {
	switch op {
	case gputypes.BlendOperationSubtract:
		return s.Sub(d)
	case gputypes.BlendOperationReverseSubtract:
		return d.Sub(s)
	case gputypes.BlendOperationMin:
		return rawS.Min(rawD)
	case gputypes.BlendOperationMax:
		return rawS.Max(rawD)
	default:
		return s.Add(d)
	}
}

func fromRGBA(c color.RGBA) math3d.Vec4 {
	return math3d.V4(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, float64(c.A)/255)
}

func toRGBA(c math3d.Vec4) color.RGBA {
	to8 := func(v float64) uint8 { return uint8(math.Round(clamp01(v) * 255)) }
	return color.RGBA{R: to8(c.X), G: to8(c.Y), B: to8(c.Z), A: to8(c.W)}
}
