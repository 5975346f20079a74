package soft

import "math"

// line rasterizes a segment with Bresenham's algorithm. Wide lines stamp
// a square brush at every step.
func (d *Device) line(sh *shader, a, b *vertexOut) {
	va, vb, ok := clipSegment(*a, *b)
	if !ok {
		return
	}
	p0, p1 := d.toScreen(&va), d.toScreen(&vb)

	x0, y0 := int(math.Floor(p0.X)), int(math.Floor(p0.Y))
	x1, y1 := int(math.Floor(p1.X)), int(math.Floor(p1.Y))
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	steps := max(dx, -dy)
	width := max(1, int(math.Round(float64(d.lineWidth))))
	bounds := d.drawArea()

	var vary varyings
	err := dx + dy
	for i := 0; ; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		z := p0.Z + (p1.Z-p0.Z)*t
		w0, w1 := (1-t)*p0.InvW, t*p1.InvW
		if sum := w0 + w1; sum != 0 {
			w0, w1 = w0/sum, w1/sum
			for k := range vary {
				vary[k] = w0*p0.vary[k] + w1*p1.vary[k]
			}
			for by := range width {
				for bx := range width {
					x, y := x0+bx-width/2, y0+by-width/2
					if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
						d.fragment(sh, x, y, z, &vary, true, vary[vU], vary[vV])
					}
				}
			}
		}

		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// clipSegment trims a segment to the near and far planes.
func clipSegment(a, b vertexOut) (vertexOut, vertexOut, bool) {
	for _, pl := range clipPlanes {
		da, db := a.clip.Dot(pl), b.clip.Dot(pl)
		switch {
		case da < 0 && db < 0:
			return a, b, false
		case da < 0:
			a = lerpVertex(a, b, da/(da-db))
		case db < 0:
			b = lerpVertex(a, b, da/(da-db))
		}
	}
	return a, b, true
}

// point draws a screen-aligned square of the vertex's point size.
func (d *Device) point(sh *shader, v *vertexOut) {
	c := v.clip
	if c.W <= 0 || c.Z < -c.W || c.Z > c.W {
		return
	}
	p := d.toScreen(v)
	size := math.Max(1, v.size)
	half := size / 2
	bounds := d.drawArea()

	// pixels whose centres fall in [p-half, p+half)
	minX := max(bounds.Min.X, int(math.Ceil(p.X-half-0.5)))
	maxX := min(bounds.Max.X-1, int(math.Ceil(p.X+half-0.5))-1)
	minY := max(bounds.Min.Y, int(math.Ceil(p.Y-half-0.5)))
	maxY := min(bounds.Max.Y-1, int(math.Ceil(p.Y+half-0.5))-1)

	vary := v.vary
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			// gl_PointCoord runs 0-1 left to right and top to bottom
			pu := (float64(x) + 0.5 - (p.X - half)) / size
			pv := (float64(y) + 0.5 - (p.Y - half)) / size
			u, w := sh.pointUV(pu, pv)
			d.fragment(sh, x, y, p.Z, &vary, true, u, w)
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
