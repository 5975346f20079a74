package geom

import "math"

// NewBox creates an indexed box centered at the origin. Each face is its
// own group (material index 0-5 in +X, -X, +Y, -Y, +Z, -Z order).
func NewBox(width, height, depth float64) *Geometry {
	var (
		pos, norm, uv []float32
		idx           []uint32
	)
	g := New()

	// u, v, w are axis indices; udir/vdir flip the face orientation and the
	// sign of depth picks which side of the w axis the face sits on.
	face := func(u, v, w int, udir, vdir, fw, fh, fd float64, matIndex int) {
		base := uint32(len(pos) / 3)
		start := len(idx)
		nw := float32(1)
		if fd < 0 {
			nw = -1
		}
		for iy := range 2 {
			for ix := range 2 {
				var p [3]float64
				var n [3]float32
				p[u] = (float64(ix) - 0.5) * fw * udir
				p[v] = (float64(iy) - 0.5) * fh * vdir
				p[w] = fd / 2
				n[w] = nw
				pos = append(pos, float32(p[0]), float32(p[1]), float32(p[2]))
				norm = append(norm, n[0], n[1], n[2])
				uv = append(uv, float32(ix), float32(1-iy))
			}
		}
		idx = append(idx, base, base+2, base+1, base+2, base+3, base+1)
		g.AddGroup(start, 6, matIndex)
	}

	const x, y, z = 0, 1, 2
	face(z, y, x, -1, -1, depth, height, width, 0)  // +X
	face(z, y, x, 1, -1, depth, height, -width, 1)  // -X
	face(x, z, y, 1, 1, width, depth, height, 2)    // +Y
	face(x, z, y, 1, -1, width, depth, -height, 3)  // -Y
	face(x, y, z, 1, -1, width, height, depth, 4)   // +Z
	face(x, y, z, -1, -1, width, height, -depth, 5) // -Z

	g.SetAttribute(AttrPosition, NewAttribute(pos, 3))
	g.SetAttribute(AttrNormal, NewAttribute(norm, 3))
	g.SetAttribute(AttrUV, NewAttribute(uv, 2))
	g.SetIndex(NewIndex(idx))
	return g
}

// NewPlane creates a width × height plane in the XY plane facing +Z.
func NewPlane(width, height float64) *Geometry {
	hw, hh := float32(width/2), float32(height/2)
	g := New()
	g.SetAttribute(AttrPosition, NewAttribute([]float32{
		-hw, hh, 0,
		hw, hh, 0,
		-hw, -hh, 0,
		hw, -hh, 0,
	}, 3))
	g.SetAttribute(AttrNormal, NewAttribute([]float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1}, 3))
	g.SetAttribute(AttrUV, NewAttribute([]float32{0, 1, 1, 1, 0, 0, 1, 0}, 2))
	g.SetIndex(NewIndex([]uint32{0, 2, 1, 2, 3, 1}))
	return g
}

// NewSphere creates a UV sphere.
func NewSphere(radius float64, widthSegments, heightSegments int) *Geometry {
	widthSegments = max(3, widthSegments)
	heightSegments = max(2, heightSegments)

	var (
		pos, norm, uv []float32
		idx           []uint32
	)
	for iy := 0; iy <= heightSegments; iy++ {
		v := float64(iy) / float64(heightSegments)
		for ix := 0; ix <= widthSegments; ix++ {
			u := float64(ix) / float64(widthSegments)
			x := -math.Cos(u*2*math.Pi) * math.Sin(v*math.Pi)
			y := math.Cos(v * math.Pi)
			z := math.Sin(u*2*math.Pi) * math.Sin(v*math.Pi)
			pos = append(pos, float32(x*radius), float32(y*radius), float32(z*radius))
			norm = append(norm, float32(x), float32(y), float32(z))
			uv = append(uv, float32(u), float32(1-v))
		}
	}

	row := uint32(widthSegments + 1)
	for iy := range heightSegments {
		for ix := range widthSegments {
			a := uint32(iy)*row + uint32(ix) + 1
			b := uint32(iy)*row + uint32(ix)
			c := uint32(iy+1)*row + uint32(ix)
			d := uint32(iy+1)*row + uint32(ix) + 1
			if iy != 0 {
				idx = append(idx, a, b, d)
			}
			if iy != heightSegments-1 {
				idx = append(idx, b, c, d)
			}
		}
	}

	g := New()
	g.SetAttribute(AttrPosition, NewAttribute(pos, 3))
	g.SetAttribute(AttrNormal, NewAttribute(norm, 3))
	g.SetAttribute(AttrUV, NewAttribute(uv, 2))
	g.SetIndex(NewIndex(idx))
	return g
}
