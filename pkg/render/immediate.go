package render

import (
	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/scene"
)

// immediateBuffers are the device buffers immediate objects stream their
// vertices into. They are created on first use and shared.
type immediateBuffers struct {
	dev                         Device
	position, normal, uv, color Handle
	flat                        []float32
}

func newImmediateBuffers(dev Device) *immediateBuffers {
	return &immediateBuffers{dev: dev}
}

func (b *immediateBuffers) ensure() {
	if b.position != 0 {
		return
	}
	b.position = b.dev.CreateBuffer()
	b.normal = b.dev.CreateBuffer()
	b.uv = b.dev.CreateBuffer()
	b.color = b.dev.CreateBuffer()
}

// flatNormals averages each triangle's normals so the face shades flat.
func (b *immediateBuffers) flatNormals(normals []float32, count int) []float32 {
	n := min(count*3, len(normals))
	b.flat = append(b.flat[:0], normals[:n]...)
	for i := 0; i+9 <= n; i += 9 {
		for c := range 3 {
			avg := (b.flat[i+c] + b.flat[i+3+c] + b.flat[i+6+c]) / 3
			b.flat[i+c] = avg
			b.flat[i+3+c] = avg
			b.flat[i+6+c] = avg
		}
	}
	return b.flat
}

func (b *immediateBuffers) dispose() {
	if b.position == 0 {
		return
	}
	for _, h := range []Handle{b.position, b.normal, b.uv, b.color} {
		b.dev.DeleteBuffer(h)
	}
	b.position, b.normal, b.uv, b.color = 0, 0, 0, 0
}

// shadesOwnNormals reports whether the model derives flat normals in the
// fragment stage, so averaged vertex normals are not needed.
func shadesOwnNormals(m material.Model) bool {
	switch m {
	case material.Phong, material.Toon, material.Standard, material.Physical, material.Normal:
		return true
	}
	return false
}

// renderBufferImmediate streams the object's vertex arrays and draws them
// as triangles. Count is reset afterwards so stale data is never redrawn.
func (r *Renderer) renderBufferImmediate(imm *scene.ImmediateObject, prog *Program, m *material.Material) {
	if imm.Update != nil {
		imm.Update(imm)
	}
	defer func() { imm.Count = 0 }()
	if imm.Count <= 0 || len(imm.Positions) == 0 {
		return
	}

	b := r.immediate
	b.ensure()
	r.state.InitAttributes()

	stream := func(name string, buf Handle, data []float32, size int) {
		loc, ok := prog.attributes[name]
		if !ok {
			return
		}
		r.dev.BufferVertices(buf, data)
		r.state.EnableAttribute(loc)
		r.dev.VertexAttribPointer(loc, buf, size, false)
	}

	stream(geom.AttrPosition, b.position, imm.Positions, 3)
	if len(imm.Normals) > 0 {
		normals := imm.Normals
		if m.FlatShading && !shadesOwnNormals(m.Model) {
			normals = b.flatNormals(normals, imm.Count)
		}
		stream(geom.AttrNormal, b.normal, normals, 3)
	}
	if len(imm.UVs) > 0 && m.Map != nil {
		stream(geom.AttrUV, b.uv, imm.UVs, 2)
	}
	if len(imm.Colors) > 0 && m.VertexColors {
		stream(geom.AttrColor, b.color, imm.Colors, 3)
	}
	r.state.DisableUnusedAttributes()

	r.dev.DrawArrays(DrawTriangles, 0, imm.Count)
	r.info.update(imm.Count, DrawTriangles, 1)
}
