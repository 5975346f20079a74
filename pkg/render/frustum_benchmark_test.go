package render

import (
	"math"
	"math/rand"
	"testing"

	"github.com/taigrr/tableau/pkg/geom"
	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

// BenchmarkFrustumExtract benchmarks frustum plane extraction from view-projection matrix.
func BenchmarkFrustumExtract(b *testing.B) {
	proj := math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 1000.0)
	view := math3d.LookAt(math3d.V3(0, 10, 20), math3d.V3(0, 0, 0), math3d.V3(0, 1, 0))
	viewProj := proj.Mul(view)

	for b.Loop() {
		_ = NewFrustumFromMatrix(viewProj)
	}
}

// BenchmarkAABBIntersection benchmarks AABB vs frustum intersection test.
func BenchmarkAABBIntersection(b *testing.B) {
	proj := math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100.0)
	frustum := NewFrustumFromMatrix(proj)

	visible := math3d.NewAABB(math3d.V3(-1, -1, -15), math3d.V3(1, 1, -5))
	b.Run("visible", func(b *testing.B) {
		for b.Loop() {
			_ = frustum.IntersectAABB(visible)
		}
	})

	culled := math3d.NewAABB(math3d.V3(-1, -1, 5), math3d.V3(1, 1, 15))
	b.Run("culled", func(b *testing.B) {
		for b.Loop() {
			_ = frustum.IntersectAABB(culled)
		}
	})
}

func BenchmarkFrustumIntersectsSphere(b *testing.B) {
	proj := math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 1000.0)
	frustum := NewFrustumFromMatrix(proj)
	s := math3d.Sphere{Center: math3d.V3(0, 0, -10), Radius: 2}

	for b.Loop() {
		_ = frustum.IntersectsSphere(s)
	}
}

// BenchmarkCullingScenario culls a field of meshes, roughly half of them in
// view.
func BenchmarkCullingScenario(b *testing.B) {
	cam := scene.NewCamera()
	cam.SetPosition(math3d.V3(0, 10, 20))
	cam.LookAt(math3d.V3(0, 0, 0))
	cam.UpdateMatrixWorld(false)
	frustum := NewFrustumFromMatrix(cam.ViewProjectionMatrix())

	rng := rand.New(rand.NewSource(42))
	box := geom.NewBox(2, 2, 2)
	mat := material.NewBasic(math3d.ColorHex(0x6496c8))
	meshes := make([]*scene.Mesh, 100)
	for i := range meshes {
		m := scene.NewMesh(box, mat)
		m.SetPosition(math3d.V3(rng.Float64()*100-50, rng.Float64()*10, rng.Float64()*100-50))
		m.UpdateMatrixWorld(false)
		meshes[i] = m
	}

	for b.Loop() {
		visible := 0
		for _, m := range meshes {
			if frustum.IntersectsObject(m.Obj()) {
				visible++
			}
		}
		_ = visible
	}
}
