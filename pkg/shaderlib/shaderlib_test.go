package shaderlib

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

func TestBuiltinsComplete(t *testing.T) {
	l := New()
	for id := range numIDs {
		t.Run(id.String(), func(t *testing.T) {
			s, err := l.Get(id)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Vertex)
			assert.NotEmpty(t, s.Fragment)
			assert.NotEmpty(t, s.Uniforms)
		})
	}

	_, err := l.Get(numIDs)
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestUniformDeclarations(t *testing.T) {
	l := New()

	phong, _ := l.Get(Phong)
	assert.Contains(t, phong.Uniforms, "shininess")
	assert.Contains(t, phong.Uniforms, "ambientLightColor")
	assert.Contains(t, phong.Uniforms, "fogColor")

	basic, _ := l.Get(Basic)
	assert.NotContains(t, basic.Uniforms, "ambientLightColor")

	physical, _ := l.Get(Physical)
	assert.Contains(t, physical.Uniforms, "clearCoat")
	assert.Contains(t, physical.Uniforms, "roughness")
}

func TestUniformsCloneIsIndependent(t *testing.T) {
	l := New()
	s, _ := l.Get(Basic)

	a := s.Uniforms.Clone()
	b := s.Uniforms.Clone()
	a["opacity"].Value = float32(0.25)

	assert.Equal(t, float32(1), b["opacity"].Value)
	assert.Equal(t, float32(1), s.Uniforms["opacity"])

	m, ok := a["map"].Value.(*material.Texture)
	assert.True(t, ok)
	assert.Nil(t, m)
	assert.Equal(t, math3d.Identity3(), a["uvTransform"].Value)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "phong.frag.wgsl"), []byte("// custom"), 0o644))

	l := New()
	require.NoError(t, l.Load(dir))
	assert.Equal(t, uint64(1), l.Version())

	s, _ := l.Get(Phong)
	assert.Equal(t, "// custom", s.Fragment)
	assert.Equal(t, meshVertex, s.Vertex)

	require.NoError(t, l.Load(dir))
	assert.Equal(t, uint64(1), l.Version(), "unchanged files do not bump the version")
}

func TestRemovedOverrideRestoresBuiltin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lambert.frag.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// custom"), 0o644))

	l := New()
	builtin, _ := l.Get(Lambert)
	require.NoError(t, l.Load(dir))
	s, _ := l.Get(Lambert)
	require.Equal(t, "// custom", s.Fragment)

	require.NoError(t, os.Remove(path))
	require.NoError(t, l.Load(dir))

	s, _ = l.Get(Lambert)
	assert.Equal(t, builtin.Fragment, s.Fragment)
	assert.Equal(t, uint64(2), l.Version())

	other, _ := l.Get(Phong)
	assert.Equal(t, litFragment, other.Fragment, "shaders sharing the source are untouched")
}

func TestWatchAndSync(t *testing.T) {
	dir := t.TempDir()
	l := New()

	changed, err := l.Sync()
	require.NoError(t, err)
	assert.False(t, changed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx, dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.vert.wgsl"), []byte("// v2"), 0o644))
	require.Eventually(t, func() bool { return l.changes.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	changed, err = l.Sync()
	require.NoError(t, err)
	assert.True(t, changed)

	s, _ := l.Get(Basic)
	assert.Equal(t, "// v2", s.Vertex)
}
