package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/tableau/pkg/render"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "tableau.toml", `
width = 120
height = 64
clear_color = 0x102030
tone_mapping = "reinhard"
log_level = "debug"

[shadows]
enabled = true
type = "pcfsoft"

[shaders]
dir = "shaders"
watch = true
`)
	opts, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 120, opts.Width)
	assert.Equal(t, 64, opts.Height)
	assert.Equal(t, uint32(0x102030), opts.ClearColor)
	assert.Equal(t, render.ReinhardToneMapping, opts.ToneMapping)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.True(t, opts.Shadows.Enabled)
	assert.Equal(t, render.PCFSoftShadowMap, opts.Shadows.Type)
	assert.Equal(t, "shaders", opts.Shaders.Dir)
	assert.True(t, opts.Shaders.Watch)

	// untouched fields keep their defaults
	def := render.DefaultOptions()
	assert.Equal(t, def.PixelRatio, opts.PixelRatio)
	assert.Equal(t, def.MaxMorphTargets, opts.MaxMorphTargets)
	assert.True(t, opts.AutoClear)
}

func TestLoadYAML(t *testing.T) {
	for _, name := range []string{"tableau.yaml", "tableau.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, `
width: 40
height: 20
sort_objects: false
shadows:
  type: basic
`)
			opts, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 40, opts.Width)
			assert.Equal(t, 20, opts.Height)
			assert.False(t, opts.SortObjects)
			assert.Equal(t, render.BasicShadowMap, opts.Shadows.Type)
			assert.Equal(t, "info", opts.LogLevel)
		})
	}
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	for _, ext := range []string{".toml", ".yaml"} {
		opts, err := Parse(nil, ext)
		require.NoError(t, err, ext)
		assert.Equal(t, render.DefaultOptions(), opts, ext)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown extension", "tableau.json", `{}`},
		{"unknown field", "tableau.toml", `widht = 3`},
		{"bad tone mapping", "tableau.toml", `tone_mapping = "filmic"`},
		{"bad shadow type", "tableau.yaml", "shadows:\n  type: soft\n"},
		{"zero width", "tableau.toml", `width = 0`},
		{"clear color out of range", "tableau.toml", `clear_color = 0x1000000`},
		{"clear alpha out of range", "tableau.yaml", "clear_alpha: 2\n"},
		{"bad precision", "tableau.toml", `precision = "ultra"`},
		{"bad log level", "tableau.yaml", "log_level: loud\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.file, tc.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Parse(nil, ".ini")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
