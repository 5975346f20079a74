// Package shaderlib supplies program sources and uniform declarations for
// the built-in shading models. Sources can be overridden from a directory
// and hot-reloaded while the renderer runs.
package shaderlib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/taigrr/tableau/pkg/math3d"
)

// ID identifies a built-in shader.
type ID int

const (
	Basic ID = iota
	Lambert
	Phong
	Standard
	Normal
	Points
	Dashed
	Depth
	Cube
	Equirect
	DistanceRGBA
	Shadow
	Physical
	Sprite
	Flare

	numIDs
)

var idNames = [numIDs]string{
	Basic:        "basic",
	Lambert:      "lambert",
	Phong:        "phong",
	Standard:     "standard",
	Normal:       "normal",
	Points:       "points",
	Dashed:       "dashed",
	Depth:        "depth",
	Cube:         "cube",
	Equirect:     "equirect",
	DistanceRGBA: "distanceRGBA",
	Shadow:       "shadow",
	Physical:     "physical",
	Sprite:       "sprite",
	Flare:        "flare",
}

func (id ID) String() string {
	if id >= 0 && id < numIDs {
		return idNames[id]
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

// ErrUnknownID is returned by Get for ids outside the built-in set.
var ErrUnknownID = errors.New("shaderlib: unknown shader id")

// Shader is the source and uniform declarations of one program.
type Shader struct {
	Uniforms Uniforms
	Vertex   string
	Fragment string
}

// Library resolves shader ids to sources. Get and Load are meant to be
// called from the render goroutine; Watch only touches an atomic counter
// from its own goroutine.
type Library struct {
	shaders map[ID]Shader
	base    map[ID]Shader
	dir     string
	logger  atomic.Pointer[slog.Logger]

	// changes is bumped by the watcher; applied is the change count the
	// last Sync reloaded.
	changes atomic.Uint64
	applied uint64
	version uint64
}

// New creates a library holding the built-in shaders.
func New() *Library {
	base := builtins()
	l := &Library{shaders: maps.Clone(base), base: base}
	l.logger.Store(slog.New(slog.DiscardHandler))
	return l
}

// SetLogger sets the logger used for reload diagnostics. nil silences it.
func (l *Library) SetLogger(lg *slog.Logger) {
	if lg == nil {
		lg = slog.New(slog.DiscardHandler)
	}
	l.logger.Store(lg)
}

func builtins() map[ID]Shader {
	mesh := func(fragment string, groups ...Uniforms) Shader {
		return Shader{Uniforms: merge(groups...), Vertex: meshVertex, Fragment: fragment}
	}
	litMaps := []Uniforms{commonUniforms, specularMapUniforms, envMapUniforms, aoMapUniforms, lightMapUniforms, emissiveMapUniforms}
	surface := []Uniforms{bumpMapUniforms, normalMapUniforms, displacementMapUniforms}

	standard := merge(append(append(litMaps, surface...), roughnessMapUniforms, metalnessMapUniforms, fogUniforms, lightUniforms, Uniforms{
		"emissive":        math3d.ColorHex(0),
		"roughness":       float32(0.5),
		"metalness":       float32(0.5),
		"envMapIntensity": float32(1),
	})...)
	physical := merge(standard, Uniforms{
		"clearCoat":          float32(0),
		"clearCoatRoughness": float32(0),
	})

	return map[ID]Shader{
		Basic: mesh(unlitFragment, commonUniforms, specularMapUniforms, envMapUniforms, aoMapUniforms, lightMapUniforms, fogUniforms),
		Lambert: mesh(litFragment, append(litMaps, fogUniforms, lightUniforms, Uniforms{
			"emissive": math3d.ColorHex(0),
		})...),
		Phong: mesh(litFragment, append(append(litMaps, surface...), gradientMapUniforms, fogUniforms, lightUniforms, Uniforms{
			"emissive":  math3d.ColorHex(0),
			"specular":  math3d.ColorHex(0x111111),
			"shininess": float32(30),
		})...),
		Standard: {Uniforms: standard, Vertex: meshVertex, Fragment: litFragment},
		Physical: {Uniforms: physical, Vertex: meshVertex, Fragment: litFragment},
		Normal: mesh(normalFragment, bumpMapUniforms, normalMapUniforms, displacementMapUniforms, Uniforms{
			"opacity": float32(1),
		}),
		Points: {Uniforms: merge(pointsUniforms, fogUniforms), Vertex: pointsVertex, Fragment: pointsFragment},
		Dashed: mesh(unlitFragment, commonUniforms, fogUniforms, Uniforms{
			"scale":     float32(1),
			"dashSize":  float32(1),
			"totalSize": float32(2),
		}),
		Depth: mesh(depthFragment, commonUniforms, displacementMapUniforms),
		Cube: {Uniforms: Uniforms{
			"tCube":       noTexture,
			"tFlip":       float32(-1),
			"opacity":     float32(1),
			"diffuse":     math3d.ColorHex(0xffffff),
			"uvTransform": math3d.Identity3(),
		}, Vertex: screenVertex, Fragment: screenFragment},
		Equirect: {Uniforms: Uniforms{
			"tEquirect": noTexture,
			"opacity":   float32(1),
			"diffuse":   math3d.ColorHex(0xffffff),
		}, Vertex: screenVertex, Fragment: screenFragment},
		DistanceRGBA: mesh(depthFragment, commonUniforms, displacementMapUniforms, Uniforms{
			"referencePosition": math3d.Zero3(),
			"nearDistance":      float32(1),
			"farDistance":       float32(1000),
		}),
		Shadow: mesh(unlitFragment, lightUniforms, fogUniforms, Uniforms{
			"diffuse": math3d.ColorHex(0),
			"opacity": float32(1),
		}),
		Sprite: {Uniforms: spriteUniforms, Vertex: screenVertex, Fragment: screenFragment},
		Flare: {Uniforms: merge(spriteUniforms, Uniforms{
			"screenPosition": math3d.Zero3(),
			"flareScale":     math3d.V2(1, 1),
		}), Vertex: screenVertex, Fragment: screenFragment},
	}
}

// Get returns the shader for id. The returned Uniforms must be cloned
// before they are modified.
func (l *Library) Get(id ID) (Shader, error) {
	s, ok := l.shaders[id]
	if !ok {
		return Shader{}, fmt.Errorf("%w: %v", ErrUnknownID, id)
	}
	return s, nil
}

// Version changes every time Load replaces a source.
func (l *Library) Version() uint64 {
	return l.version
}

// Load overrides sources from dir. Files are named <id>.vert.wgsl and
// <id>.frag.wgsl, e.g. phong.frag.wgsl. Missing files fall back to the
// built-in source.
func (l *Library) Load(dir string) error {
	l.dir = dir
	shaders := make(map[ID]Shader, len(l.base))
	for id := range numIDs {
		s := l.base[id]
		for _, part := range []struct {
			suffix string
			dst    *string
		}{
			{".vert.wgsl", &s.Vertex},
			{".frag.wgsl", &s.Fragment},
		} {
			path := filepath.Join(dir, id.String()+part.suffix)
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return fmt.Errorf("read shader %s: %w", path, err)
			}
			*part.dst = string(data)
		}
		shaders[id] = s
	}
	changed := false
	for id, s := range shaders {
		cur := l.shaders[id]
		if s.Vertex != cur.Vertex || s.Fragment != cur.Fragment {
			changed = true
		}
	}
	l.shaders = shaders
	if changed {
		l.version++
		l.logger.Load().Debug("shader sources reloaded", "dir", dir, "version", l.version)
	}
	return nil
}

// Watch starts watching dir for shader file changes until ctx is done.
// Changes are only recorded; Sync applies them on the caller's goroutine.
func (l *Library) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create shader watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l.dir = dir

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(ev.Name, ".wgsl") {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					l.changes.Add(1)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Load().Warn("shader watcher error", "dir", dir, "err", err)
			}
		}
	}()
	return nil
}

// Sync reloads the watched directory if the watcher recorded changes since
// the last call. It reports whether sources were reloaded.
func (l *Library) Sync() (bool, error) {
	n := l.changes.Load()
	if n == l.applied || l.dir == "" {
		return false, nil
	}
	l.applied = n
	before := l.version
	if err := l.Load(l.dir); err != nil {
		return false, err
	}
	return l.version != before, nil
}
