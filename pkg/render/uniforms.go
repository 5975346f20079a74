package render

import (
	"fmt"
	"maps"
	"slices"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
)

// uniformUploader converts uniform values to device calls. Texture values
// take the next free texture unit.
type uniformUploader struct {
	dev      Device
	textures *textures
	floats   []float32
	ints     [1]int32
	warned   map[string]bool
}

func newUniformUploader(dev Device, t *textures) *uniformUploader {
	return &uniformUploader{dev: dev, textures: t, warned: map[string]bool{}}
}

// upload sends every value the program uses, skipping those flagged up
// to date.
func (u *uniformUploader) upload(p *Program, uniforms map[string]*material.Uniform) error {
	for _, name := range p.names {
		un, ok := uniforms[name]
		if !ok || un.UpToDate {
			continue
		}
		if err := u.set(p, name, un.Value); err != nil {
			return err
		}
	}
	return nil
}

// set uploads v when the program has an active uniform called name.
// Only texture values can fail, when no texture unit is left.
func (u *uniformUploader) set(p *Program, name string, v any) error {
	tex, ok := v.(*material.Texture)
	if !ok {
		u.value(p, name, v)
		return nil
	}
	loc, ok := p.uniforms[name]
	if !ok {
		return nil
	}
	return u.texture(loc, tex)
}

// value uploads a non-texture v when the program has an active uniform
// called name.
func (u *uniformUploader) value(p *Program, name string, v any) {
	loc, ok := p.uniforms[name]
	if !ok {
		return
	}
	f := u.floats[:0]
	switch v := v.(type) {
	case float32:
		f = append(f, v)
	case float64:
		f = append(f, float32(v))
	case int:
		u.setInt(loc, int32(v))
		return
	case int32:
		u.setInt(loc, v)
		return
	case bool:
		var b int32
		if v {
			b = 1
		}
		u.setInt(loc, b)
		return
	case math3d.Vec2:
		f = append(f, float32(v.X), float32(v.Y))
	case math3d.Vec3:
		f = append(f, float32(v.X), float32(v.Y), float32(v.Z))
	case math3d.Vec4:
		f = append(f, float32(v.X), float32(v.Y), float32(v.Z), float32(v.W))
	case math3d.Color:
		f = append(f, v.R, v.G, v.B)
	case math3d.Mat3:
		for _, x := range v {
			f = append(f, float32(x))
		}
	case math3d.Mat4:
		f = v.AppendFloat32(f)
	case []float32:
		u.dev.UniformFloats(loc, v)
		return
	default:
		if !u.warned[name] {
			u.warned[name] = true
			Logger().Warn("unsupported uniform value", "name", name, "type", fmt.Sprintf("%T", v))
		}
		return
	}
	u.floats = f
	u.dev.UniformFloats(loc, f)
}

func (u *uniformUploader) setInt(loc int, v int32) {
	u.ints[0] = v
	u.dev.UniformInts(loc, u.ints[:])
}

// texture binds tex to a fresh unit. A nil texture uploads -1 and takes no
// unit.
func (u *uniformUploader) texture(loc int, tex *material.Texture) error {
	if tex == nil {
		u.setInt(loc, -1)
		return nil
	}
	unit, err := u.textures.allocateUnit()
	if err != nil {
		return err
	}
	if tex.Cube {
		u.textures.setTextureCube(tex, unit)
	} else {
		u.textures.setTexture2D(tex, unit)
	}
	u.setInt(loc, int32(unit))
	return nil
}

// uniformNames lists the names a program built for uniforms may set.
func uniformNames(uniforms map[string]*material.Uniform) []string {
	names := slices.Collect(maps.Keys(uniforms))
	names = append(names, objectUniforms...)
	slices.Sort(names)
	return slices.Compact(names)
}
