// Package config loads renderer options from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/taigrr/tableau/pkg/render"
)

// ErrUnknownFormat is returned for files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("config: unknown file format")

// Load reads options from path. Fields the file leaves out keep their
// values from render.DefaultOptions. The format follows the extension:
// .toml, .yaml or .yml.
func Load(path string) (render.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return render.Options{}, fmt.Errorf("read config: %w", err)
	}
	opts, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return render.Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Parse decodes data in the format named by ext over the defaults.
func Parse(data []byte, ext string) (render.Options, error) {
	opts := render.DefaultOptions()
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return render.Options{}, fmt.Errorf("parse toml: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// an empty document leaves the defaults alone
		if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			return render.Options{}, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return render.Options{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err := Validate(opts); err != nil {
		return render.Options{}, err
	}
	return opts, nil
}

// Validate rejects options the renderer cannot start with.
func Validate(opts render.Options) error {
	switch {
	case opts.Width <= 0 || opts.Height <= 0:
		return fmt.Errorf("config: size %dx%d must be positive", opts.Width, opts.Height)
	case opts.PixelRatio <= 0:
		return fmt.Errorf("config: pixel_ratio %v must be positive", opts.PixelRatio)
	case opts.ClearColor > 0xffffff:
		return fmt.Errorf("config: clear_color %#x is not 0xRRGGBB", opts.ClearColor)
	case opts.ClearAlpha < 0 || opts.ClearAlpha > 1:
		return fmt.Errorf("config: clear_alpha %v outside [0,1]", opts.ClearAlpha)
	case opts.MaxMorphTargets < 0 || opts.MaxMorphNormals < 0:
		return errors.New("config: morph target limits must not be negative")
	}
	switch opts.Precision {
	case "highp", "mediump", "lowp":
	default:
		return fmt.Errorf("config: unknown precision %q", opts.Precision)
	}
	switch strings.ToLower(opts.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", opts.LogLevel)
	}
	return nil
}
