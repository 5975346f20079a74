package render

import (
	"fmt"

	"github.com/gogpu/naga"
)

// Compiler checks program sources before they are handed to the device.
type Compiler interface {
	Validate(src ProgramSource) error
}

// NagaCompiler validates WGSL sources by compiling them to SPIR-V. The
// output is discarded; devices receive the original source.
type NagaCompiler struct {
	Debug bool
}

// Validate compiles the vertex and fragment stages separately.
func (c NagaCompiler) Validate(src ProgramSource) error {
	opts := naga.DefaultOptions()
	opts.Validate = true
	opts.Debug = c.Debug
	for _, stage := range []struct {
		name string
		code string
	}{
		{"vertex", src.Vertex},
		{"fragment", src.Fragment},
	} {
		if stage.code == "" {
			continue
		}
		if _, err := naga.CompileWithOptions(stage.code, opts); err != nil {
			return fmt.Errorf("failed to compile %s %s shader: %w", src.Name, stage.name, err)
		}
	}
	return nil
}
