package webgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

const (
	vertexEntryPoint   = "vs_main"
	fragmentEntryPoint = "fs_main"
)

//go:embed shaders/trace.wgsl
var traceShaderSource string

// ShaderSource returns the WGSL program used by the frame pass.
func ShaderSource() string {
	return traceShaderSource
}

// Run the source through the WGSL front-end so that syntax and type errors
// are reported with naga's diagnostics instead of an opaque driver failure.
func validateShader(src string) error {
	if src == "" {
		return ErrEmptyShader
	}
	if _, err := naga.Compile(src); err != nil {
		return fmt.Errorf("webgpu: invalid shader program: %w", err)
	}
	return nil
}
