package vkrender

import (
	"embed"

	"github.com/cockroachdb/errors"
)

//go:generate glslc shaders/tri.vert -o shaders/tri.vert.spv
//go:generate glslc shaders/tri.frag -o shaders/tri.frag.spv

//go:embed shaders/tri.vert.spv shaders/tri.frag.spv
var shaderFS embed.FS

// loadShaders reads the built-in shader bytecode. A reload trigger can
// replace it at runtime; these are only the startup defaults.
func (r *Renderer) loadShaders() error {
	vert, err := shaderFS.ReadFile("shaders/tri.vert.spv")
	if err != nil {
		return errors.Wrap(err, "reading vertex shader")
	}
	frag, err := shaderFS.ReadFile("shaders/tri.frag.spv")
	if err != nil {
		return errors.Wrap(err, "reading fragment shader")
	}
	r.vertCode = vert
	r.fragCode = frag
	return nil
}
