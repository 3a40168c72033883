package reader

import (
	"fmt"
	"strings"

	"github.com/achilleasa/polaris-bsp/asset"
	"github.com/achilleasa/polaris-bsp/asset/compiler"
	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/achilleasa/polaris-bsp/asset/mesh"
	"github.com/achilleasa/polaris-bsp/asset/scene"
)

// The Reader interface is implemented by all scene readers.
type Reader interface {
	// Read scene definition from a resource.
	Read(*asset.Resource) (*scene.Scene, error)
}

// Options apply when a wavefront scene needs to be compiled on the fly.
type Options struct {
	Scale float32
	CCW   bool
	Tree  bsp.Options
}

// ReadScene loads a compiled zip bundle or compiles a wavefront obj file.
func ReadScene(filename string, opts Options) (*scene.Scene, error) {
	res, err := asset.NewResource(filename, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	// Select reader based on file extension
	var reader Reader
	switch {
	case strings.HasSuffix(filename, ".obj"):
		reader = &objSceneReader{opts: opts}
	case strings.HasSuffix(filename, ".zip"):
		reader = newZipSceneReader()
	default:
		return nil, fmt.Errorf("readScene: unsupported file format")
	}
	return reader.Read(res)
}

type objSceneReader struct {
	opts Options
}

func (r *objSceneReader) Read(res *asset.Resource) (*scene.Scene, error) {
	m, err := mesh.Read(res, r.opts.Scale, r.opts.CCW)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(m, r.opts.Tree)
}
