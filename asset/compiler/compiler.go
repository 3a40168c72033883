package compiler

import (
	"fmt"
	"time"

	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/achilleasa/polaris-bsp/asset/mesh"
	"github.com/achilleasa/polaris-bsp/asset/scene"
	"github.com/achilleasa/polaris-bsp/log"
)

type sceneCompiler struct {
	logger log.Logger
	opts   bsp.Options
	mesh   *mesh.Mesh

	tree *bsp.Tree
}

// Compile partitions the mesh geometry with a BSP tree and packs the result
// into GPU-friendly scene buffers.
func Compile(m *mesh.Mesh, opts bsp.Options) (*scene.Scene, error) {
	compiler := &sceneCompiler{
		logger: log.New("scene compiler"),
		opts:   opts,
		mesh:   m,
	}

	start := time.Now()
	compiler.logger.Noticef("compiling scene")

	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := compiler.partitionGeometry(); err != nil {
		return nil, err
	}

	sc, err := scene.Encode(compiler.tree, m)
	if err != nil {
		return nil, err
	}

	compiler.logger.Noticef("compiled scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}

func (sc *sceneCompiler) partitionGeometry() error {
	start := time.Now()
	sc.logger.Infof("partitioning %d triangles", sc.mesh.TriangleCount())

	tree, err := bsp.Build(sc.mesh.Triangles(), sc.mesh.BBox(), sc.opts)
	if err != nil {
		return fmt.Errorf("compiler: could not partition geometry: %w", err)
	}
	if err = tree.Validate(); err != nil {
		return fmt.Errorf("compiler: generated invalid tree: %w", err)
	}

	sc.tree = tree
	sc.logger.Infof("partitioned geometry in %d ms: %s", time.Since(start).Nanoseconds()/1e6, tree.Stats)
	return nil
}
