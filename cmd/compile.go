package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/achilleasa/polaris-bsp/asset/scene/reader"
	"github.com/achilleasa/polaris-bsp/asset/scene/writer"
	"github.com/urfave/cli"
)

// Compile wavefront scenes into zip bundles.
func CompileScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() == 0 {
		return errors.New("missing scene file argument")
	}
	if ctx.NArg() > 1 && ctx.String("out") != "" {
		return errors.New("the out flag can only be used with a single scene file")
	}

	opts := reader.Options{
		Scale: float32(ctx.Float64("scale")),
		CCW:   ctx.BoolT("ccw"),
		Tree: bsp.Options{
			LeafThreshold: ctx.Int("leaf-threshold"),
			MaxDepth:      ctx.Int("max-depth"),
		},
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		sceneFile := ctx.Args().Get(idx)
		if !strings.HasSuffix(sceneFile, ".obj") {
			return fmt.Errorf("unsupported scene file %s", sceneFile)
		}

		start := time.Now()
		sc, err := reader.ReadScene(sceneFile, opts)
		if err != nil {
			return err
		}

		zipFile := ctx.String("out")
		if zipFile == "" {
			zipFile = strings.TrimSuffix(sceneFile, ".obj") + ".zip"
		}
		if err = writer.WriteScene(sc, zipFile); err != nil {
			return err
		}

		logger.Noticef("compiled %s into %s in %s\n%s", sceneFile, zipFile, time.Since(start), sc.Stats())
	}

	return nil
}

// Options for wavefront scenes that are not compiled through the compile command.
// Faces use counter-clockwise winding like the exporters we read from.
func defaultReaderOptions() reader.Options {
	return reader.Options{
		Scale: 1,
		CCW:   true,
		Tree:  bsp.DefaultOptions(),
	}
}

// Display the buffer table of compiled scenes.
func SceneInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() == 0 {
		return errors.New("missing scene file argument")
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		sceneFile := ctx.Args().Get(idx)
		sc, err := reader.ReadScene(sceneFile, defaultReaderOptions())
		if err != nil {
			return err
		}

		logger.Noticef("scene %s\n  bounds %v - %v\n%s", sceneFile, sc.Bounds[0], sc.Bounds[1], sc.Stats())
	}

	return nil
}
