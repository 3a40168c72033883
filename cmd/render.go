package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/achilleasa/polaris-bsp/asset/scene/reader"
	"github.com/achilleasa/polaris-bsp/renderer"
	"github.com/urfave/cli"
)

// Render a progressively refined frame.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	opts := renderer.DefaultOptions()
	opts.FrameW = uint32(ctx.Int("width"))
	opts.FrameH = uint32(ctx.Int("height"))
	opts.SubdivisionLevel = uint32(ctx.Int("subdivs"))
	opts.CamConst = float32(ctx.Float64("cam-const"))
	opts.Gamma = float32(ctx.Float64("gamma"))
	opts.MattShader = ctx.Int("matt-shader")
	opts.GlassShader = ctx.Int("glass-shader")
	opts.Progressive = !ctx.Bool("single")
	opts.FrameCap = uint32(ctx.Int("frames"))
	opts.BlackBackground = ctx.Bool("black-background")
	opts.Seed = uint64(ctx.Int64("seed"))
	opts.OutputFile = ctx.String("out")
	opts.BlackListedDevices = ctx.StringSlice("blacklist")
	opts.DisableTimestamps = ctx.Bool("no-timestamps")

	// Wavefront scenes are compiled on the fly
	sc, err := reader.ReadScene(ctx.Args().First(), defaultReaderOptions())
	if err != nil {
		return err
	}

	r, err := renderer.New(sc, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	renderCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = r.Render(renderCtx)
	if errors.Is(err, renderer.ErrInterrupted) {
		logger.Warningf("rendering interrupted")
	} else if err != nil {
		return err
	}

	logger.Noticef("frame statistics\n%s", r.Stats().Table())
	return nil
}
