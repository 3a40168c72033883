package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/achilleasa/polaris-bsp/cmd"
	"github.com/achilleasa/polaris-bsp/tracer"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	treeDefaults := bsp.DefaultOptions()

	app := cli.NewApp()
	app.Name = "polaris-bsp"
	app.Usage = "render scenes with a progressive GPU ray tracer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, notice, warning, error); -v and -vv take precedence",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "compile",
			Usage: "compile a wavefront scene into a binary bundle",
			Description: `
Parse a scene definition from a wavefront obj file, build a BSP tree to speed up
ray intersection tests and encode the scene into the buffers used by the tracer.

The encoded buffers are then written to a zip archive which can be supplied
as an argument to the render command.`,
			ArgsUsage: "scene_file1.obj scene_file2.obj ...",
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "scale",
					Value: 1.0,
					Usage: "uniform scale applied to vertex positions",
				},
				cli.BoolTFlag{
					Name:  "ccw",
					Usage: "faces use counter-clockwise winding; pass --ccw=false to flip them",
				},
				cli.IntFlag{
					Name:  "leaf-threshold",
					Value: treeDefaults.LeafThreshold,
					Usage: "max triangles stored in a leaf before it is split",
				},
				cli.IntFlag{
					Name:  "max-depth",
					Value: treeDefaults.MaxDepth,
					Usage: "max BSP tree depth",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "bundle filename; defaults to the scene file with a .zip extension",
				},
			},
			Action: cmd.CompileScene,
		},
		{
			Name:      "info",
			Usage:     "display the buffers of compiled scenes",
			ArgsUsage: "scene_file1.zip scene_file2.zip ...",
			Action:    cmd.SceneInfo,
		},
		{
			Name:   "list-devices",
			Usage:  "list available webgpu adapters",
			Action: cmd.ListDevices,
		},
		{
			Name:  "render",
			Usage: "render scene",
			Description: `
Accumulate progressively refined frames of a compiled scene (or a wavefront obj
file which is compiled on the fly) and save the result as a png image.`,
			ArgsUsage: "scene_file",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "subdivs",
					Value: 1,
					Usage: "pixel subdivision level; each frame traces subdivs^2 samples per pixel",
				},
				cli.Float64Flag{
					Name:  "cam-const",
					Usage: "camera constant; 0 keeps the default",
				},
				cli.Float64Flag{
					Name:  "gamma",
					Value: 1.5,
					Usage: "gamma applied when saving the frame",
				},
				cli.IntFlag{
					Name:  "matt-shader",
					Value: -1,
					Usage: "matt shader index; -1 keeps the default",
				},
				cli.IntFlag{
					Name:  "glass-shader",
					Value: -1,
					Usage: "glass shader index; -1 keeps the default",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: tracer.DefaultFrameCap,
					Usage: "number of frames to accumulate",
				},
				cli.BoolFlag{
					Name:  "single",
					Usage: "render a single frame instead of accumulating",
				},
				cli.BoolFlag{
					Name:  "black-background",
					Usage: "render the background black",
				},
				cli.Int64Flag{
					Name:  "seed",
					Usage: "jitter table seed",
				},
				cli.StringSliceFlag{
					Name:  "blacklist, b",
					Value: &cli.StringSlice{},
					Usage: "blacklist adapters whose names contain this value",
				},
				cli.BoolFlag{
					Name:  "no-timestamps",
					Usage: "disable gpu timestamp queries",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			},
			Action: cmd.RenderFrame,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
