package renderer

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/achilleasa/polaris-bsp/asset/scene"
	"github.com/achilleasa/polaris-bsp/log"
	"github.com/achilleasa/polaris-bsp/tracer"
	"github.com/achilleasa/polaris-bsp/tracer/webgpu"
)

type Renderer interface {
	// Render frames until the driver goes idle and write the result.
	Render(ctx context.Context) error

	// Shutdown renderer and the attached device.
	Close()

	// Get render statistics.
	Stats() FrameStats
}

// Backend is a tracer.Device that can read back the accumulation images.
type Backend interface {
	tracer.Device

	ReadImage(img tracer.Image, gamma float32) (*image.NRGBA, error)
	Close()
}

// A renderer that accumulates frames off-screen and saves the result.
type headlessRenderer struct {
	logger log.Logger

	dev   Backend
	state *tracer.FrameState
	opts  Options
	stats FrameStats
}

// New creates a headless renderer for sc on a WebGPU device.
func New(sc *scene.Scene, opts Options) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return nil, ErrInvalidFrame
	}

	dev, err := webgpu.New(sc, webgpu.Options{
		Width:               opts.FrameW,
		Height:              opts.FrameH,
		BlacklistedAdapters: opts.BlackListedDevices,
		DisableTimestamps:   opts.DisableTimestamps,
	})
	if err != nil {
		return nil, err
	}

	r, err := NewHeadless(sc, dev, opts)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return r, nil
}

// NewHeadless creates a renderer for sc on an already initialized backend
// that holds the scene buffers.
func NewHeadless(sc *scene.Scene, dev Backend, opts Options) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return nil, ErrInvalidFrame
	}

	state := tracer.NewFrameState(int(opts.FrameW), int(opts.FrameH), sc.LightIndices)
	if err := opts.apply(state); err != nil {
		return nil, err
	}

	return &headlessRenderer{
		logger: log.New("renderer"),
		dev:    dev,
		state:  state,
		opts:   opts,
		stats:  FrameStats{Device: dev.Name()},
	}, nil
}

func (r *headlessRenderer) Render(ctx context.Context) error {
	start := time.Now()

	var failure error
	driver, err := tracer.NewDriver(r.dev, r.state, tracer.Options{
		FrameCap:    r.opts.FrameCap,
		Progressive: r.opts.Progressive,
		Seed:        r.opts.Seed,
		OnFrame: func(stat tracer.FrameStat) {
			r.logger.Debugf("frame %d: gpu %s, wall %s", stat.Frame, stat.GPUTime, stat.WallTime)
		},
		OnError: func(err error) {
			failure = err
		},
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-driver.Done()
	}()
	go driver.Run(runCtx)

	if err = driver.Trigger(); err != nil {
		return err
	}
	if err = driver.WaitIdle(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		return err
	}

	frameStats, err := driver.Stats()
	if err != nil {
		return err
	}
	_, accumulated, err := driver.State()
	if err != nil {
		return err
	}
	r.stats.Frames = frameStats
	r.stats.Accumulated = accumulated
	r.stats.RenderTime = time.Since(start)

	// OnError runs on the driver goroutine; Stats above synchronizes with it.
	if failure != nil {
		return failure
	}

	r.logger.Noticef("accumulated %d frames in %s", accumulated, r.stats.RenderTime)
	if r.opts.OutputFile == "" {
		return nil
	}
	return r.writeFrame(driver.Output(), r.opts.OutputFile)
}

func (r *headlessRenderer) writeFrame(src tracer.Image, filename string) error {
	img, err := r.dev.ReadImage(src, r.state.Params.Gamma)
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, img); err != nil {
		return err
	}
	r.logger.Noticef("wrote frame to %s", filename)
	return nil
}

func (r *headlessRenderer) Close() {
	if r.dev != nil {
		r.dev.Close()
		r.dev = nil
	}
}

func (r *headlessRenderer) Stats() FrameStats {
	return r.stats
}
