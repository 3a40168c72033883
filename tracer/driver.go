package tracer

import (
	"context"
	"fmt"
	"time"

	"github.com/achilleasa/polaris-bsp/asset/scene"
	"github.com/achilleasa/polaris-bsp/log"
)

// DefaultFrameCap is the number of frames accumulated by a progressive render.
const DefaultFrameCap = 250

// State is the frame driver state.
type State uint8

const (
	// No frame in flight.
	Idle State = iota

	// A frame is being encoded and submitted.
	Rendering

	// A frame was submitted and the driver waits for its timing readback.
	AwaitingTiming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case AwaitingTiming:
		return "awaiting timing"
	}
	return "unknown"
}

type Options struct {
	// Max number of frames accumulated while progressive rendering is on.
	// Defaults to DefaultFrameCap.
	FrameCap uint32

	// Keep rendering frames until the cap is reached.
	Progressive bool

	// Jitter table seed.
	Seed uint64

	// Invoked from the driver goroutine after each completed frame.
	OnFrame func(FrameStat)

	// Invoked from the driver goroutine when a frame fails.
	OnError func(error)
}

type timingEvent struct {
	generation uint64
	result     TimingResult
}

// Driver schedules frame submissions. All state is owned by the goroutine
// executing Run; the exported controls post events to it.
type Driver struct {
	logger log.Logger

	dev    Device
	state  *FrameState
	jitter *JitterTable
	accum  *Accumulator
	timing *TimingMonitor
	opts   Options

	events  chan func()
	timings chan timingEvent
	doneCh  chan struct{}

	// Owned by the Run goroutine.
	runCtx      context.Context
	status      State
	pending     bool
	discard     bool
	generation  uint64
	inFlight    uint32
	frameStart  time.Time
	stats       FrameStats
	idleWaiters []chan struct{}
}

// NewDriver creates a driver that renders fs on dev.
func NewDriver(dev Device, fs *FrameState, opts Options) (*Driver, error) {
	accum, err := NewAccumulator(AccumulationTarget, AccumulationSource)
	if err != nil {
		return nil, err
	}
	if opts.FrameCap == 0 {
		opts.FrameCap = DefaultFrameCap
	}

	return &Driver{
		logger:  log.New("driver"),
		dev:     dev,
		state:   fs,
		jitter:  NewJitterTable(opts.Seed),
		accum:   accum,
		timing:  NewTimingMonitor(dev),
		opts:    opts,
		events:  make(chan func()),
		timings: make(chan timingEvent),
		doneCh:  make(chan struct{}),
	}, nil
}

// Run processes driver events until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	d.runCtx = ctx
	defer close(d.doneCh)

	d.logger.Debugf("frame driver started on %s", d.dev.Name())
	for {
		select {
		case <-ctx.Done():
			d.logger.Debugf("frame driver stopped after %d frames", d.stats.Frames)
			return nil
		case evt := <-d.events:
			evt()
		case evt := <-d.timings:
			d.onTiming(evt)
		}
	}
}

// Done returns a channel that is closed when Run exits.
func (d *Driver) Done() <-chan struct{} {
	return d.doneCh
}

// Output returns the image holding the accumulated frames.
func (d *Driver) Output() Image {
	return d.accum.Source()
}

// Trigger requests a new frame. If a frame is already in flight the request
// is deferred until its timing result arrives.
func (d *Driver) Trigger() error {
	return d.post(d.trigger)
}

// SetParameter updates a shading parameter and restarts accumulation.
func (d *Driver) SetParameter(name string, value float32) error {
	return d.call(func() error {
		if err := d.state.SetParameter(name, value); err != nil {
			return err
		}
		d.restart()
		return nil
	})
}

// SetProgressive toggles progressive accumulation. Enabling it resumes
// rendering; if the frame cap was already reached accumulation restarts.
func (d *Driver) SetProgressive(enabled bool) error {
	return d.post(func() {
		d.opts.Progressive = enabled
		if !enabled {
			return
		}
		if d.state.Frame >= d.opts.FrameCap {
			d.state.Frame = 0
		}
		d.trigger()
	})
}

// SetBackground switches between the default and a black background.
func (d *Driver) SetBackground(black bool) error {
	return d.post(func() {
		d.state.SetBlackBackground(black)
		d.restart()
	})
}

// ResetAccumulation discards the accumulated frames and renders again.
func (d *Driver) ResetAccumulation() error {
	return d.post(d.restart)
}

// WaitIdle blocks until the driver has no frame in flight and no pending
// trigger.
func (d *Driver) WaitIdle(ctx context.Context) error {
	idleCh := make(chan struct{})
	err := d.post(func() {
		if d.status == Idle {
			close(idleCh)
			return
		}
		d.idleWaiters = append(d.idleWaiters, idleCh)
	})
	if err != nil {
		return err
	}

	select {
	case <-idleCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.doneCh:
		return ErrDriverStopped
	}
}

// Stats returns the aggregated frame statistics.
func (d *Driver) Stats() (FrameStats, error) {
	var stats FrameStats
	err := d.call(func() error {
		stats = d.stats
		return nil
	})
	return stats, err
}

// State returns the driver state and the current frame counter.
func (d *Driver) State() (State, uint32, error) {
	var (
		status State
		frame  uint32
	)
	err := d.call(func() error {
		status, frame = d.status, d.state.Frame
		return nil
	})
	return status, frame, err
}

func (d *Driver) post(evt func()) error {
	select {
	case d.events <- evt:
		return nil
	case <-d.doneCh:
		return ErrDriverStopped
	}
}

// Post evt and wait for its result.
func (d *Driver) call(evt func() error) error {
	resCh := make(chan error, 1)
	if err := d.post(func() { resCh <- evt() }); err != nil {
		return err
	}
	select {
	case err := <-resCh:
		return err
	case <-d.doneCh:
		return ErrDriverStopped
	}
}

func (d *Driver) restart() {
	d.state.Frame = 0

	// The in-flight frame was rendered with the old state.
	if d.status != Idle {
		d.discard = true
	}
	d.trigger()
}

func (d *Driver) trigger() {
	if d.status != Idle {
		d.pending = true
		return
	}
	d.renderFrame()
}

func (d *Driver) renderFrame() {
	d.pending = false
	d.discard = false
	d.status = Rendering
	d.frameStart = time.Now()

	if err := d.submitFrame(); err != nil {
		d.fail(err)
		return
	}

	d.inFlight = d.state.Frame
	d.generation++
	d.status = AwaitingTiming

	resCh := d.timing.Result(d.runCtx)
	go func(generation uint64) {
		select {
		case res := <-resCh:
			select {
			case d.timings <- timingEvent{generation: generation, result: res}:
			case <-d.doneCh:
			}
		case <-d.doneCh:
		}
	}(d.generation)
}

func (d *Driver) submitFrame() error {
	fs := d.state
	if err := d.jitter.Compute(fs.Params.SubdivisionLevel, 1/float32(fs.Height)); err != nil {
		return err
	}
	if err := d.dev.WriteBuffer(scene.JitterSlot, d.jitter.Bytes()); err != nil {
		return fmt.Errorf("jitter upload: %w", err)
	}
	if err := d.dev.WriteBuffer(scene.UniformSlot, fs.Uniforms()); err != nil {
		return fmt.Errorf("uniform upload: %w", err)
	}

	enc, err := d.dev.NewEncoder()
	if err != nil {
		return err
	}
	defer enc.Release()

	err = d.timing.Wrap(enc, func(enc Encoder) error {
		return enc.DrawFrame(d.accum.Target())
	})
	if err != nil {
		return err
	}
	return enc.Submit()
}

func (d *Driver) onTiming(evt timingEvent) {
	if evt.generation != d.generation || d.status != AwaitingTiming {
		d.logger.Debugf("dropping stale timing result for generation %d", evt.generation)
		return
	}
	if evt.result.Err != nil {
		d.fail(evt.result.Err)
		return
	}

	// The frame only counts once the device has retired it and its
	// output has been copied into the history image.
	if d.discard {
		d.logger.Debugf("discarding frame %d rendered before a reset", d.inFlight)
	} else {
		if _, err := d.accum.Advance(d.dev); err != nil {
			d.fail(err)
			return
		}
		d.state.Frame++
	}

	stat := FrameStat{
		Frame:    d.inFlight,
		GPUTime:  evt.result.GPUTime,
		WallTime: time.Since(d.frameStart),
	}
	d.stats.record(stat)
	if d.opts.OnFrame != nil {
		d.opts.OnFrame(stat)
	}

	switch {
	case d.pending:
		d.renderFrame()
	case d.opts.Progressive && d.state.Frame < d.opts.FrameCap:
		d.renderFrame()
	default:
		d.logger.Debugf("idle after frame %d", stat.Frame)
		d.setIdle()
	}
}

func (d *Driver) fail(cause error) {
	err := fmt.Errorf("%w: %w", ErrSubmission, cause)
	d.stats.Failures++
	d.logger.Errorf("%s", err)
	if d.opts.OnError != nil {
		d.opts.OnError(err)
	}
	d.pending = false
	d.discard = false
	d.setIdle()
}

func (d *Driver) setIdle() {
	d.status = Idle
	for _, idleCh := range d.idleWaiters {
		close(idleCh)
	}
	d.idleWaiters = nil
}
