package tracer

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func startDriver(t *testing.T, dev Device, opts Options) *Driver {
	t.Helper()

	drv, err := NewDriver(dev, NewFrameState(64, 32, nil), opts)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go drv.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-drv.Done()
	})
	return drv
}

func waitIdle(t *testing.T, drv *Driver) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := drv.WaitIdle(ctx); err != nil {
		t.Fatalf("expected driver to become idle; got %v", err)
	}
}

func TestDriverStopsAtFrameCap(t *testing.T) {
	dev := newFakeDevice(true)
	var (
		mu     sync.Mutex
		frames []FrameStat
	)
	drv := startDriver(t, dev, Options{
		Progressive: true,
		OnFrame: func(stat FrameStat) {
			mu.Lock()
			frames = append(frames, stat)
			mu.Unlock()
		},
	})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	submitted := dev.frames()
	if len(submitted) != DefaultFrameCap {
		t.Fatalf("expected %d frames; got %d", DefaultFrameCap, len(submitted))
	}
	for i, frame := range submitted {
		if frame != uint32(i) {
			t.Fatalf("expected submission %d to carry frame %d; got %d", i, i, frame)
		}
	}

	status, counter, err := drv.State()
	if err != nil {
		t.Fatal(err)
	}
	if status != Idle || counter != DefaultFrameCap {
		t.Fatalf("expected idle driver at frame %d; got %s at frame %d", DefaultFrameCap, status, counter)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != DefaultFrameCap || frames[len(frames)-1].Frame != DefaultFrameCap-1 {
		t.Fatalf("expected %d frame callbacks ending at frame %d; got %d", DefaultFrameCap, DefaultFrameCap-1, len(frames))
	}
	if frames[0].GPUTime != 1500 {
		t.Fatalf("expected GPU time of 1.5us; got %s", frames[0].GPUTime)
	}

	stats, err := drv.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frames != DefaultFrameCap || stats.AvgGPUTime() != 1500 {
		t.Fatalf("expected aggregated stats for %d frames; got %+v", DefaultFrameCap, stats)
	}
	if !strings.Contains(stats.Table(), "GPU avg") {
		t.Fatalf("expected stats table header; got:\n%s", stats.Table())
	}

	// Triggering at the cap renders a single extra frame.
	if err = drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)
	if got := len(dev.frames()); got != DefaultFrameCap+1 {
		t.Fatalf("expected %d frames; got %d", DefaultFrameCap+1, got)
	}
}

func TestDriverFrameCommandOrder(t *testing.T) {
	dev := newFakeDevice(true)
	drv := startDriver(t, dev, Options{})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	expOps := []string{
		"timestamp 0",
		"draw accumulation target",
		"timestamp 1",
		"resolve",
		"submit",
		"copy accumulation target -> accumulation source",
		"submit",
	}
	ops := dev.opLog()
	if strings.Join(ops, "\n") != strings.Join(expOps, "\n") {
		t.Fatalf("expected ops:\n%s\ngot:\n%s", strings.Join(expOps, "\n"), strings.Join(ops, "\n"))
	}
	if len(dev.jitters) != 1 || len(dev.jitters[0]) != JitterTableSize {
		t.Fatalf("expected a single %d byte jitter upload; got %d", JitterTableSize, len(dev.jitters))
	}
}

func TestDriverBackgroundToggleResetsAccumulation(t *testing.T) {
	dev := newFakeDevice(true)
	drv := startDriver(t, dev, Options{Progressive: true, FrameCap: 5})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	if err := drv.SetBackground(true); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	frames := dev.frames()
	if len(frames) != 10 {
		t.Fatalf("expected 10 frames; got %d", len(frames))
	}
	if frames[5] != 0 {
		t.Fatalf("expected first frame after the toggle to carry frame 0; got %d", frames[5])
	}

	// Background is stored in the 8th vec4 of the uniform block.
	u := dev.uniforms[5]
	for i := 0; i < 3; i++ {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(u[112+4*i:])); v != 0 {
			t.Fatalf("expected black background; got component %d = %f", i, v)
		}
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(dev.uniforms[0][116:])); v != DefaultBackground[1] {
		t.Fatalf("expected default background before the toggle; got %f", v)
	}
}

func TestDriverCoalescesPendingTriggers(t *testing.T) {
	dev := newFakeDevice(true)
	dev.gate = make(chan struct{})
	drv := startDriver(t, dev, Options{})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := drv.Trigger(); err != nil {
			t.Fatal(err)
		}
	}
	if err := drv.SetParameter(ParamGamma, 2.2); err != nil {
		t.Fatal(err)
	}

	status, _, err := drv.State()
	if err != nil {
		t.Fatal(err)
	}
	if status != AwaitingTiming {
		t.Fatalf("expected driver to await timing; got %s", status)
	}

	close(dev.gate)
	waitIdle(t, drv)

	frames := dev.frames()
	if len(frames) != 2 {
		t.Fatalf("expected the pending triggers to coalesce into 1 frame; got %d frames", len(frames))
	}
	if frames[1] != 0 {
		t.Fatalf("expected the parameter change to reset the frame counter; got %d", frames[1])
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(dev.uniforms[1][8:])); v != 2.2 {
		t.Fatalf("expected gamma 2.2 in the second frame; got %f", v)
	}
	if dev.maxInFlight != 1 {
		t.Fatalf("expected at most 1 frame in flight; got %d", dev.maxInFlight)
	}

	// The frame rendered before the reset is not copied into the history.
	if got := dev.copyCount(); got != 1 {
		t.Fatalf("expected a single accumulation copy; got %d", got)
	}
	if _, counter, _ := drv.State(); counter != 1 {
		t.Fatalf("expected frame counter 1; got %d", counter)
	}
}

func TestDriverRejectsInvalidParameters(t *testing.T) {
	dev := newFakeDevice(true)
	drv := startDriver(t, dev, Options{})

	if err := drv.SetParameter("exposure", 1); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter; got %v", err)
	}
	if err := drv.SetParameter(ParamSubdivisionLevel, 11); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter; got %v", err)
	}
	waitIdle(t, drv)
	if got := len(dev.frames()); got != 0 {
		t.Fatalf("expected rejected parameters not to render; got %d frames", got)
	}
}

func TestDriverSubmissionFailure(t *testing.T) {
	dev := newFakeDevice(true)
	dev.failDraws[0] = true

	errCh := make(chan error, 1)
	drv := startDriver(t, dev, Options{
		Progressive: true,
		FrameCap:    3,
		OnError:     func(err error) { errCh <- err },
	})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSubmission) || !errors.Is(err, errInjected) {
			t.Fatalf("expected a wrapped submission error; got %v", err)
		}
	default:
		t.Fatal("expected OnError to be invoked")
	}

	for _, op := range dev.opLog() {
		if strings.HasPrefix(op, "copy") {
			t.Fatal("expected accumulation copy to be skipped for failed submissions")
		}
	}

	status, counter, err := drv.State()
	if err != nil {
		t.Fatal(err)
	}
	if status != Idle || counter != 0 {
		t.Fatalf("expected idle driver at frame 0; got %s at frame %d", status, counter)
	}

	// The next trigger recovers.
	if err = drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	stats, err := drv.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frames != 3 || stats.Failures != 1 {
		t.Fatalf("expected 3 frames and 1 failure; got %d and %d", stats.Frames, stats.Failures)
	}
}

func TestDriverTimingReadbackFailure(t *testing.T) {
	dev := newFakeDevice(true)
	dev.failReadbacks[0] = true

	errCh := make(chan error, 1)
	drv := startDriver(t, dev, Options{
		Progressive: true,
		FrameCap:    3,
		OnError:     func(err error) { errCh <- err },
	})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSubmission) || !errors.Is(err, errReadback) {
			t.Fatalf("expected a wrapped readback error; got %v", err)
		}
	default:
		t.Fatal("expected OnError to be invoked")
	}

	if got := dev.copyCount(); got != 0 {
		t.Fatalf("expected no accumulation copy for a failed frame; got %d", got)
	}
	status, counter, err := drv.State()
	if err != nil {
		t.Fatal(err)
	}
	if status != Idle || counter != 0 {
		t.Fatalf("expected idle driver at frame 0; got %s at frame %d", status, counter)
	}

	if err = drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	if got := dev.frames(); len(got) != 4 || got[1] != 0 || got[3] != 2 {
		t.Fatalf("expected the failed frame to be rendered again; got %v", got)
	}
	stats, err := drv.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frames != 3 || stats.Failures != 1 {
		t.Fatalf("expected 3 frames and 1 failure; got %d and %d", stats.Frames, stats.Failures)
	}
}

func TestDriverAccumulationCopyFailure(t *testing.T) {
	dev := newFakeDevice(true)
	dev.failCopies[1] = true

	errCh := make(chan error, 1)
	drv := startDriver(t, dev, Options{
		Progressive: true,
		FrameCap:    3,
		OnError:     func(err error) { errCh <- err },
	})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSubmission) || !errors.Is(err, errCopy) {
			t.Fatalf("expected a wrapped copy error; got %v", err)
		}
	default:
		t.Fatal("expected OnError to be invoked")
	}

	status, counter, err := drv.State()
	if err != nil {
		t.Fatal(err)
	}
	if status != Idle || counter != 1 {
		t.Fatalf("expected idle driver at frame 1; got %s at frame %d", status, counter)
	}

	if err = drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)

	if got := dev.frames(); len(got) != 4 || got[2] != 1 || got[3] != 2 {
		t.Fatalf("expected frame 1 to be rendered again; got %v", got)
	}
	if _, counter, _ = drv.State(); counter != 3 {
		t.Fatalf("expected frame counter 3; got %d", counter)
	}
}

func TestDriverSetProgressive(t *testing.T) {
	dev := newFakeDevice(false)
	drv := startDriver(t, dev, Options{FrameCap: 4})

	if err := drv.Trigger(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)
	if got := len(dev.frames()); got != 1 {
		t.Fatalf("expected a single frame without progressive mode; got %d", got)
	}

	if err := drv.SetProgressive(true); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)
	if got := dev.frames(); len(got) != 4 || got[3] != 3 {
		t.Fatalf("expected progressive mode to resume up to the cap; got %v", got)
	}

	// Re-enabling at the cap restarts accumulation.
	if err := drv.SetProgressive(true); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, drv)
	if got := dev.frames(); len(got) != 8 || got[4] != 0 {
		t.Fatalf("expected accumulation to restart from frame 0; got %v", got)
	}

	stats, err := drv.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.MaxGPUTime != 0 {
		t.Fatalf("expected zero GPU times without timestamp support; got %s", stats.MaxGPUTime)
	}
	for _, op := range dev.opLog() {
		if strings.HasPrefix(op, "timestamp") {
			t.Fatal("expected no timestamp commands without timestamp support")
		}
	}
}

func TestDriverStopped(t *testing.T) {
	drv, err := NewDriver(newFakeDevice(true), NewFrameState(8, 8, nil), Options{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err = drv.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if err = drv.Trigger(); err != ErrDriverStopped {
		t.Fatalf("expected ErrDriverStopped; got %v", err)
	}
	if _, err = drv.Stats(); err != ErrDriverStopped {
		t.Fatalf("expected ErrDriverStopped; got %v", err)
	}
}
