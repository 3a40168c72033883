package tracer

import (
	"context"
	"time"

	"github.com/achilleasa/polaris-bsp/log"
)

// TimingResult carries the GPU execution time of a frame pass.
type TimingResult struct {
	GPUTime time.Duration
	Err     error
}

// TimingMonitor brackets frame passes with timestamp queries and reads back
// their duration once the submission retires.
type TimingMonitor struct {
	logger    log.Logger
	dev       Device
	supported bool
}

// NewTimingMonitor creates a monitor for dev. If the device cannot time
// submissions a warning is logged and all results report a zero duration.
func NewTimingMonitor(dev Device) *TimingMonitor {
	tm := &TimingMonitor{
		logger:    log.New("timing"),
		dev:       dev,
		supported: dev.SupportsTimestamps(),
	}
	if !tm.supported {
		tm.logger.Warningf("%s (%s); reporting zero GPU times", ErrTimingUnavailable, dev.Name())
	}
	return tm
}

// Supported returns true if frame passes are timed.
func (tm *TimingMonitor) Supported() bool {
	return tm.supported
}

// Wrap records pass into enc surrounded by a start and end timestamp and
// resolves both into readable memory within the same submission.
func (tm *TimingMonitor) Wrap(enc Encoder, pass func(Encoder) error) error {
	if !tm.supported {
		return pass(enc)
	}

	if err := enc.WriteTimestamp(0); err != nil {
		return err
	}
	if err := pass(enc); err != nil {
		return err
	}
	if err := enc.WriteTimestamp(1); err != nil {
		return err
	}
	return enc.ResolveTimestamps()
}

// Result returns a channel that receives the duration of the last wrapped
// submission once the device has finished executing it.
func (tm *TimingMonitor) Result(ctx context.Context) <-chan TimingResult {
	resCh := make(chan TimingResult, 1)
	go func() {
		defer close(resCh)

		if !tm.supported {
			resCh <- TimingResult{Err: tm.dev.Wait(ctx)}
			return
		}

		start, end, err := tm.dev.ReadTimestamps(ctx)
		if err != nil {
			resCh <- TimingResult{Err: err}
			return
		}

		// Some drivers report out of order ticks for very short passes.
		var elapsed time.Duration
		if end > start {
			elapsed = time.Duration(end - start)
		}
		resCh <- TimingResult{GPUTime: elapsed}
	}()
	return resCh
}
