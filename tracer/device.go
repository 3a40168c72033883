package tracer

import "context"

// Image identifies one of the two accumulation images owned by a device.
type Image uint8

const (
	// Color attachment written by the frame pass.
	AccumulationTarget Image = iota

	// Sampled by the frame pass as the accumulated history.
	AccumulationSource
)

func (img Image) String() string {
	switch img {
	case AccumulationTarget:
		return "accumulation target"
	case AccumulationSource:
		return "accumulation source"
	}
	return "unknown image"
}

// Device is implemented by rendering backends. All methods are invoked from
// the frame driver goroutine except ReadTimestamps and Wait which are invoked
// from the goroutine awaiting the in-flight frame.
type Device interface {
	// Name returns a human readable device description.
	Name() string

	// WriteBuffer enqueues a write to the per-frame buffer bound at slot.
	// The write is visible to the next submission.
	WriteBuffer(slot uint32, data []byte) error

	// NewEncoder starts recording a command submission.
	NewEncoder() (Encoder, error)

	// SupportsTimestamps returns true if the device can time submissions.
	SupportsTimestamps() bool

	// ReadTimestamps blocks until the last submission that resolved
	// timestamps retires and returns the start and end ticks in nanoseconds.
	ReadTimestamps(ctx context.Context) (start, end uint64, err error)

	// Wait blocks until all submitted work has completed.
	Wait(ctx context.Context) error
}

// Encoder records commands for a single submission.
type Encoder interface {
	// WriteTimestamp records timestamp query index (0 or 1).
	WriteTimestamp(index uint32) error

	// ResolveTimestamps copies the recorded timestamps into host readable
	// memory once the submission retires.
	ResolveTimestamps() error

	// DrawFrame records the full screen tracing pass rendering into target
	// while sampling the other accumulation image.
	DrawFrame(target Image) error

	// CopyImage records a full copy of src into dst.
	CopyImage(src, dst Image) error

	// Submit finishes recording and submits the commands to the device queue.
	Submit() error

	// Release frees encoder resources. It is safe to call after Submit.
	Release()
}
