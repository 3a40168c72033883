package tracer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/achilleasa/polaris-bsp/asset/scene"
)

var (
	errInjected = errors.New("injected submission failure")
	errReadback = errors.New("readback lost")
	errCopy     = errors.New("copy rejected")
)

// A Device that records submitted commands instead of executing them.
type fakeDevice struct {
	sync.Mutex

	timestamps bool

	// If set, ReadTimestamps and Wait block until it is closed.
	gate chan struct{}

	// Indices of draw submissions that fail.
	failDraws map[int]bool

	// Indices of timing readbacks and image copies that fail.
	failReadbacks map[int]bool
	failCopies    map[int]bool

	ops         []string
	uniforms    [][]byte
	jitters     [][]byte
	draws       int
	readbacks   int
	copies      int
	inFlight    int
	maxInFlight int
	tick        uint64
}

func newFakeDevice(timestamps bool) *fakeDevice {
	return &fakeDevice{
		timestamps:    timestamps,
		failDraws:     make(map[int]bool),
		failReadbacks: make(map[int]bool),
		failCopies:    make(map[int]bool),
	}
}

func (d *fakeDevice) Name() string { return "fake device" }

func (d *fakeDevice) SupportsTimestamps() bool { return d.timestamps }

func (d *fakeDevice) WriteBuffer(slot uint32, data []byte) error {
	d.Lock()
	defer d.Unlock()

	buf := append([]byte(nil), data...)
	switch slot {
	case scene.UniformSlot:
		d.uniforms = append(d.uniforms, buf)
	case scene.JitterSlot:
		d.jitters = append(d.jitters, buf)
	default:
		return fmt.Errorf("unexpected per-frame write to slot %d", slot)
	}
	return nil
}

func (d *fakeDevice) NewEncoder() (Encoder, error) {
	return &fakeEncoder{dev: d}, nil
}

func (d *fakeDevice) await(ctx context.Context) error {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.Lock()
	defer d.Unlock()
	if d.inFlight > 0 {
		d.inFlight--
	}
	index := d.readbacks
	d.readbacks++
	if d.failReadbacks[index] {
		return errReadback
	}
	return nil
}

func (d *fakeDevice) ReadTimestamps(ctx context.Context) (uint64, uint64, error) {
	if err := d.await(ctx); err != nil {
		return 0, 0, err
	}
	d.Lock()
	defer d.Unlock()
	d.tick += 10000
	return d.tick, d.tick + 1500, nil
}

func (d *fakeDevice) Wait(ctx context.Context) error {
	return d.await(ctx)
}

// Frame counters of all submitted uniform blocks.
func (d *fakeDevice) frames() []uint32 {
	d.Lock()
	defer d.Unlock()
	out := make([]uint32, len(d.uniforms))
	for i, u := range d.uniforms {
		out[i] = binary.LittleEndian.Uint32(u[12:])
	}
	return out
}

func (d *fakeDevice) copyCount() int {
	d.Lock()
	defer d.Unlock()
	return d.copies
}

func (d *fakeDevice) opLog() []string {
	d.Lock()
	defer d.Unlock()
	return append([]string(nil), d.ops...)
}

type fakeEncoder struct {
	dev  *fakeDevice
	ops  []string
	draw bool
}

func (e *fakeEncoder) WriteTimestamp(index uint32) error {
	e.ops = append(e.ops, fmt.Sprintf("timestamp %d", index))
	return nil
}

func (e *fakeEncoder) ResolveTimestamps() error {
	e.ops = append(e.ops, "resolve")
	return nil
}

func (e *fakeEncoder) DrawFrame(target Image) error {
	e.draw = true
	e.ops = append(e.ops, "draw "+target.String())
	return nil
}

func (e *fakeEncoder) CopyImage(src, dst Image) error {
	d := e.dev
	d.Lock()
	fail := d.failCopies[d.copies]
	d.copies++
	d.Unlock()
	if fail {
		return errCopy
	}
	e.ops = append(e.ops, fmt.Sprintf("copy %s -> %s", src, dst))
	return nil
}

func (e *fakeEncoder) Submit() error {
	d := e.dev
	d.Lock()
	defer d.Unlock()

	if e.draw {
		index := d.draws
		d.draws++
		if d.failDraws[index] {
			return errInjected
		}
		d.inFlight++
		if d.inFlight > d.maxInFlight {
			d.maxInFlight = d.inFlight
		}
	}
	d.ops = append(d.ops, e.ops...)
	d.ops = append(d.ops, "submit")
	return nil
}

func (e *fakeEncoder) Release() {}
