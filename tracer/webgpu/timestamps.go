package webgpu

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

const timestampBytes = 2 * 8

// A query set holding the start and end timestamps of the frame pass plus
// the buffers used to resolve them and map them to host memory.
type timestampQueries struct {
	querySet   *wgpu.QuerySet
	resolveBuf *wgpu.Buffer
	readBuf    *wgpu.Buffer
}

func newTimestampQueries(device *wgpu.Device) (*timestampQueries, error) {
	querySet, err := device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: "frame timestamps",
		Type:  wgpu.QueryTypeTimestamp,
		Count: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: could not create timestamp query set: %w", err)
	}

	tq := &timestampQueries{querySet: querySet}
	tq.resolveBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "timestamp resolve",
		Size:  timestampBytes,
		Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		tq.release()
		return nil, err
	}
	tq.readBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "timestamp readback",
		Size:  timestampBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		tq.release()
		return nil, err
	}
	return tq, nil
}

func (tq *timestampQueries) write(enc *wgpu.CommandEncoder, index uint32) error {
	if err := enc.WriteTimestamp(tq.querySet, index); err != nil {
		return fmt.Errorf("webgpu: timestamp %d: %w", index, err)
	}
	return nil
}

func (tq *timestampQueries) resolve(enc *wgpu.CommandEncoder) error {
	if err := enc.ResolveQuerySet(tq.querySet, 0, 2, tq.resolveBuf, 0); err != nil {
		return fmt.Errorf("webgpu: timestamp resolve: %w", err)
	}
	if err := enc.CopyBufferToBuffer(tq.resolveBuf, 0, tq.readBuf, 0, timestampBytes); err != nil {
		return fmt.Errorf("webgpu: timestamp copy: %w", err)
	}
	return nil
}

// Wait for the device to finish the submission that resolved the queries
// and return the raw tick values.
func (tq *timestampQueries) read(ctx context.Context, device *wgpu.Device) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	data, err := mapRead(device, tq.readBuf, timestampBytes)
	if err != nil {
		return 0, 0, err
	}
	// Ticks are taken as nanoseconds; the binding exposes no timestamp period.
	return binary.LittleEndian.Uint64(data), binary.LittleEndian.Uint64(data[8:]), nil
}

func (tq *timestampQueries) release() {
	if tq.readBuf != nil {
		tq.readBuf.Release()
	}
	if tq.resolveBuf != nil {
		tq.resolveBuf.Release()
	}
	if tq.querySet != nil {
		tq.querySet.Release()
	}
}

// Map buf for reading, block until the device services the request and
// return a copy of its first size bytes.
func mapRead(device *wgpu.Device, buf *wgpu.Buffer, size uint64) ([]byte, error) {
	var status wgpu.BufferMapAsyncStatus
	err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("%w: status %d", ErrMapFailed, status)
	}

	data := append([]byte(nil), buf.GetMappedRange(0, uint(size))...)
	if err = buf.Unmap(); err != nil {
		return nil, fmt.Errorf("%w: unmap: %w", ErrMapFailed, err)
	}
	return data, nil
}
