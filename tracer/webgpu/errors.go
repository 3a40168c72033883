package webgpu

import "errors"

var (
	ErrNoAdapter      = errors.New("webgpu: no suitable adapter found")
	ErrEmptyShader    = errors.New("webgpu: shader source is empty")
	ErrNoTimestamps   = errors.New("webgpu: timestamp queries are not enabled on this device")
	ErrMapFailed      = errors.New("webgpu: could not map readback buffer")
	ErrUnknownSlot    = errors.New("webgpu: no buffer bound to slot")
	ErrBufferOverflow = errors.New("webgpu: write exceeds buffer size")
)
