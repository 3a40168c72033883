package tracer

import "errors"

var (
	// Startup failures abort initialization before any frame is rendered.
	ErrStartup = errors.New("tracer: startup failed")

	// Reported once when the device cannot time submissions; frames then
	// report a zero GPU time.
	ErrTimingUnavailable = errors.New("tracer: device does not support timestamp queries")

	// A frame submission or its readback failed. The driver returns to
	// idle and waits for the next trigger.
	ErrSubmission = errors.New("tracer: frame submission failed")

	ErrImageAlias       = errors.New("tracer: accumulation images must be distinct")
	ErrUnknownParameter = errors.New("tracer: unknown parameter")
	ErrInvalidParameter = errors.New("tracer: parameter value out of range")
	ErrDriverStopped    = errors.New("tracer: frame driver is not running")
)
