package speech

import "errors"

// Custom error types for better error discrimination
var (
	// ErrFormatMismatch is returned when concatenating buffers with
	// different audio formats.
	ErrFormatMismatch = errors.New("speech buffers have mismatched audio formats")

	// ErrBufferFinal is returned when writing to a finalized buffer.
	ErrBufferFinal = errors.New("speech buffer is already final")

	// ErrPaused is returned when a recording command arrives while the
	// module is paused.
	ErrPaused = errors.New("audio module is paused")

	// ErrDeviceUnavailable is returned when an audio device cannot be
	// opened or started.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrDeviceClosed is returned by device reads after the device has
	// been closed.
	ErrDeviceClosed = errors.New("audio device is closed")
)
