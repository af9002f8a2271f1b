package mqtt

import "errors"

var (
	// ErrQueueFull is returned when the publish queue cannot take a message.
	ErrQueueFull = errors.New("mqtt publish queue full")
	// ErrNotConnected is returned when publishing without a broker session.
	ErrNotConnected = errors.New("mqtt client not connected")
)
