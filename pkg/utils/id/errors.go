package id

import "errors"

var (
	// ErrInvalidNodeID is returned when the node ID is out of range.
	ErrInvalidNodeID = errors.New("node ID must be between 0 and 1023")

	// ErrClockMovedBackward is returned when the system clock moves backward too far.
	ErrClockMovedBackward = errors.New("clock moved backward")
)
