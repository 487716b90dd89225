package jensen

import "errors"

// Session errors. Controllers pre-check capabilities and fail fast with the
// unsupported-* errors before any bytes reach the wire; dispatch failures
// (timeout, invalid response) propagate unchanged - retry policy belongs to
// the caller.
var (
	// ErrNotConnected indicates no active device session.
	ErrNotConnected = errors.New("not connected")

	// ErrCommandTimeout indicates no matching response arrived within the
	// deadline.
	ErrCommandTimeout = errors.New("command timeout")

	// ErrInvalidResponse indicates a malformed or too-short body for the
	// expected operation.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrUnsupportedDevice indicates the connected model does not have the
	// hardware for an operation.
	ErrUnsupportedDevice = errors.New("unsupported device")

	// ErrUnsupportedFeature indicates the operation exists on this model
	// but is gated off, e.g. by a firmware version floor.
	ErrUnsupportedFeature = errors.New("unsupported feature")

	// ErrCommandFailed indicates the device returned an explicit non-zero
	// status byte.
	ErrCommandFailed = errors.New("command failed")
)
