package transport

import (
	"errors"
	"time"
)

// Transport errors.
var (
	// ErrNotConnected indicates no channel is open.
	ErrNotConnected = errors.New("transport not connected")

	// ErrTimeout indicates a Receive call expired with no data.
	ErrTimeout = errors.New("receive timeout")

	// ErrCommandBlocked indicates SafeTransport rejected an outgoing command.
	ErrCommandBlocked = errors.New("command blocked by safe mode")
)

// Transport moves raw bytes to and from a device.
//
// Implementations must tolerate Disconnect at any time, including while
// another goroutine is blocked in Receive; the blocked call must return
// promptly with an error.
type Transport interface {
	// Connect establishes the channel.
	Connect() error

	// Send writes a complete packet to the device.
	Send(data []byte) error

	// Receive blocks up to timeout and returns the bytes currently
	// available. The returned slice may hold a partial packet, one packet,
	// or several packets back to back. Expiry with no data fails with
	// ErrTimeout.
	Receive(timeout time.Duration) ([]byte, error)

	// Disconnect closes the channel. Always safe to call, even when not
	// connected.
	Disconnect() error
}
