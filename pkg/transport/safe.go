package transport

import (
	"fmt"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// readOnlyCommands is the static allow-list enforced by SafeTransport.
// Only commands that cannot modify device state are present; note
// GetFileBlock (partial transfer) is allowed while TransferFile is not.
var readOnlyCommands = map[wire.CommandID]struct{}{
	wire.CmdGetDeviceInfo:          {},
	wire.CmdGetDeviceTime:          {},
	wire.CmdGetFileList:            {},
	wire.CmdGetFileCount:           {},
	wire.CmdGetSettings:            {},
	wire.CmdGetFileBlock:           {},
	wire.CmdGetCardInfo:            {},
	wire.CmdGetRecordingFile:       {},
	wire.CmdGetBatteryStatus:       {},
	wire.CmdGetUSBIdleTimeout:      {},
	wire.CmdBluetoothScanResults:   {},
	wire.CmdBluetoothGetPairedList: {},
	wire.CmdBluetoothGetStatus:     {},
}

// IsReadOnlyCommand reports whether the command is in the safe-mode
// allow-list.
func IsReadOnlyCommand(id wire.CommandID) bool {
	_, ok := readOnlyCommands[id]
	return ok
}

// SafeTransport decorates a Transport with a read-only command allow-list.
// Every outgoing packet's command ID is inspected at its fixed offset;
// anything outside the allow-list - including unrecognized IDs - is
// rejected before it reaches the wire. Packets too short to carry a
// command ID are passed through unmodified and left to the underlying
// transport's own validation.
//
// The layers above need no knowledge of the policy: a blocked command
// surfaces as an ordinary send error wrapping ErrCommandBlocked.
type SafeTransport struct {
	inner Transport
}

// NewSafeTransport wraps a transport in the read-only policy.
func NewSafeTransport(inner Transport) *SafeTransport {
	return &SafeTransport{inner: inner}
}

// Connect opens the underlying transport.
func (s *SafeTransport) Connect() error {
	return s.inner.Connect()
}

// Send forwards the packet only if its command ID is allow-listed.
func (s *SafeTransport) Send(data []byte) error {
	id, ok := wire.PeekCommandID(data)
	if ok && !IsReadOnlyCommand(id) {
		return fmt.Errorf("%w: %s", ErrCommandBlocked, id)
	}
	return s.inner.Send(data)
}

// Receive reads from the underlying transport.
func (s *SafeTransport) Receive(timeout time.Duration) ([]byte, error) {
	return s.inner.Receive(timeout)
}

// Disconnect closes the underlying transport.
func (s *SafeTransport) Disconnect() error {
	return s.inner.Disconnect()
}

// Compile-time interface satisfaction check.
var _ Transport = (*SafeTransport)(nil)
