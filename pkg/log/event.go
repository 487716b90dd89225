package log

import "time"

// Event represents a protocol trace event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates packet flow relative to the host.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Model is the hardware model name (populated once identified).
	Model string `cbor:"6,keyasint,omitempty"`

	// Serial is the device serial number (populated after connect).
	Serial string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Packet      *PacketEvent      `cbor:"8,keyasint,omitempty"`  // Transport layer
	Command     *CommandEvent     `cbor:"9,keyasint,omitempty"`  // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Session state
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of packet flow.
type Direction uint8

const (
	// DirectionIn indicates traffic from the device to the host.
	DirectionIn Direction = 0
	// DirectionOut indicates traffic from the host to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the raw USB byte layer.
	LayerTransport Layer = 0
	// LayerWire is the packet codec layer (decoded headers).
	LayerWire Layer = 1
	// LayerSession is the dispatch/controller layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand indicates a command or response packet.
	CategoryCommand Category = 0
	// CategoryKeepAlive indicates keep-alive probe traffic.
	CategoryKeepAlive Category = 1
	// CategoryState indicates a session state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryKeepAlive:
		return "KEEPALIVE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxPacketEventData is the largest packet prefix stored in a trace event.
// Bulk transfer packets are truncated to keep trace files bounded.
const MaxPacketEventData = 4096

// PacketEvent captures raw bytes at the transport layer.
type PacketEvent struct {
	// Size is the full packet size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw packet bytes (may be truncated).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewPacketEvent builds a PacketEvent from a full packet, truncating the
// stored bytes at MaxPacketEventData.
func NewPacketEvent(packet []byte) *PacketEvent {
	ev := &PacketEvent{Size: len(packet), Data: packet}
	if len(packet) > MaxPacketEventData {
		ev.Data = packet[:MaxPacketEventData]
		ev.Truncated = true
	}
	return ev
}

// CommandEvent captures a decoded packet header at the wire layer.
type CommandEvent struct {
	// CommandID is the numeric command identifier.
	CommandID uint16 `cbor:"1,keyasint"`

	// CommandName is the symbolic name ("GET_FILE_LIST", ...).
	CommandName string `cbor:"2,keyasint,omitempty"`

	// Sequence is the packet sequence number.
	Sequence uint32 `cbor:"3,keyasint"`

	// BodySize is the body length in bytes.
	BodySize int `cbor:"4,keyasint"`

	// Matched is true for responses that satisfied the pending request,
	// false for discarded stale/unsolicited responses.
	Matched *bool `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures session lifecycle events.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
