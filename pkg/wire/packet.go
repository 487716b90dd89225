package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Packet layout constants.
const (
	// SyncByte1 and SyncByte2 open every packet.
	SyncByte1 = 0x12
	SyncByte2 = 0x34

	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 12

	// CommandIDOffset is the byte offset of the command ID within a packet.
	CommandIDOffset = 2

	// MaxBodySize is the largest body the 24-bit length field can carry.
	MaxBodySize = 1<<24 - 1
)

// Packet errors.
var (
	// ErrBodyTooLarge indicates the body exceeds the 24-bit length field.
	ErrBodyTooLarge = errors.New("body too large")
)

// Command is an outgoing request: a command ID, the session sequence number
// assigned at send time, and an opaque body. It carries no identity beyond
// the call that built it.
type Command struct {
	ID       CommandID
	Sequence uint32
	Body     []byte
}

// Message is an incoming parsed unit: the device's echo of the command ID,
// the sequence field it stamped, and the response body.
type Message struct {
	ID       CommandID
	Sequence uint32
	Body     []byte
}

// NewCommand builds a command for the given ID and body.
func NewCommand(id CommandID, body []byte) *Command {
	return &Command{ID: id, Body: body}
}

// Encode serializes the command into a complete packet.
func (c *Command) Encode() ([]byte, error) {
	if len(c.Body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, len(c.Body), MaxBodySize)
	}

	buf := make([]byte, HeaderSize+len(c.Body))
	buf[0] = SyncByte1
	buf[1] = SyncByte2
	binary.BigEndian.PutUint16(buf[CommandIDOffset:], uint16(c.ID))
	binary.BigEndian.PutUint32(buf[4:], c.Sequence)
	// High byte of the length word is the checksum length; current firmware
	// never requests one, so only the low 24 bits are populated.
	binary.BigEndian.PutUint32(buf[8:], uint32(len(c.Body)))
	copy(buf[HeaderSize:], c.Body)
	return buf, nil
}

// PeekCommandID extracts the command ID from an encoded packet without
// decoding it. Returns false if the packet is too short to contain one.
func PeekCommandID(packet []byte) (CommandID, bool) {
	if len(packet) < CommandIDOffset+2 {
		return 0, false
	}
	return CommandID(binary.BigEndian.Uint16(packet[CommandIDOffset:])), true
}
