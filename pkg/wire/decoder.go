package wire

import (
	"bytes"
	"encoding/binary"
)

// Decoder reassembles complete messages from an accumulating byte stream.
// Feed it whatever a transport read returns; it retains incomplete trailing
// bytes internally and yields messages as soon as they are whole.
//
// Decoder never fails on partial input. Bytes that cannot open a valid
// header are discarded until the next sync pair, which resynchronizes the
// stream after a device reset or a torn read.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// sync is the two-byte packet prologue.
var sync = []byte{SyncByte1, SyncByte2}

// Feed appends data to the internal buffer and extracts every complete
// message now present. It returns the messages in stream order; the slice
// is empty (never nil-pointer panics, never an error) when no complete
// message is available yet.
func (d *Decoder) Feed(data []byte) []*Message {
	d.buf = append(d.buf, data...)

	var msgs []*Message
	for {
		msg, ok := d.next()
		if !ok {
			break
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// next extracts one message from the front of the buffer, resynchronizing
// past leading garbage. Returns false when the buffer holds no complete
// message.
func (d *Decoder) next() (*Message, bool) {
	// Resync: drop everything before the first sync pair. A trailing lone
	// 0x12 is kept in case its partner arrives in the next read.
	if idx := bytes.Index(d.buf, sync); idx > 0 {
		d.buf = d.buf[idx:]
	} else if idx < 0 {
		if len(d.buf) > 0 && d.buf[len(d.buf)-1] == SyncByte1 {
			d.buf = d.buf[len(d.buf)-1:]
		} else {
			d.buf = d.buf[:0]
		}
		return nil, false
	}

	if len(d.buf) < HeaderSize {
		return nil, false
	}

	id := CommandID(binary.BigEndian.Uint16(d.buf[CommandIDOffset:]))
	seq := binary.BigEndian.Uint32(d.buf[4:])
	lengthWord := binary.BigEndian.Uint32(d.buf[8:])
	bodyLen := int(lengthWord & MaxBodySize)
	checksumLen := int(lengthWord >> 24)

	total := HeaderSize + bodyLen + checksumLen
	if len(d.buf) < total {
		return nil, false
	}

	body := make([]byte, bodyLen)
	copy(body, d.buf[HeaderSize:HeaderSize+bodyLen])
	// The checksum trailer is unused by current firmware; skip it.
	d.buf = d.buf[total:]

	return &Message{ID: id, Sequence: seq, Body: body}, true
}

// Pending returns the number of buffered bytes not yet forming a complete
// message.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Reset discards all buffered bytes. Call when a connection is (re)opened
// so stale fragments from a previous session cannot corrupt the stream.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}
