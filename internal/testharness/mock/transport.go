// Package mock provides a scripted in-memory HiDock transport for testing.
// Command handlers are registered per command ID; the transport decodes
// outgoing packets, invokes the handler, and queues whatever the handler
// returns as incoming reads, optionally split into small chunks to
// exercise streaming reassembly.
package mock

import (
	"sync"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/transport"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// Handler reacts to one decoded command and returns the raw byte runs the
// device sends back, in order. Each run is queued as its own read unless a
// chunk size is set.
type Handler func(cmd *wire.Message) [][]byte

// Transport is a scripted device. The zero value is not usable; call New.
type Transport struct {
	mu        sync.Mutex
	connected bool
	handlers  map[wire.CommandID]Handler
	queue     [][]byte
	sent      []wire.Message
	rawWrites [][]byte
	chunkSize int
	notify    chan struct{}

	rawAckAfter int
	rawAckData  []byte

	// ConnectErr, SendErr, and ReceiveErr force the corresponding
	// operation to fail when non-nil.
	ConnectErr error
	SendErr    error
	ReceiveErr error
}

var _ transport.Transport = (*Transport)(nil)

// New creates an unconnected scripted transport.
func New() *Transport {
	return &Transport{
		handlers: make(map[wire.CommandID]Handler),
		notify:   make(chan struct{}, 1),
	}
}

// Handle registers the handler for a command ID.
func (t *Transport) Handle(id wire.CommandID, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[id] = h
}

// SetChunkSize makes queued responses arrive in reads of at most n bytes,
// simulating USB packetization. Zero restores whole-run delivery.
func (t *Transport) SetChunkSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkSize = n
}

// RespondAfterRawWrites queues data for delivery once n raw (non-packet)
// writes have been observed. Scripts the final acknowledgement of a
// chunked upload.
func (t *Transport) RespondAfterRawWrites(n int, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rawAckAfter = n
	t.rawAckData = data
}

// QueueRead queues raw bytes for delivery ahead of any handler output.
func (t *Transport) QueueRead(data []byte) {
	t.mu.Lock()
	t.enqueueLocked(data)
	t.mu.Unlock()
}

// Sent returns the commands decoded from Send calls, in order.
func (t *Transport) Sent() []wire.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wire.Message, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentIDs returns just the command IDs of Sent, for compact assertions.
func (t *Transport) SentIDs() []wire.CommandID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]wire.CommandID, len(t.sent))
	for i, m := range t.sent {
		ids[i] = m.ID
	}
	return ids
}

// RawWrites returns Send payloads that were not whole command packets,
// i.e. the raw chunks of an upload.
func (t *Transport) RawWrites() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.rawWrites))
	copy(out, t.rawWrites)
	return out
}

// Connected reports the transport state.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Connect implements transport.Transport.
func (t *Transport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ConnectErr != nil {
		return t.ConnectErr
	}
	t.connected = true
	return nil
}

// Disconnect implements transport.Transport.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

// Send decodes the outgoing bytes. A whole command packet is recorded and
// dispatched to its handler; anything else (a raw upload chunk) is
// recorded as a raw write.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return transport.ErrNotConnected
	}
	if t.SendErr != nil {
		return t.SendErr
	}

	d := wire.NewDecoder()
	msgs := d.Feed(append([]byte(nil), data...))
	if len(msgs) != 1 || d.Pending() != 0 {
		t.rawWrites = append(t.rawWrites, append([]byte(nil), data...))
		if t.rawAckData != nil && len(t.rawWrites) >= t.rawAckAfter {
			t.enqueueLocked(t.rawAckData)
			t.rawAckData = nil
		}
		return nil
	}

	cmd := msgs[0]
	t.sent = append(t.sent, *cmd)

	if h, ok := t.handlers[cmd.ID]; ok {
		for _, run := range h(cmd) {
			t.enqueueLocked(run)
		}
	}
	return nil
}

// Receive implements transport.Transport. It blocks until data is queued
// or the timeout elapses.
func (t *Transport) Receive(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		t.mu.Lock()
		if !t.connected {
			t.mu.Unlock()
			return nil, transport.ErrNotConnected
		}
		if t.ReceiveErr != nil {
			err := t.ReceiveErr
			t.mu.Unlock()
			return nil, err
		}
		if len(t.queue) > 0 {
			data := t.queue[0]
			t.queue = t.queue[1:]
			t.mu.Unlock()
			return data, nil
		}
		t.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, transport.ErrTimeout
		}
		select {
		case <-t.notify:
		case <-time.After(remaining):
			return nil, transport.ErrTimeout
		}
	}
}

func (t *Transport) enqueueLocked(data []byte) {
	if t.chunkSize <= 0 {
		t.queue = append(t.queue, data)
	} else {
		for len(data) > 0 {
			n := min(t.chunkSize, len(data))
			t.queue = append(t.queue, data[:n])
			data = data[n:]
		}
	}
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// Reply builds a handler that answers every invocation with a single
// packet echoing the command's sequence number and carrying body.
func Reply(body []byte) Handler {
	return func(cmd *wire.Message) [][]byte {
		return [][]byte{Packet(cmd.ID, cmd.Sequence, body)}
	}
}

// ReplyStatus answers with the conventional single-status-byte body.
func ReplyStatus(status byte) Handler {
	return Reply([]byte{status})
}

// Silent ignores the command: no response is queued.
func Silent() Handler {
	return func(*wire.Message) [][]byte { return nil }
}

// Packet encodes one response packet. Panics on an oversized body; mock
// scripts are fixed test data.
func Packet(id wire.CommandID, seq uint32, body []byte) []byte {
	data, err := (&wire.Command{ID: id, Sequence: seq, Body: body}).Encode()
	if err != nil {
		panic(err)
	}
	return data
}
