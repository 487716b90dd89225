package wire

import (
	"bytes"
	"testing"
)

// encode is a test helper that panics on error; bodies here are always small.
func encode(t *testing.T, id CommandID, seq uint32, body []byte) []byte {
	t.Helper()
	packet, err := (&Command{ID: id, Sequence: seq, Body: body}).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return packet
}

func TestDecoderSinglePacket(t *testing.T) {
	d := NewDecoder()
	msgs := d.Feed(encode(t, CmdGetDeviceTime, 3, []byte{0x20, 0x25}))

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != CmdGetDeviceTime || msgs[0].Sequence != 3 {
		t.Errorf("message = %+v", msgs[0])
	}
	if !bytes.Equal(msgs[0].Body, []byte{0x20, 0x25}) {
		t.Errorf("body = % x", msgs[0].Body)
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d, want 0", d.Pending())
	}
}

func TestDecoderConcatenatedPackets(t *testing.T) {
	d := NewDecoder()
	stream := append(encode(t, CmdGetFileCount, 1, []byte{0, 0, 0, 5}),
		encode(t, CmdGetCardInfo, 2, nil)...)

	msgs := d.Feed(stream)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != CmdGetFileCount || msgs[1].ID != CmdGetCardInfo {
		t.Errorf("messages out of order: %v, %v", msgs[0].ID, msgs[1].ID)
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	d := NewDecoder()
	packet := encode(t, CmdDeleteFile, 9, []byte("file.hda"))

	var got []*Message
	for _, b := range packet {
		got = append(got, d.Feed([]byte{b})...)
	}

	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if string(got[0].Body) != "file.hda" {
		t.Errorf("body = %q", got[0].Body)
	}
}

func TestDecoderSplitAcrossReads(t *testing.T) {
	d := NewDecoder()
	packet := encode(t, CmdTransferFile, 4, bytes.Repeat([]byte{0xAB}, 500))

	if msgs := d.Feed(packet[:100]); len(msgs) != 0 {
		t.Fatalf("premature message after partial feed")
	}
	if d.Pending() != 100 {
		t.Errorf("pending = %d, want 100", d.Pending())
	}

	msgs := d.Feed(packet[100:])
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if len(msgs[0].Body) != 500 {
		t.Errorf("body length = %d, want 500", len(msgs[0].Body))
	}
}

func TestDecoderResyncLeadingGarbage(t *testing.T) {
	d := NewDecoder()
	stream := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, encode(t, CmdGetSettings, 8, nil)...)

	msgs := d.Feed(stream)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != CmdGetSettings {
		t.Errorf("ID = %v", msgs[0].ID)
	}
}

func TestDecoderGarbageOnly(t *testing.T) {
	d := NewDecoder()
	if msgs := d.Feed([]byte{0x00, 0x01, 0x02, 0x03}); len(msgs) != 0 {
		t.Fatalf("messages from garbage: %d", len(msgs))
	}
	// Garbage with no possible sync start is dropped entirely.
	if d.Pending() != 0 {
		t.Errorf("pending = %d, want 0", d.Pending())
	}
}

func TestDecoderKeepsTrailingHalfSync(t *testing.T) {
	d := NewDecoder()
	packet := encode(t, CmdGetDeviceInfo, 1, nil)

	// Garbage ending in the first sync byte, then the rest of a packet.
	if msgs := d.Feed([]byte{0x99, SyncByte1}); len(msgs) != 0 {
		t.Fatal("premature message")
	}
	msgs := d.Feed(packet[1:])
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

func TestDecoderEmptyFeed(t *testing.T) {
	d := NewDecoder()
	if msgs := d.Feed(nil); len(msgs) != 0 {
		t.Fatal("messages from empty feed")
	}
}

func TestDecoderChecksumTrailerSkipped(t *testing.T) {
	d := NewDecoder()
	packet := encode(t, CmdGetDeviceTime, 2, []byte{0x01})
	// Rewrite the length word to declare a 2-byte checksum trailer.
	packet[8] = 2
	packet = append(packet, 0xCA, 0xFE)
	packet = append(packet, encode(t, CmdGetCardInfo, 3, nil)...)

	msgs := d.Feed(packet)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !bytes.Equal(msgs[0].Body, []byte{0x01}) {
		t.Errorf("body = % x", msgs[0].Body)
	}
	if msgs[1].ID != CmdGetCardInfo {
		t.Errorf("second ID = %v", msgs[1].ID)
	}
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte{SyncByte1, SyncByte2, 0x00})
	if d.Pending() == 0 {
		t.Fatal("expected pending bytes before reset")
	}
	d.Reset()
	if d.Pending() != 0 {
		t.Errorf("pending = %d after reset", d.Pending())
	}
}
