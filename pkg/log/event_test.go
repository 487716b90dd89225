package log

import (
	"bytes"
	"testing"
)

func TestStringMethods(t *testing.T) {
	if DirectionIn.String() != "IN" || DirectionOut.String() != "OUT" {
		t.Error("Direction.String mismatch")
	}
	if Direction(9).String() != "UNKNOWN" {
		t.Error("unknown Direction should stringify as UNKNOWN")
	}
	if LayerTransport.String() != "TRANSPORT" || LayerWire.String() != "WIRE" || LayerSession.String() != "SESSION" {
		t.Error("Layer.String mismatch")
	}
	if CategoryCommand.String() != "COMMAND" || CategoryKeepAlive.String() != "KEEPALIVE" {
		t.Error("Category.String mismatch")
	}
}

func TestNewPacketEvent(t *testing.T) {
	small := []byte{0x12, 0x34, 0x00, 0x01}
	ev := NewPacketEvent(small)
	if ev.Size != 4 || ev.Truncated || !bytes.Equal(ev.Data, small) {
		t.Errorf("small packet event = %+v", ev)
	}

	big := bytes.Repeat([]byte{0xAA}, MaxPacketEventData+100)
	ev = NewPacketEvent(big)
	if ev.Size != len(big) {
		t.Errorf("Size = %d, want %d", ev.Size, len(big))
	}
	if !ev.Truncated || len(ev.Data) != MaxPacketEventData {
		t.Errorf("big packet not truncated: truncated=%v len=%d", ev.Truncated, len(ev.Data))
	}
}
