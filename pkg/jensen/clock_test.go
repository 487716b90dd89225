package jensen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensen-protocol/jensen-go/internal/testharness/mock"
	"github.com/jensen-protocol/jensen-go/pkg/device"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

func TestClockGet(t *testing.T) {
	tr := mock.New()
	// BCD 2025-05-12 09:30:45.
	tr.Handle(wire.CmdGetDeviceTime, mock.Reply([]byte{0x20, 0x25, 0x05, 0x12, 0x09, 0x30, 0x45}))
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	got, ok, err := c.Clock().Get()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 5, 12, 9, 30, 45, 0, time.Local), got)
}

func TestClockGetUnset(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetDeviceTime, mock.Reply(make([]byte, 7)))
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	got, ok, err := c.Clock().Get()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, got.IsZero())
}

func TestClockGetRejectsNonBCD(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetDeviceTime, mock.Reply([]byte{0x20, 0x25, 0x0A, 0x12, 0x09, 0x30, 0x45}))
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	_, _, err := c.Clock().Get()
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClockGetShortBody(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetDeviceTime, mock.Reply([]byte{0x20, 0x25}))
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	_, _, err := c.Clock().Get()
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClockSet(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdSetDeviceTime, func(cmd *wire.Message) [][]byte {
		assert.Equal(t, []byte{0x20, 0x25, 0x05, 0x12, 0x09, 0x30, 0x45}, cmd.Body)
		return [][]byte{mock.Packet(wire.CmdSetDeviceTime, cmd.Sequence, []byte{0})}
	})
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	err := c.Clock().Set(time.Date(2025, 5, 12, 9, 30, 45, 0, time.Local))
	assert.NoError(t, err)
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 5, 12, 9, 30, 45, 0, time.Local)
	assert.Equal(t, "2025-05-12 09:30:45", FormatTime(ts, true))
	assert.Equal(t, "unknown", FormatTime(time.Time{}, false))
}
