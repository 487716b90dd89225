package jensen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensen-protocol/jensen-go/internal/testharness/mock"
	"github.com/jensen-protocol/jensen-go/pkg/device"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

func settingsBody(autoRecord, autoPlay, tone, notification byte) []byte {
	body := make([]byte, settingsBodySize)
	body[offsetAutoRecord] = autoRecord
	body[offsetAutoPlay] = autoPlay
	body[offsetToneEnable] = tone
	body[offsetNotification] = notification
	return body
}

func TestSettingsGet(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetSettings, mock.Reply(settingsBody(1, 2, 2, 1)))
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	got, err := c.Settings().Get()
	require.NoError(t, err)
	assert.Equal(t, DeviceSettings{
		AutoRecord:   true,
		AutoPlay:     false,
		ToneEnabled:  true, // wire value 2 means enabled for this byte only
		Notification: true,
	}, got)
}

func TestSettingsGetShortBody(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetSettings, mock.Reply([]byte{1, 2, 3}))
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	_, err := c.Settings().Get()
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

// A single-field patch must touch exactly one flag byte; every other byte
// carries the keep sentinel.
func TestSettingsSetPatchTouchesOnlyNamedFields(t *testing.T) {
	tr := mock.New()
	var sent []byte
	tr.Handle(wire.CmdSetSettings, func(cmd *wire.Message) [][]byte {
		sent = append([]byte(nil), cmd.Body...)
		return [][]byte{mock.Packet(wire.CmdSetSettings, cmd.Sequence, []byte{0})}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	on := true
	require.NoError(t, c.Settings().Set(SettingsPatch{AutoPlay: &on}))

	require.Len(t, sent, settingsBodySize)
	for i, b := range sent {
		if i == offsetAutoPlay {
			assert.Equal(t, sentinelOn, b)
		} else {
			assert.Equal(t, sentinelKeep, b, "byte %d must be untouched", i)
		}
	}
}

func TestSettingsSetFullPatch(t *testing.T) {
	tr := mock.New()
	var sent []byte
	tr.Handle(wire.CmdSetSettings, func(cmd *wire.Message) [][]byte {
		sent = append([]byte(nil), cmd.Body...)
		return [][]byte{mock.Packet(wire.CmdSetSettings, cmd.Sequence, []byte{0})}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	on, off := true, false
	require.NoError(t, c.Settings().Set(SettingsPatch{
		AutoRecord:   &on,
		AutoPlay:     &off,
		ToneEnabled:  &off,
		Notification: &on,
	}))

	assert.Equal(t, sentinelOn, sent[offsetAutoRecord])
	assert.Equal(t, sentinelOff, sent[offsetAutoPlay])
	assert.Equal(t, sentinelOn, sent[offsetNotification])
}

// The tone-enable byte is inverted on the wire. This pins the quirk so a
// well-meaning cleanup cannot silently flip every device's tone setting.
func TestToneFlagWireInversion(t *testing.T) {
	assert.Equal(t, byte(2), encodeToneFlag(true))
	assert.Equal(t, byte(1), encodeToneFlag(false))
	assert.True(t, decodeToneFlag(2))
	assert.False(t, decodeToneFlag(1))
	assert.False(t, decodeToneFlag(0))

	// The ordinary flags encode the other way around.
	assert.Equal(t, byte(1), encodeFlag(true))
	assert.Equal(t, byte(2), encodeFlag(false))
}

func TestSettingsRoundTrip(t *testing.T) {
	tr := mock.New()
	// The device stores whatever the last write carried.
	var stored = settingsBody(2, 2, 1, 2)
	tr.Handle(wire.CmdGetSettings, func(cmd *wire.Message) [][]byte {
		return [][]byte{mock.Packet(wire.CmdGetSettings, cmd.Sequence, stored)}
	})
	tr.Handle(wire.CmdSetSettings, func(cmd *wire.Message) [][]byte {
		for i, b := range cmd.Body {
			if b != sentinelKeep {
				stored[i] = b
			}
		}
		return [][]byte{mock.Packet(wire.CmdSetSettings, cmd.Sequence, []byte{0})}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	before, err := c.Settings().Get()
	require.NoError(t, err)
	assert.False(t, before.ToneEnabled)

	on := true
	require.NoError(t, c.Settings().Set(SettingsPatch{ToneEnabled: &on}))

	after, err := c.Settings().Get()
	require.NoError(t, err)
	assert.True(t, after.ToneEnabled)
	assert.Equal(t, before.AutoRecord, after.AutoRecord)
	assert.Equal(t, before.AutoPlay, after.AutoPlay)
}
