package jensen

import (
	"fmt"

	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// Settings bitfield layout. The body is a fixed 16 bytes with one flag
// byte per setting; all other bytes are reserved and must round-trip
// untouched.
const (
	settingsBodySize = 16

	offsetAutoRecord   = 3
	offsetAutoPlay     = 7
	offsetToneEnable   = 11
	offsetNotification = 15
)

// Flag byte sentinels. A write of sentinelKeep leaves the setting
// unchanged on the device.
const (
	sentinelKeep byte = 0
	sentinelOn   byte = 1
	sentinelOff  byte = 2
)

// DeviceSettings is the decoded settings bitfield.
type DeviceSettings struct {
	AutoRecord   bool
	AutoPlay     bool
	ToneEnabled  bool
	Notification bool
}

// SettingsPatch is a partial settings update. Nil fields keep the
// device's current value.
type SettingsPatch struct {
	AutoRecord   *bool
	AutoPlay     *bool
	ToneEnabled  *bool
	Notification *bool
}

// Settings is the device settings controller.
type Settings struct {
	client *Client
}

// Get reads and decodes the settings bitfield.
func (s *Settings) Get() (DeviceSettings, error) {
	msg, err := s.client.send(wire.CmdGetSettings, nil)
	if err != nil {
		return DeviceSettings{}, err
	}
	if len(msg.Body) < settingsBodySize {
		return DeviceSettings{}, fmt.Errorf("%w: settings body %d bytes", ErrInvalidResponse, len(msg.Body))
	}

	return DeviceSettings{
		AutoRecord:   msg.Body[offsetAutoRecord] == sentinelOn,
		AutoPlay:     msg.Body[offsetAutoPlay] == sentinelOn,
		ToneEnabled:  decodeToneFlag(msg.Body[offsetToneEnable]),
		Notification: msg.Body[offsetNotification] == sentinelOn,
	}, nil
}

// Set applies a partial settings update. Only the flag bytes for fields
// present in the patch are written; everything else carries the keep
// sentinel so the device leaves it alone.
func (s *Settings) Set(patch SettingsPatch) error {
	body := make([]byte, settingsBodySize)
	if patch.AutoRecord != nil {
		body[offsetAutoRecord] = encodeFlag(*patch.AutoRecord)
	}
	if patch.AutoPlay != nil {
		body[offsetAutoPlay] = encodeFlag(*patch.AutoPlay)
	}
	if patch.ToneEnabled != nil {
		body[offsetToneEnable] = encodeToneFlag(*patch.ToneEnabled)
	}
	if patch.Notification != nil {
		body[offsetNotification] = encodeFlag(*patch.Notification)
	}

	msg, err := s.client.send(wire.CmdSetSettings, body)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

func encodeFlag(on bool) byte {
	if on {
		return sentinelOn
	}
	return sentinelOff
}

// The tone-enable byte is inverted on the wire relative to every other
// flag: 2 means enabled, 1 means disabled. Firmware quirk, confirmed
// against captures of the vendor client; do not "fix" it here.
func encodeToneFlag(on bool) byte {
	if on {
		return sentinelOff
	}
	return sentinelOn
}

func decodeToneFlag(b byte) bool {
	return b == sentinelOff
}
