package jensen

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/device"
	"github.com/jensen-protocol/jensen-go/pkg/log"
	"github.com/jensen-protocol/jensen-go/pkg/version"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// Upload constants.
const (
	// uploadChunkSize is the raw chunk size for firmware, tone, and codec
	// payload uploads. The bootloader's receive window is 512 bytes.
	uploadChunkSize = 512

	// uploadAckTimeout bounds the wait for the device's final upload
	// acknowledgement after the last chunk; flash writes are slow.
	uploadAckTimeout = 60 * time.Second
)

// CardInfo describes the storage card.
type CardInfo struct {
	// FreeMB and CapacityMB are in megabytes, as reported by the device.
	FreeMB     uint32
	CapacityMB uint32

	// Status is the raw card status word.
	Status uint32
}

// BatteryStatus is the decoded battery query response.
type BatteryStatus struct {
	// Level is the charge percentage.
	Level uint8

	// VoltageMV is the cell voltage in millivolts.
	VoltageMV uint16

	// Charging reports whether external power is applied.
	Charging bool
}

// System is the storage, power, diagnostics, and update controller.
type System struct {
	client *Client
}

// CardInfo queries storage usage and card health.
func (s *System) CardInfo() (CardInfo, error) {
	msg, err := s.client.send(wire.CmdGetCardInfo, nil)
	if err != nil {
		return CardInfo{}, err
	}
	if len(msg.Body) < 12 {
		return CardInfo{}, fmt.Errorf("%w: card info body %d bytes", ErrInvalidResponse, len(msg.Body))
	}
	return CardInfo{
		FreeMB:     binary.BigEndian.Uint32(msg.Body[0:4]),
		CapacityMB: binary.BigEndian.Uint32(msg.Body[4:8]),
		Status:     binary.BigEndian.Uint32(msg.Body[8:12]),
	}, nil
}

// formatCardMagic guards against an accidental format command reaching the
// firmware; the device rejects a format without it.
var formatCardMagic = []byte{1, 2, 3, 4}

// FormatCard erases the storage card. Destructive and irreversible.
func (s *System) FormatCard() error {
	msg, err := s.client.send(wire.CmdFormatCard, formatCardMagic)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// Battery queries charge state. P1 hardware only.
func (s *System) Battery() (BatteryStatus, error) {
	if err := s.client.requireFeature(device.FeatureBattery); err != nil {
		return BatteryStatus{}, err
	}
	msg, err := s.client.send(wire.CmdGetBatteryStatus, nil)
	if err != nil {
		return BatteryStatus{}, err
	}
	if len(msg.Body) < 4 {
		return BatteryStatus{}, fmt.Errorf("%w: battery body %d bytes", ErrInvalidResponse, len(msg.Body))
	}
	return BatteryStatus{
		Charging:  msg.Body[0] != 0,
		Level:     msg.Body[1],
		VoltageMV: binary.BigEndian.Uint16(msg.Body[2:4]),
	}, nil
}

// RecordingFile returns the name of the file currently being recorded.
// ok is false when nothing is recording.
func (s *System) RecordingFile() (name string, ok bool, err error) {
	msg, err := s.client.send(wire.CmdGetRecordingFile, nil)
	if err != nil {
		return "", false, err
	}
	name = trimSerial(msg.Body)
	return name, name != "", nil
}

// EnterMassStorage reboots the device into USB mass-storage mode. The
// protocol session dies with the reboot; the caller should Disconnect
// afterwards.
func (s *System) EnterMassStorage() error {
	if err := s.client.requireFeature(device.FeatureMassStorage); err != nil {
		return err
	}
	msg, err := s.client.send(wire.CmdEnterMassStorage, nil)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// USBIdleTimeout reads the auto-sleep timeout.
func (s *System) USBIdleTimeout() (time.Duration, error) {
	if err := s.client.requireFeature(device.FeatureUSBIdleTimeout); err != nil {
		return 0, err
	}
	msg, err := s.client.send(wire.CmdGetUSBIdleTimeout, nil)
	if err != nil {
		return 0, err
	}
	if len(msg.Body) < 4 {
		return 0, fmt.Errorf("%w: idle timeout body %d bytes", ErrInvalidResponse, len(msg.Body))
	}
	return time.Duration(binary.BigEndian.Uint32(msg.Body)) * time.Second, nil
}

// SetUSBIdleTimeout writes the auto-sleep timeout, rounded down to whole
// seconds.
func (s *System) SetUSBIdleTimeout(d time.Duration) error {
	if err := s.client.requireFeature(device.FeatureUSBIdleTimeout); err != nil {
		return err
	}
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(d/time.Second))
	msg, err := s.client.send(wire.CmdSetUSBIdleTimeout, body)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// SendKeyCode injects a physical-button event, for remote control and
// factory test.
func (s *System) SendKeyCode(code uint8) error {
	msg, err := s.client.send(wire.CmdSendKeyCode, []byte{code})
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// RecordTestStart begins a factory microphone self-test recording.
func (s *System) RecordTestStart() error {
	msg, err := s.client.send(wire.CmdRecordTestStart, nil)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// RecordTestEnd stops the microphone self-test.
func (s *System) RecordTestEnd() error {
	msg, err := s.client.send(wire.CmdRecordTestEnd, nil)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// Ping runs the firmware's message loopback test.
func (s *System) Ping() error {
	msg, err := s.client.send(wire.CmdDeviceMsgTest, nil)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// UpdateFirmware pushes a firmware image. The target version and image
// length are offered first; the device may refuse (wrong version chain,
// busy, card problems) before any payload bytes are sent.
func (s *System) UpdateFirmware(ctx context.Context, target version.Firmware, image []byte, onProgress func(sent, total int)) error {
	request := make([]byte, 8)
	binary.BigEndian.PutUint32(request[0:4], target.Number())
	binary.BigEndian.PutUint32(request[4:8], uint32(len(image)))
	return s.upload(ctx, wire.CmdRequestFirmwareUpgrade, wire.CmdFirmwareUpload, request, image, onProgress)
}

// UploadTone pushes a notification tone. md5 is the digest of the payload,
// verified by the device after transfer. H1E with recent firmware only.
func (s *System) UploadTone(ctx context.Context, md5 [16]byte, payload []byte, onProgress func(sent, total int)) error {
	if err := s.client.requireFeature(device.FeatureToneUpdate); err != nil {
		return err
	}
	return s.upload(ctx, wire.CmdRequestToneUpdate, wire.CmdToneUpload, digestRequest(md5, len(payload)), payload, onProgress)
}

// UploadCodec pushes an audio codec blob. P1 with recent firmware only.
func (s *System) UploadCodec(ctx context.Context, md5 [16]byte, payload []byte, onProgress func(sent, total int)) error {
	if err := s.client.requireFeature(device.FeatureCodecUpdate); err != nil {
		return err
	}
	return s.upload(ctx, wire.CmdRequestCodecUpdate, wire.CmdCodecUpload, digestRequest(md5, len(payload)), payload, onProgress)
}

func digestRequest(md5 [16]byte, length int) []byte {
	request := make([]byte, 20)
	copy(request[0:16], md5[:])
	binary.BigEndian.PutUint32(request[16:20], uint32(length))
	return request
}

// acceptanceReasons decodes the request-phase refusal codes.
var acceptanceReasons = map[byte]string{
	1: "version rejected",
	2: "device busy",
	3: "card full",
	4: "card error",
	5: "length mismatch",
}

func acceptanceStatus(msg *wire.Message) error {
	if len(msg.Body) < 1 {
		return fmt.Errorf("%w: %s response has no status byte", ErrInvalidResponse, msg.ID)
	}
	code := msg.Body[0]
	if code == 0 {
		return nil
	}
	reason, known := acceptanceReasons[code]
	if !known {
		reason = fmt.Sprintf("code %d", code)
	}
	return fmt.Errorf("%w: %s refused: %s", ErrCommandFailed, msg.ID, reason)
}

// upload runs the two-phase update: an offer carrying the metadata, then
// the payload as raw chunks once accepted, then the device's final
// acknowledgement after it has verified and flashed the payload. The
// keep-alive probe stays suspended throughout; a probe packet interleaved
// into the raw stream would corrupt the image.
func (s *System) upload(ctx context.Context, requestID, uploadID wire.CommandID, request, payload []byte, onProgress func(sent, total int)) error {
	c := s.client

	resume := c.suspendProbe()
	defer resume()

	msg, err := c.send(requestID, request)
	if err != nil {
		return err
	}
	if err := acceptanceStatus(msg); err != nil {
		return err
	}

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if !c.connected.Load() {
		return ErrNotConnected
	}

	for sent := 0; sent < len(payload); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(sent+uploadChunkSize, len(payload))
		if err := c.transport.Send(payload[sent:end]); err != nil {
			if !c.connected.Load() {
				return ErrNotConnected
			}
			return fmt.Errorf("upload chunk at %d: %w", sent, err)
		}
		sent = end
		if onProgress != nil {
			onProgress(sent, len(payload))
		}
	}

	ack, err := c.receiveLocked(uploadID, uploadAckTimeout, log.CategoryCommand)
	if err != nil {
		return err
	}
	return statusByte(ack)
}
