package jensen

import (
	"fmt"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/device"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// DefaultScanWindow is how long a Scan lets the dongle collect results
// before fetching them.
const DefaultScanWindow = 8 * time.Second

// MACAddress is a 6-byte Bluetooth hardware address.
type MACAddress [6]byte

// String renders the address in the conventional colon form.
func (m MACAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// BluetoothState is the dongle's connection state byte.
type BluetoothState uint8

// Connection states reported by the status query.
const (
	BTDisconnected BluetoothState = 0
	BTScanning     BluetoothState = 1
	BTConnecting   BluetoothState = 2
	BTConnected    BluetoothState = 3
)

// String returns the state name.
func (s BluetoothState) String() string {
	switch s {
	case BTDisconnected:
		return "disconnected"
	case BTScanning:
		return "scanning"
	case BTConnecting:
		return "connecting"
	case BTConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// BluetoothStatus is the decoded status query response. The peer fields
// are only populated in the connected state.
type BluetoothStatus struct {
	State BluetoothState

	// Connected-peer details; zero values outside BTConnected.
	PeerName    string
	PeerMAC     MACAddress
	A2DP        bool
	HFP         bool
	AVRCP       bool
	PeerBattery uint8
	HasPeerInfo bool
}

// ScanResult is one device found during a scan.
type ScanResult struct {
	Name string
	MAC  MACAddress
	RSSI int8

	// IsAudio reports whether the class-of-device major class marks the
	// peer as an audio device.
	IsAudio bool
}

// PairedDevice is one entry in the dongle's pairing list.
type PairedDevice struct {
	Name string
	MAC  MACAddress

	// Sequence is the pairing slot index.
	Sequence uint8
}

// Bluetooth is the dongle controller. Every operation gates on the
// Bluetooth capability before touching the wire.
type Bluetooth struct {
	client *Client
}

// Status queries the dongle connection state.
func (b *Bluetooth) Status() (BluetoothStatus, error) {
	if err := b.client.requireFeature(device.FeatureBluetooth); err != nil {
		return BluetoothStatus{}, err
	}
	msg, err := b.client.send(wire.CmdBluetoothGetStatus, nil)
	if err != nil {
		return BluetoothStatus{}, err
	}
	return parseBluetoothStatus(msg.Body)
}

// Scan starts discovery, waits out the scan window, stops discovery, and
// returns the collected results. window <= 0 uses DefaultScanWindow.
func (b *Bluetooth) Scan(window time.Duration) ([]ScanResult, error) {
	if err := b.client.requireFeature(device.FeatureBluetooth); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultScanWindow
	}

	msg, err := b.client.send(wire.CmdBluetoothScanStart, nil)
	if err != nil {
		return nil, err
	}
	if err := statusByte(msg); err != nil {
		return nil, fmt.Errorf("scan start: %w", err)
	}

	time.Sleep(window)

	// Stop before fetching so the result list is stable. A stop failure is
	// not fatal to the fetch.
	if msg, err := b.client.send(wire.CmdBluetoothScanStop, nil); err == nil {
		_ = statusByte(msg)
	}

	msg, err = b.client.send(wire.CmdBluetoothScanResults, nil)
	if err != nil {
		return nil, err
	}
	return parseScanResults(msg.Body)
}

// PairedList fetches the dongle's pairing list.
func (b *Bluetooth) PairedList() ([]PairedDevice, error) {
	if err := b.client.requireFeature(device.FeatureBluetooth); err != nil {
		return nil, err
	}
	msg, err := b.client.send(wire.CmdBluetoothGetPairedList, nil)
	if err != nil {
		return nil, err
	}
	return parsePairedList(msg.Body)
}

// Connect asks the dongle to connect to the given peer.
func (b *Bluetooth) Connect(mac MACAddress) error {
	if err := b.client.requireFeature(device.FeatureBluetooth); err != nil {
		return err
	}
	msg, err := b.client.send(wire.CmdBluetoothConnect, mac[:])
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// Disconnect drops the current audio connection.
func (b *Bluetooth) Disconnect() error {
	if err := b.client.requireFeature(device.FeatureBluetooth); err != nil {
		return err
	}
	msg, err := b.client.send(wire.CmdBluetoothDisconnect, nil)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// Reconnect asks the dongle to reconnect to its last peer.
func (b *Bluetooth) Reconnect() error {
	if err := b.client.requireFeature(device.FeatureBluetooth); err != nil {
		return err
	}
	msg, err := b.client.send(wire.CmdBluetoothReconnect, nil)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// ClearPaired wipes the dongle's pairing list.
func (b *Bluetooth) ClearPaired() error {
	if err := b.client.requireFeature(device.FeatureBluetooth); err != nil {
		return err
	}
	msg, err := b.client.send(wire.CmdBluetoothClearPaired, nil)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// audioMajorClass is the class-of-device major device class for
// audio/video hardware.
const audioMajorClass = 0x04

func parseBluetoothStatus(body []byte) (BluetoothStatus, error) {
	if len(body) < 1 {
		return BluetoothStatus{}, fmt.Errorf("%w: empty status body", ErrInvalidResponse)
	}

	status := BluetoothStatus{State: BluetoothState(body[0])}
	if status.State != BTConnected {
		return status, nil
	}

	// Connected layout: name length, name, MAC, profile flag bytes
	// (A2DP, HFP, AVRCP), peer battery percent.
	rest := body[1:]
	if len(rest) < 1 {
		return status, nil
	}
	nameLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < nameLen+6 {
		return BluetoothStatus{}, fmt.Errorf("%w: truncated peer record", ErrInvalidResponse)
	}
	status.PeerName = string(rest[:nameLen])
	copy(status.PeerMAC[:], rest[nameLen:nameLen+6])
	status.HasPeerInfo = true
	rest = rest[nameLen+6:]

	if len(rest) >= 3 {
		status.A2DP = rest[0] != 0
		status.HFP = rest[1] != 0
		status.AVRCP = rest[2] != 0
		rest = rest[3:]
	}
	if len(rest) >= 1 {
		status.PeerBattery = rest[0]
	}
	return status, nil
}

func parseScanResults(body []byte) ([]ScanResult, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("%w: empty scan result body", ErrInvalidResponse)
	}

	count := int(body[0])
	rest := body[1:]
	results := make([]ScanResult, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < 1 {
			break // truncated tail, keep what parsed
		}
		nameLen := int(rest[0])
		rest = rest[1:]

		// name + MAC + RSSI + 3-byte class of device
		if len(rest) < nameLen+6+1+3 {
			break
		}
		var r ScanResult
		r.Name = string(rest[:nameLen])
		copy(r.MAC[:], rest[nameLen:nameLen+6])
		r.RSSI = int8(rest[nameLen+6])

		cod := uint32(rest[nameLen+7])<<16 | uint32(rest[nameLen+8])<<8 | uint32(rest[nameLen+9])
		r.IsAudio = (cod>>8)&0x1F == audioMajorClass

		results = append(results, r)
		rest = rest[nameLen+10:]
	}
	return results, nil
}

func parsePairedList(body []byte) ([]PairedDevice, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("%w: empty paired list body", ErrInvalidResponse)
	}

	count := int(body[0])
	rest := body[1:]
	devices := make([]PairedDevice, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < 1 {
			break
		}
		nameLen := int(rest[0])
		rest = rest[1:]

		// name + MAC + pairing slot byte
		if len(rest) < nameLen+6+1 {
			break
		}
		var d PairedDevice
		d.Name = string(rest[:nameLen])
		copy(d.MAC[:], rest[nameLen:nameLen+6])
		d.Sequence = rest[nameLen+6]

		devices = append(devices, d)
		rest = rest[nameLen+7:]
	}
	return devices, nil
}
