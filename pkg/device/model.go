// Package device identifies HiDock hardware models and gates protocol
// features on (model, firmware version) pairs.
package device

import "github.com/jensen-protocol/jensen-go/pkg/version"

// USB identification constants.
const (
	// VendorID is the USB vendor ID shared by all HiDock models.
	VendorID = 0x10D6

	// ProductIDH1 is the USB product ID of the HiDock H1.
	ProductIDH1 = 0xAF0C

	// ProductIDH1E is the USB product ID of the HiDock H1E.
	ProductIDH1E = 0xAF0D

	// ProductIDP1 is the USB product ID of the HiDock P1.
	ProductIDP1 = 0xAF0E
)

// Model identifies a HiDock hardware model.
type Model uint8

const (
	// ModelUnknown is an unrecognized product ID.
	ModelUnknown Model = iota
	// ModelH1 is the base dock recorder.
	ModelH1
	// ModelH1E is the dock recorder with the Bluetooth dongle.
	ModelH1E
	// ModelP1 is the portable battery-powered recorder.
	ModelP1
)

// String returns the marketing name of the model.
func (m Model) String() string {
	switch m {
	case ModelH1:
		return "H1"
	case ModelH1E:
		return "H1E"
	case ModelP1:
		return "P1"
	default:
		return "UNKNOWN"
	}
}

// ModelFromProductID maps a USB product ID to a model.
func ModelFromProductID(productID uint16) Model {
	switch productID {
	case ProductIDH1:
		return ModelH1
	case ProductIDH1E:
		return ModelH1E
	case ProductIDP1:
		return ModelP1
	default:
		return ModelUnknown
	}
}

// Identity is the hardware identity hydrated by the device-info round trip.
type Identity struct {
	// Model is derived from the USB product ID at enumeration time.
	Model Model

	// Serial is the protocol-level serial number.
	Serial string

	// Firmware is the reported firmware version.
	Firmware version.Firmware
}
