package device

import "github.com/jensen-protocol/jensen-go/pkg/version"

// Feature is a protocol capability that may be absent on some hardware.
type Feature uint8

const (
	// FeatureBluetooth covers the whole Bluetooth command block.
	FeatureBluetooth Feature = iota
	// FeatureBattery is the battery status query.
	FeatureBattery
	// FeatureToneUpdate is the notification-tone upload pair.
	FeatureToneUpdate
	// FeatureCodecUpdate is the audio-codec upload pair.
	FeatureCodecUpdate
	// FeatureUSBIdleTimeout is the USB idle-timeout read/write pair.
	FeatureUSBIdleTimeout
	// FeatureMassStorage is the enter-mass-storage command.
	FeatureMassStorage
)

// String returns the feature name.
func (f Feature) String() string {
	switch f {
	case FeatureBluetooth:
		return "BLUETOOTH"
	case FeatureBattery:
		return "BATTERY"
	case FeatureToneUpdate:
		return "TONE_UPDATE"
	case FeatureCodecUpdate:
		return "CODEC_UPDATE"
	case FeatureUSBIdleTimeout:
		return "USB_IDLE_TIMEOUT"
	case FeatureMassStorage:
		return "MASS_STORAGE"
	default:
		return "UNKNOWN"
	}
}

// requirement gates a feature on a model and a minimum firmware version.
// A zero MinFirmware means any firmware on that model qualifies.
type requirement struct {
	model       Model
	minFirmware version.Firmware
}

// featureTable is the single declarative capability table. Version floors
// were pinned against vendor release notes and device captures; keeping
// them here rather than inline in the controllers avoids scattering magic
// numbers through version checks.
var featureTable = map[Feature][]requirement{
	FeatureBluetooth: {
		{model: ModelH1E},
	},
	FeatureBattery: {
		{model: ModelP1},
	},
	FeatureToneUpdate: {
		{model: ModelH1E, minFirmware: version.Firmware{Major: 5, Minor: 1, Patch: 1}},
	},
	FeatureCodecUpdate: {
		{model: ModelP1, minFirmware: version.Firmware{Major: 1, Minor: 2, Patch: 0}},
	},
	FeatureUSBIdleTimeout: {
		{model: ModelH1E, minFirmware: version.Firmware{Major: 5, Minor: 1, Patch: 0}},
		{model: ModelP1},
	},
	FeatureMassStorage: {
		{model: ModelH1},
		{model: ModelH1E},
		{model: ModelP1},
	},
}

// legacyFileCountCeiling is the highest packed firmware number that still
// requires the two-step catalog protocol (count query before list query).
const legacyFileCountCeiling = 327722 // 5.0.42

// Capabilities is the supported-feature set of a connected device. It is a
// pure function of (model, firmware) and must be recomputed after every
// successful connection, since the firmware version is only known after the
// first round trip.
type Capabilities struct {
	model    Model
	firmware version.Firmware
}

// CapabilitiesFor computes the capability set for a model/firmware pair.
func CapabilitiesFor(model Model, fw version.Firmware) Capabilities {
	return Capabilities{model: model, firmware: fw}
}

// Supports reports whether the device supports the feature.
func (c Capabilities) Supports(f Feature) bool {
	for _, req := range featureTable[f] {
		if req.model != c.model {
			continue
		}
		if req.minFirmware.IsZero() || c.firmware.AtLeast(req.minFirmware) {
			return true
		}
	}
	return false
}

// ModelEligible reports whether the model carries the hardware for the
// feature at all, regardless of firmware version. Distinguishes "wrong
// hardware" from "firmware too old" for error reporting.
func (c Capabilities) ModelEligible(f Feature) bool {
	for _, req := range featureTable[f] {
		if req.model == c.model {
			return true
		}
	}
	return false
}

// Model returns the model the capability set was computed for.
func (c Capabilities) Model() Model {
	return c.model
}

// Firmware returns the firmware version the capability set was computed for.
func (c Capabilities) Firmware() version.Firmware {
	return c.firmware
}

// NeedsFileCountFirst reports whether the firmware requires the catalog
// count query before the list query (older firmware streams list records
// without a leading total).
func (c Capabilities) NeedsFileCountFirst() bool {
	return c.firmware.Number() <= legacyFileCountCeiling
}
