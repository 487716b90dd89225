package device

import (
	"testing"

	"github.com/jensen-protocol/jensen-go/pkg/version"
)

func TestModelFromProductID(t *testing.T) {
	tests := []struct {
		productID uint16
		want      Model
	}{
		{ProductIDH1, ModelH1},
		{ProductIDH1E, ModelH1E},
		{ProductIDP1, ModelP1},
		{0x1234, ModelUnknown},
	}
	for _, tt := range tests {
		if got := ModelFromProductID(tt.productID); got != tt.want {
			t.Errorf("ModelFromProductID(%#04x) = %v, want %v", tt.productID, got, tt.want)
		}
	}
}

func TestCapabilitiesSupports(t *testing.T) {
	fw511 := version.Firmware{Major: 5, Minor: 1, Patch: 1}
	fw510 := version.Firmware{Major: 5, Minor: 1, Patch: 0}
	fw500 := version.Firmware{Major: 5, Minor: 0, Patch: 0}
	fw120 := version.Firmware{Major: 1, Minor: 2, Patch: 0}
	fw110 := version.Firmware{Major: 1, Minor: 1, Patch: 0}

	tests := []struct {
		name    string
		model   Model
		fw      version.Firmware
		feature Feature
		want    bool
	}{
		{"bluetooth on H1E", ModelH1E, fw500, FeatureBluetooth, true},
		{"bluetooth on H1", ModelH1, fw511, FeatureBluetooth, false},
		{"bluetooth on P1", ModelP1, fw120, FeatureBluetooth, false},
		{"battery on P1", ModelP1, fw110, FeatureBattery, true},
		{"battery on H1E", ModelH1E, fw511, FeatureBattery, false},
		{"tone update at floor", ModelH1E, fw511, FeatureToneUpdate, true},
		{"tone update below floor", ModelH1E, fw510, FeatureToneUpdate, false},
		{"codec update at floor", ModelP1, fw120, FeatureCodecUpdate, true},
		{"codec update below floor", ModelP1, fw110, FeatureCodecUpdate, false},
		{"codec update wrong model", ModelH1E, fw511, FeatureCodecUpdate, false},
		{"idle timeout H1E at floor", ModelH1E, fw510, FeatureUSBIdleTimeout, true},
		{"idle timeout H1E below floor", ModelH1E, fw500, FeatureUSBIdleTimeout, false},
		{"idle timeout P1 any firmware", ModelP1, fw110, FeatureUSBIdleTimeout, true},
		{"mass storage everywhere", ModelH1, fw500, FeatureMassStorage, true},
		{"unknown model supports nothing", ModelUnknown, fw511, FeatureMassStorage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := CapabilitiesFor(tt.model, tt.fw)
			if got := caps.Supports(tt.feature); got != tt.want {
				t.Errorf("Supports(%v) = %v, want %v", tt.feature, got, tt.want)
			}
		})
	}
}

func TestNeedsFileCountFirst(t *testing.T) {
	old := CapabilitiesFor(ModelH1, version.FromNumber(legacyFileCountCeiling))
	if !old.NeedsFileCountFirst() {
		t.Error("firmware at ceiling should need count-first")
	}
	newer := CapabilitiesFor(ModelH1, version.FromNumber(legacyFileCountCeiling+1))
	if newer.NeedsFileCountFirst() {
		t.Error("firmware above ceiling should not need count-first")
	}
}
