package discovery

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/jensen-protocol/jensen-go/pkg/device"
)

// DeviceHandle identifies an attached recorder before a session is
// opened. Bus and Address pin the physical port so two devices of the
// same model stay distinguishable.
type DeviceHandle struct {
	Model     device.Model
	VendorID  uint16
	ProductID uint16
	Bus       int
	Address   int
}

// Key returns a stable identity for snapshot diffing. The address is
// assigned per plug-in, so a re-plugged device counts as a new one.
func (h DeviceHandle) Key() string {
	return fmt.Sprintf("%d:%d:%04x", h.Bus, h.Address, h.ProductID)
}

// String renders the handle for logs.
func (h DeviceHandle) String() string {
	return fmt.Sprintf("%s at bus %d addr %d", h.Model, h.Bus, h.Address)
}

// Enumerator lists the currently attached recorders. Implemented by
// USBEnumerator in production and by fakes in tests.
type Enumerator interface {
	Enumerate() ([]DeviceHandle, error)
}

// USBEnumerator scans the USB bus for recorders via libusb.
type USBEnumerator struct{}

var _ Enumerator = USBEnumerator{}

// Enumerate walks the bus and collects every device with the vendor's ID
// and a known product ID. No device is opened; this is descriptor-level
// only and needs no exclusive access.
func (USBEnumerator) Enumerate() ([]DeviceHandle, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var handles []DeviceHandle
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) != device.VendorID {
			return false
		}
		model := device.ModelFromProductID(uint16(desc.Product))
		if model == device.ModelUnknown {
			return false
		}
		handles = append(handles, DeviceHandle{
			Model:     model,
			VendorID:  uint16(desc.Vendor),
			ProductID: uint16(desc.Product),
			Bus:       desc.Bus,
			Address:   desc.Address,
		})
		return false // enumeration only, never open
	})
	// The opener always declines, so devs is normally empty; close
	// whatever libusb handed back anyway.
	for _, d := range devs {
		d.Close()
	}
	if err != nil && len(handles) == 0 {
		return nil, fmt.Errorf("usb enumeration: %w", err)
	}
	return handles, nil
}

// Find returns the recorders attached right now.
func Find() ([]DeviceHandle, error) {
	return USBEnumerator{}.Enumerate()
}
