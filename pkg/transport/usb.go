package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/jensen-protocol/jensen-go/pkg/device"
)

// USB transfer constants.
const (
	// DefaultReadBufferSize is the read size per bulk-in transfer. Large
	// enough to hold several catalog packets or a full download chunk.
	DefaultReadBufferSize = 64 * 1024

	// DefaultConnectTimeout bounds endpoint setup.
	DefaultConnectTimeout = 10 * time.Second
)

// USBConfig configures a USBTransport.
type USBConfig struct {
	// VendorID of the target device (default: device.VendorID).
	VendorID uint16

	// ProductID of the target device. Zero matches any known HiDock
	// product ID.
	ProductID uint16

	// Bus and Address select one physical device when several with the
	// same IDs are attached. Zero values match the first device found.
	Bus     int
	Address int

	// ReadBufferSize is the size of each bulk-in read (default 64 KB).
	ReadBufferSize int
}

// USBTransport is a Transport over a HiDock's bulk USB endpoints.
type USBTransport struct {
	config USBConfig

	mu      sync.Mutex
	usbCtx  *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	readBuf []byte
}

// NewUSBTransport creates a transport for the described device. The
// channel is not opened until Connect.
func NewUSBTransport(config USBConfig) *USBTransport {
	if config.VendorID == 0 {
		config.VendorID = device.VendorID
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}
	return &USBTransport{config: config}
}

// Connect claims the device's default interface and resolves its bulk
// endpoints.
func (t *USBTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev != nil {
		return nil
	}

	usbCtx := gousb.NewContext()

	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) != t.config.VendorID {
			return false
		}
		if t.config.ProductID != 0 && uint16(desc.Product) != t.config.ProductID {
			return false
		}
		if t.config.ProductID == 0 && device.ModelFromProductID(uint16(desc.Product)) == device.ModelUnknown {
			return false
		}
		if t.config.Bus != 0 && desc.Bus != t.config.Bus {
			return false
		}
		if t.config.Address != 0 && desc.Address != t.config.Address {
			return false
		}
		return true
	})
	// OpenDevices may return successfully opened devices alongside an
	// error for devices that failed to open; keep the first usable one.
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil {
			dev = d
		} else {
			d.Close()
		}
	}
	if dev == nil {
		usbCtx.Close()
		if err != nil {
			return fmt.Errorf("open device: %w", err)
		}
		return fmt.Errorf("no HiDock device found (vendor %#04x)", t.config.VendorID)
	}

	// The recorder is a composite device; the OS may have bound an audio
	// driver to other interfaces.
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		usbCtx.Close()
		return fmt.Errorf("auto-detach: %w", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return fmt.Errorf("claim interface: %w", err)
	}

	var in *gousb.InEndpoint
	var out *gousb.OutEndpoint
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			if in == nil {
				in, err = intf.InEndpoint(ep.Number)
			}
		case gousb.EndpointDirectionOut:
			if out == nil {
				out, err = intf.OutEndpoint(ep.Number)
			}
		}
		if err != nil {
			break
		}
	}
	if err == nil && (in == nil || out == nil) {
		err = errors.New("bulk endpoints not found")
	}
	if err != nil {
		done()
		dev.Close()
		usbCtx.Close()
		return fmt.Errorf("resolve endpoints: %w", err)
	}

	t.usbCtx = usbCtx
	t.dev = dev
	t.intf = intf
	t.done = done
	t.in = in
	t.out = out
	t.readBuf = make([]byte, t.config.ReadBufferSize)
	return nil
}

// Send writes a complete packet to the bulk-out endpoint.
func (t *USBTransport) Send(data []byte) error {
	t.mu.Lock()
	out := t.out
	t.mu.Unlock()

	if out == nil {
		return ErrNotConnected
	}

	for len(data) > 0 {
		n, err := out.Write(data)
		if err != nil {
			return fmt.Errorf("bulk write: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Receive reads whatever bytes the device has available, blocking up to
// timeout.
func (t *USBTransport) Receive(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	in := t.in
	buf := t.readBuf
	t.mu.Unlock()

	if in == nil {
		return nil, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := in.ReadContext(ctx, buf)
	if n > 0 {
		// A short transfer with an expired deadline still carries data;
		// hand it up before reporting anything.
		data := make([]byte, n)
		copy(data, buf[:n])
		return data, nil
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gousb.TransferTimedOut) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("bulk read: %w", err)
	}
	return nil, ErrTimeout
}

// Disconnect releases the interface and closes the device. Idempotent.
func (t *USBTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil
	}

	t.in = nil
	t.out = nil
	if t.done != nil {
		t.done()
		t.done = nil
	}
	t.intf = nil

	err := t.dev.Close()
	t.dev = nil

	if t.usbCtx != nil {
		if cerr := t.usbCtx.Close(); err == nil {
			err = cerr
		}
		t.usbCtx = nil
	}
	return err
}

// Compile-time interface satisfaction check.
var _ Transport = (*USBTransport)(nil)
