package jensen

import (
	"fmt"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// clockBodySize is the BCD clock body: 7 bytes packing the 14 digits of
// YYYYMMDDHHMMSS, two digits per byte.
const clockBodySize = 7

// Clock is the device real-time-clock controller.
type Clock struct {
	client *Client
}

// Get reads the device clock. ok is false when the device reports an
// unset clock (an all-zero body); the returned time is zero in that case.
func (cl *Clock) Get() (t time.Time, ok bool, err error) {
	msg, err := cl.client.send(wire.CmdGetDeviceTime, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(msg.Body) < clockBodySize {
		return time.Time{}, false, fmt.Errorf("%w: clock body %d bytes", ErrInvalidResponse, len(msg.Body))
	}

	digits := make([]byte, 0, clockBodySize*2)
	zero := true
	for _, b := range msg.Body[:clockBodySize] {
		hi, lo := b>>4, b&0x0F
		if hi > 9 || lo > 9 {
			return time.Time{}, false, fmt.Errorf("%w: clock byte 0x%02X is not BCD", ErrInvalidResponse, b)
		}
		if b != 0 {
			zero = false
		}
		digits = append(digits, '0'+hi, '0'+lo)
	}
	if zero {
		// Unset clock, reported as all zeros after a battery drain.
		return time.Time{}, false, nil
	}

	t, err = time.ParseInLocation("20060102150405", string(digits), time.Local)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: clock digits %q: %v", ErrInvalidResponse, digits, err)
	}
	return t, true, nil
}

// Set writes the device clock.
func (cl *Clock) Set(t time.Time) error {
	digits := t.Format("20060102150405")
	body := make([]byte, clockBodySize)
	for i := 0; i < clockBodySize; i++ {
		body[i] = (digits[2*i]-'0')<<4 | (digits[2*i+1] - '0')
	}

	msg, err := cl.client.send(wire.CmdSetDeviceTime, body)
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// FormatTime renders a clock reading the way the device UI does. An unset
// clock renders as "unknown".
func FormatTime(t time.Time, ok bool) string {
	if !ok {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}
