// Package version provides firmware version parsing and comparison.
//
// HiDock firmware identifies itself with a 4-byte version code in the
// device-info response. Bytes 1..3 are the major, minor, and patch
// components; rendered as "major.minor.patch" for display, or packed
// big-endian into a single number (major<<16 | minor<<8 | patch) for
// ordering, which is how the firmware itself compares versions.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Firmware is a parsed firmware version.
type Firmware struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// Parse parses a "major.minor.patch" version string.
func Parse(s string) (Firmware, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Firmware{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	var components [3]uint8
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil || part == "" {
			return Firmware{}, fmt.Errorf("invalid version %q: bad component %q", s, part)
		}
		components[i] = uint8(v)
	}

	return Firmware{Major: components[0], Minor: components[1], Patch: components[2]}, nil
}

// FromCode parses the 4-byte version code from a device-info response.
// The leading byte is reserved; the remaining three are major/minor/patch.
func FromCode(code [4]byte) Firmware {
	return Firmware{Major: code[1], Minor: code[2], Patch: code[3]}
}

// FromNumber unpacks a packed version number.
func FromNumber(n uint32) Firmware {
	return Firmware{
		Major: uint8(n >> 16),
		Minor: uint8(n >> 8),
		Patch: uint8(n),
	}
}

// String returns the version as "major.minor.patch".
func (f Firmware) String() string {
	return fmt.Sprintf("%d.%d.%d", f.Major, f.Minor, f.Patch)
}

// Number returns the packed numeric form used for ordering.
func (f Firmware) Number() uint32 {
	return uint32(f.Major)<<16 | uint32(f.Minor)<<8 | uint32(f.Patch)
}

// AtLeast reports whether this version is other or newer.
func (f Firmware) AtLeast(other Firmware) bool {
	return f.Number() >= other.Number()
}

// IsZero reports whether the version is unset.
func (f Firmware) IsZero() bool {
	return f.Number() == 0
}
