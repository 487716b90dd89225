package mock

import "encoding/binary"

// DeviceInfoBody builds a device-info response body: a 4-byte version
// code (high byte reserved, then major.minor.patch) followed by the
// 16-byte zero-padded serial field.
func DeviceInfoBody(major, minor, patch uint8, serial string) []byte {
	body := make([]byte, 20)
	body[1] = major
	body[2] = minor
	body[3] = patch
	copy(body[4:20], serial)
	return body
}

// CatalogHeader builds the self-describing catalog prefix: the 0xFF 0xFF
// marker and the 4-byte record count.
func CatalogHeader(count uint32) []byte {
	out := []byte{0xFF, 0xFF, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(out[2:], count)
	return out
}

// CatalogRecord builds one catalog record: encoding version, 3-byte name
// length, name, 4-byte size, 6 reserved bytes, 16-byte signature.
func CatalogRecord(encVersion uint8, name string, size uint32, signature [16]byte) []byte {
	out := make([]byte, 0, 30+len(name))
	out = append(out, encVersion, byte(len(name)>>16), byte(len(name)>>8), byte(len(name)))
	out = append(out, name...)
	var sz [4]byte
	binary.BigEndian.PutUint32(sz[:], size)
	out = append(out, sz[:]...)
	out = append(out, make([]byte, 6)...)
	out = append(out, signature[:]...)
	return out
}
