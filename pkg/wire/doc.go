// Package wire implements the Jensen packet format spoken by HiDock
// recorders over USB.
//
// Every packet, in both directions, has the same layout (all multi-byte
// fields big-endian):
//
//	offset 0  : sync bytes 0x12 0x34
//	offset 2  : command ID (uint16)
//	offset 4  : sequence number (uint32)
//	offset 8  : length word (uint32); the low 24 bits are the body
//	            length, the high byte is the length of a trailing
//	            checksum (0 on all firmware seen so far)
//	offset 12 : body
//
// The header layout was pinned against USB captures of H1E firmware 5.1.x
// and P1 firmware 1.2.x; it matches what the vendor's own host software
// emits.
//
// Because the transport delivers arbitrary byte runs (partial packets,
// several packets back to back, or leading garbage after a device reset),
// decoding is a streaming operation: Decoder consumes whatever complete
// messages are present in a buffer, resynchronizes past bytes that do not
// start a valid header, and leaves incomplete trailing data for the next
// read.
package wire
