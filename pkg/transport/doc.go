// Package transport abstracts the physical channel to a HiDock recorder.
//
// The Transport interface is deliberately protocol-free: it moves opaque
// byte runs in both directions and knows nothing about Jensen packets.
// A Receive call returns whatever bytes the device has produced - a partial
// packet, a complete packet, or several packets concatenated - and the
// layer above reassembles messages with a streaming decoder.
//
// USBTransport is the production implementation over the device's bulk
// endpoints (github.com/google/gousb). SafeTransport decorates any
// Transport with a read-only command allow-list for restricted operating
// modes.
package transport
