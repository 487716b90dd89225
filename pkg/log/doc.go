// Package log captures Jensen protocol traffic as structured trace events.
//
// Events are produced by the transport and session layers and handed to a
// Logger implementation chosen by the application: FileLogger writes a
// compact CBOR stream suitable for later replay, SlogAdapter mirrors events
// to a slog.Logger for console debugging, MultiLogger fans out to both, and
// NoopLogger (or a nil logger at the call sites) disables tracing entirely.
//
// Reader streams events back out of a CBOR trace file with optional
// filtering, which is what the jensen-trace command is built on.
package log
