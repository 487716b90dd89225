package jensen

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/log"
	"github.com/jensen-protocol/jensen-go/pkg/transport"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// File transfer constants.
const (
	// DefaultListTimeout bounds a catalog listing.
	DefaultListTimeout = 30 * time.Second

	// DefaultDownloadTimeout bounds a whole file download. Long: a full
	// card over USB 2.0 full-speed takes minutes.
	DefaultDownloadTimeout = 8 * time.Minute

	// listQuietWindow ends a best-effort listing (no known total) once the
	// device has gone quiet for this long.
	listQuietWindow = 2 * time.Second

	// downloadReadSlice is the per-read timeout inside a download; short
	// so cancellation stays responsive.
	downloadReadSlice = 1 * time.Second

	// progressGranularity is the minimum progress fraction between
	// callback invocations.
	progressGranularity = 0.05
)

// RecordingMode is the capture mode inferred from a filename suffix.
type RecordingMode uint8

const (
	// ModeUnknown is a filename without a recognized mode suffix.
	ModeUnknown RecordingMode = iota
	// ModeRecording is a standalone microphone recording.
	ModeRecording
	// ModeCall is a call recording.
	ModeCall
)

// String returns the mode name.
func (m RecordingMode) String() string {
	switch m {
	case ModeRecording:
		return "recording"
	case ModeCall:
		return "call"
	default:
		return "unknown"
	}
}

// FileEntry describes one recording in the device catalog.
type FileEntry struct {
	// Name is the on-device filename.
	Name string

	// Size is the declared byte length.
	Size uint32

	// Duration is computed from the encoding version and size.
	Duration time.Duration

	// CreatedAt is parsed from the filename; zero when the filename
	// follows neither timestamp convention.
	CreatedAt time.Time

	// Version is the codec/encoding version byte.
	Version uint8

	// Signature is the device-computed content signature.
	Signature [16]byte

	// Mode is the inferred recording mode.
	Mode RecordingMode
}

// Files is the file catalog and transfer controller.
type Files struct {
	client *Client
}

// Count queries the number of files on the card.
func (f *Files) Count() (int, error) {
	msg, err := f.client.send(wire.CmdGetFileCount, nil)
	if err != nil {
		return 0, err
	}
	if len(msg.Body) < 4 {
		return 0, fmt.Errorf("%w: file count body %d bytes", ErrInvalidResponse, len(msg.Body))
	}
	return int(binary.BigEndian.Uint32(msg.Body)), nil
}

// List retrieves the file catalog.
//
// On firmware that predates the self-describing catalog, the total is
// fetched with a count query first and the listing accumulates until that
// many records have arrived. Newer firmware either declares the total in a
// leading marker or streams records until it goes quiet, in which case the
// listing is best-effort: whatever parsed cleanly is returned.
func (f *Files) List() ([]FileEntry, error) {
	expected := -1
	if f.client.Capabilities().NeedsFileCountFirst() {
		n, err := f.Count()
		if err != nil {
			return nil, fmt.Errorf("file count: %w", err)
		}
		expected = n
		if n == 0 {
			return nil, nil
		}
	}

	c := f.client
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	seq := c.nextSequence()
	packet, err := (&wire.Command{ID: wire.CmdGetFileList, Sequence: seq}).Encode()
	if err != nil {
		return nil, err
	}
	if err := c.transport.Send(packet); err != nil {
		if !c.connected.Load() {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("send %s: %w", wire.CmdGetFileList, err)
	}
	c.logCommand(log.DirectionOut, log.CategoryCommand, wire.CmdGetFileList, seq, 0, nil)

	parser := newCatalogParser()
	deadline := time.Now().Add(DefaultListTimeout)
	lastData := time.Now()

	for {
		if expected < 0 && parser.total >= 0 {
			expected = parser.total
		}
		if expected >= 0 && len(parser.entries) >= expected {
			return parser.entries[:expected], nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if expected < 0 {
				// Best-effort catalog: keep what parsed cleanly.
				return parser.entries, nil
			}
			return nil, fmt.Errorf("%w: file list after %s", ErrCommandTimeout, DefaultListTimeout)
		}

		data, err := c.transport.Receive(min(remaining, listQuietWindow))
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				if expected < 0 && parser.sawData && time.Since(lastData) >= listQuietWindow {
					return parser.entries, nil
				}
				continue
			}
			if !c.connected.Load() {
				return nil, ErrNotConnected
			}
			return nil, fmt.Errorf("receive file list: %w", err)
		}
		lastData = time.Now()

		for _, msg := range c.decoder.Feed(data) {
			matched := msg.ID == wire.CmdGetFileList
			c.logCommand(log.DirectionIn, log.CategoryCommand, msg.ID, msg.Sequence, len(msg.Body), &matched)
			if matched {
				parser.consume(msg.Body)
			}
		}
	}
}

// Download streams a file into w, accumulating transfer messages until
// expectedSize bytes have arrived. Progress is reported in steps of at
// least 5%, always ending at 100% on completion.
//
// If the stream stalls past the deadline
// after at least one byte arrived, Download returns the byte count written
// so far with a nil error - callers must compare the count against
// expectedSize. A stall with zero bytes is a hard ErrCommandTimeout.
func (f *Files) Download(ctx context.Context, name string, expectedSize uint32, w io.Writer, onProgress func(received, total uint32)) (uint32, error) {
	c := f.client

	resume := c.suspendProbe()
	defer resume()

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if !c.connected.Load() {
		return 0, ErrNotConnected
	}

	seq := c.nextSequence()
	packet, err := (&wire.Command{ID: wire.CmdTransferFile, Sequence: seq, Body: []byte(name)}).Encode()
	if err != nil {
		return 0, err
	}
	if err := c.transport.Send(packet); err != nil {
		if !c.connected.Load() {
			return 0, ErrNotConnected
		}
		return 0, fmt.Errorf("send %s: %w", wire.CmdTransferFile, err)
	}
	c.logCommand(log.DirectionOut, log.CategoryCommand, wire.CmdTransferFile, seq, len(name), nil)

	var received uint32
	lastReported := -1.0
	report := func() {
		if onProgress == nil || expectedSize == 0 {
			return
		}
		fraction := float64(received) / float64(expectedSize)
		if fraction >= 1 {
			fraction = 1
		}
		if fraction == 1 || fraction-lastReported >= progressGranularity {
			lastReported = fraction
			onProgress(received, expectedSize)
		}
	}

	deadline := time.Now().Add(DefaultDownloadTimeout)
	for received < expectedSize {
		if err := ctx.Err(); err != nil {
			return received, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if received == 0 {
				return 0, fmt.Errorf("%w: no download data after %s", ErrCommandTimeout, DefaultDownloadTimeout)
			}
			return received, nil // partial data kept
		}

		data, err := c.transport.Receive(min(remaining, downloadReadSlice))
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if !c.connected.Load() {
				return received, ErrNotConnected
			}
			return received, fmt.Errorf("receive download: %w", err)
		}

		for _, msg := range c.decoder.Feed(data) {
			if msg.ID != wire.CmdTransferFile {
				matched := false
				c.logCommand(log.DirectionIn, log.CategoryCommand, msg.ID, msg.Sequence, len(msg.Body), &matched)
				continue
			}
			if _, err := w.Write(msg.Body); err != nil {
				return received, fmt.Errorf("write download: %w", err)
			}
			received += uint32(len(msg.Body))
			report()
		}
	}

	report()
	return received, nil
}

// DownloadBlock streams the first length bytes of a file into w, using
// the partial-transfer command. Useful for peeking headers without
// pulling a whole recording. The same best-effort degrade as Download
// applies.
func (f *Files) DownloadBlock(ctx context.Context, name string, length uint32, w io.Writer) (uint32, error) {
	c := f.client

	resume := c.suspendProbe()
	defer resume()

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if !c.connected.Load() {
		return 0, ErrNotConnected
	}

	body := make([]byte, 4+len(name))
	binary.BigEndian.PutUint32(body, length)
	copy(body[4:], name)

	seq := c.nextSequence()
	packet, err := (&wire.Command{ID: wire.CmdGetFileBlock, Sequence: seq, Body: body}).Encode()
	if err != nil {
		return 0, err
	}
	if err := c.transport.Send(packet); err != nil {
		if !c.connected.Load() {
			return 0, ErrNotConnected
		}
		return 0, fmt.Errorf("send %s: %w", wire.CmdGetFileBlock, err)
	}
	c.logCommand(log.DirectionOut, log.CategoryCommand, wire.CmdGetFileBlock, seq, len(body), nil)

	var received uint32
	deadline := time.Now().Add(DefaultDownloadTimeout)
	for received < length {
		if err := ctx.Err(); err != nil {
			return received, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if received == 0 {
				return 0, fmt.Errorf("%w: no block data after %s", ErrCommandTimeout, DefaultDownloadTimeout)
			}
			return received, nil
		}

		data, err := c.transport.Receive(min(remaining, downloadReadSlice))
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if !c.connected.Load() {
				return received, ErrNotConnected
			}
			return received, fmt.Errorf("receive block: %w", err)
		}

		for _, msg := range c.decoder.Feed(data) {
			if msg.ID != wire.CmdGetFileBlock {
				matched := false
				c.logCommand(log.DirectionIn, log.CategoryCommand, msg.ID, msg.Sequence, len(msg.Body), &matched)
				continue
			}
			if _, err := w.Write(msg.Body); err != nil {
				return received, fmt.Errorf("write block: %w", err)
			}
			received += uint32(len(msg.Body))
		}
	}
	return received, nil
}

// Delete removes a file from the card.
func (f *Files) Delete(name string) error {
	msg, err := f.client.send(wire.CmdDeleteFile, []byte(name))
	if err != nil {
		return err
	}
	return statusByte(msg)
}

// catalogMarker opens a catalog stream that declares its total up front.
var catalogMarker = []byte{0xFF, 0xFF}

// catalogRecordOverhead is the fixed part of a catalog record: version
// byte, 3-byte name length, 4-byte size, 6 reserved bytes, 16-byte
// signature.
const catalogRecordOverhead = 30

// catalogParser incrementally parses catalog records out of accumulated
// response bodies. A record is only consumed when it fits completely in
// the remaining buffer; a truncated trailing record is kept for the next
// body.
type catalogParser struct {
	buf     []byte
	entries []FileEntry
	total   int // -1 until a leading count marker is seen
	started bool
	sawData bool
}

func newCatalogParser() *catalogParser {
	return &catalogParser{total: -1}
}

func (p *catalogParser) consume(body []byte) {
	if len(body) > 0 {
		p.sawData = true
	}
	p.buf = append(p.buf, body...)

	if !p.started {
		// Optional leading marker plus 4-byte total count.
		if len(p.buf) < 2 {
			return
		}
		if p.buf[0] == catalogMarker[0] && p.buf[1] == catalogMarker[1] {
			if len(p.buf) < 6 {
				return
			}
			p.total = int(binary.BigEndian.Uint32(p.buf[2:6]))
			p.buf = p.buf[6:]
		}
		p.started = true
	}

	for {
		entry, consumed := parseCatalogRecord(p.buf)
		if consumed == 0 {
			return
		}
		p.buf = p.buf[consumed:]
		p.entries = append(p.entries, entry)
	}
}

// parseCatalogRecord parses one record from the front of buf. Returns
// consumed == 0 when the buffer does not hold a complete record.
func parseCatalogRecord(buf []byte) (FileEntry, int) {
	if len(buf) < 4 {
		return FileEntry{}, 0
	}

	encVersion := buf[0]
	nameLen := int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	total := catalogRecordOverhead + nameLen
	if len(buf) < total {
		return FileEntry{}, 0
	}

	// Name field is padded with zero bytes; filter them out.
	nameBytes := make([]byte, 0, nameLen)
	for _, b := range buf[4 : 4+nameLen] {
		if b != 0 {
			nameBytes = append(nameBytes, b)
		}
	}
	name := string(nameBytes)

	offset := 4 + nameLen
	size := binary.BigEndian.Uint32(buf[offset:])
	offset += 4
	offset += 6 // reserved

	entry := FileEntry{
		Name:     name,
		Size:     size,
		Duration: recordingDuration(encVersion, size),
		Version:  encVersion,
		Mode:     recordingModeFromName(name),
	}
	copy(entry.Signature[:], buf[offset:offset+16])
	if ts, ok := parseFilenameTime(name); ok {
		entry.CreatedAt = ts
	}
	return entry, total
}

// recordingDuration computes the playback duration from the encoding
// version byte and the declared size. Divisors are bytes per second for
// the version's codec; versions 2 and 3 carry a 44-byte header that is
// excluded before division.
func recordingDuration(encVersion uint8, size uint32) time.Duration {
	seconds := 0.0
	switch encVersion {
	case 2:
		seconds = headerlessSeconds(size, 96000)
	case 3:
		seconds = headerlessSeconds(size, 192000)
	case 5:
		seconds = float64(size) / 12000
	case 6:
		seconds = float64(size) / 16000
	case 7:
		seconds = float64(size) / 10000
	default: // version 1 and anything unrecognized
		seconds = float64(size) / 32000
	}
	return time.Duration(seconds * float64(time.Second))
}

func headerlessSeconds(size uint32, divisor float64) float64 {
	if size <= 44 {
		return 0
	}
	return float64(size-44) / divisor
}

// Filename timestamp conventions.
var (
	// digitRunPattern matches names opening with a 14-digit
	// YYYYMMDDHHMMSS run, e.g. "20250512093045REC01.wav".
	digitRunPattern = regexp.MustCompile(`^(\d{14})`)

	// dateCodePattern matches the newer "2025May12-093045" prefix.
	dateCodePattern = regexp.MustCompile(`^(\d{4}[A-Z][a-z]{2}\d{2}-\d{6})`)

	// modeSuffixPattern captures the mode tag before the extension,
	// e.g. "...-Rec44.hda" or "...-Call07.hda".
	modeSuffixPattern = regexp.MustCompile(`-(Rec|Call)\d*\.[A-Za-z0-9]+$`)
)

// parseFilenameTime infers the creation time from either filename
// timestamp convention. A name matching neither yields ok == false, never
// an error.
func parseFilenameTime(name string) (time.Time, bool) {
	if m := digitRunPattern.FindStringSubmatch(name); m != nil {
		if ts, err := time.ParseInLocation("20060102150405", m[1], time.Local); err == nil {
			return ts, true
		}
		return time.Time{}, false
	}
	if m := dateCodePattern.FindStringSubmatch(name); m != nil {
		if ts, err := time.ParseInLocation("2006Jan02-150405", m[1], time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// recordingModeFromName infers the capture mode from the filename suffix.
func recordingModeFromName(name string) RecordingMode {
	m := modeSuffixPattern.FindStringSubmatch(name)
	if m == nil {
		return ModeUnknown
	}
	switch m[1] {
	case "Rec":
		return ModeRecording
	case "Call":
		return ModeCall
	default:
		return ModeUnknown
	}
}
