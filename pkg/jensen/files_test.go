package jensen

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensen-protocol/jensen-go/internal/testharness/mock"
	"github.com/jensen-protocol/jensen-go/pkg/device"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

var testSignature = [16]byte{0xA0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

func TestListSelfDescribingCatalog(t *testing.T) {
	body := mock.CatalogHeader(2)
	body = append(body, mock.CatalogRecord(1, "20250512093045-Rec01.hda", 320000, testSignature)...)
	body = append(body, mock.CatalogRecord(5, "2025May12-101530-Call02.wav", 120000, testSignature)...)

	tr := mock.New()
	tr.Handle(wire.CmdGetFileList, mock.Reply(body))
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	entries, err := c.Files().List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "20250512093045-Rec01.hda", first.Name)
	assert.Equal(t, uint32(320000), first.Size)
	assert.Equal(t, 10*time.Second, first.Duration)
	assert.Equal(t, ModeRecording, first.Mode)
	assert.Equal(t, uint8(1), first.Version)
	assert.Equal(t, testSignature, first.Signature)
	assert.Equal(t, time.Date(2025, 5, 12, 9, 30, 45, 0, time.Local), first.CreatedAt)

	second := entries[1]
	assert.Equal(t, "2025May12-101530-Call02.wav", second.Name)
	assert.Equal(t, 10*time.Second, second.Duration)
	assert.Equal(t, ModeCall, second.Mode)
	assert.Equal(t, time.Date(2025, 5, 12, 10, 15, 30, 0, time.Local), second.CreatedAt)

	// New firmware never needs the count round trip.
	for _, id := range tr.SentIDs() {
		assert.NotEqual(t, wire.CmdGetFileCount, id)
	}
}

func TestListCountFirstOnLegacyFirmware(t *testing.T) {
	rec1 := mock.CatalogRecord(1, "20240101120000-Rec01.hda", 32000, testSignature)
	rec2 := mock.CatalogRecord(1, "20240102120000-Rec02.hda", 64000, testSignature)

	tr := mock.New()
	tr.Handle(wire.CmdGetFileCount, mock.Reply([]byte{0, 0, 0, 2}))
	// Legacy stream: no leading marker, records split across two packets
	// with the second record broken mid-way.
	split := len(rec1) + len(rec2)/2
	stream := append(append([]byte{}, rec1...), rec2...)
	tr.Handle(wire.CmdGetFileList, func(cmd *wire.Message) [][]byte {
		return [][]byte{
			mock.Packet(wire.CmdGetFileList, cmd.Sequence, stream[:split]),
			mock.Packet(wire.CmdGetFileList, cmd.Sequence, stream[split:]),
		}
	})
	c := connect(t, tr, device.ModelH1E, 5, 0, 42)

	require.True(t, c.Capabilities().NeedsFileCountFirst())

	entries, err := c.Files().List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "20240101120000-Rec01.hda", entries[0].Name)
	assert.Equal(t, "20240102120000-Rec02.hda", entries[1].Name)

	ids := tr.SentIDs()
	require.Len(t, ids, 3)
	assert.Equal(t, wire.CmdGetFileCount, ids[1])
	assert.Equal(t, wire.CmdGetFileList, ids[2])
}

func TestListEmptyLegacyCard(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetFileCount, mock.Reply([]byte{0, 0, 0, 0}))
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	entries, err := c.Files().List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Zero files: the list query is skipped entirely.
	for _, id := range tr.SentIDs() {
		assert.NotEqual(t, wire.CmdGetFileList, id)
	}
}

func TestCount(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetFileCount, mock.Reply([]byte{0, 0, 1, 0x2C}))
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	n, err := c.Files().Count()
	require.NoError(t, err)
	assert.Equal(t, 300, n)
}

func TestDownloadReassembly(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 3000)

	tr := mock.New()
	tr.Handle(wire.CmdTransferFile, func(cmd *wire.Message) [][]byte {
		assert.Equal(t, "rec.hda", string(cmd.Body))
		return [][]byte{
			mock.Packet(wire.CmdTransferFile, cmd.Sequence, payload[:1000]),
			mock.Packet(wire.CmdTransferFile, cmd.Sequence, payload[1000:2000]),
			mock.Packet(wire.CmdTransferFile, cmd.Sequence, payload[2000:]),
		}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	var buf bytes.Buffer
	var progress []uint32
	n, err := c.Files().Download(context.Background(), "rec.hda", 3000, &buf, func(received, total uint32) {
		assert.Equal(t, uint32(3000), total)
		progress = append(progress, received)
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(3000), n)
	assert.Equal(t, payload, buf.Bytes())

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.Equal(t, uint32(3000), progress[len(progress)-1], "progress must end at 100%")
}

func TestDownloadChunkedDelivery(t *testing.T) {
	payload := bytes.Repeat([]byte{0xC3}, 500)

	tr := mock.New()
	tr.SetChunkSize(64) // split every read to exercise decoder reassembly
	tr.Handle(wire.CmdTransferFile, func(cmd *wire.Message) [][]byte {
		return [][]byte{mock.Packet(wire.CmdTransferFile, cmd.Sequence, payload)}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	var buf bytes.Buffer
	n, err := c.Files().Download(context.Background(), "rec.hda", 500, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestDownloadCancelKeepsPartialData(t *testing.T) {
	tr := mock.New()
	// Only the first third ever arrives.
	tr.Handle(wire.CmdTransferFile, func(cmd *wire.Message) [][]byte {
		return [][]byte{mock.Packet(wire.CmdTransferFile, cmd.Sequence, bytes.Repeat([]byte{1}, 1000))}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	n, err := c.Files().Download(ctx, "rec.hda", 3000, &buf, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint32(1000), n)
	assert.Equal(t, 1000, buf.Len(), "partial data must be preserved")
}

func TestDownloadSuspendsProbe(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdTransferFile, func(cmd *wire.Message) [][]byte {
		return [][]byte{mock.Packet(wire.CmdTransferFile, cmd.Sequence, []byte{1, 2, 3})}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	var suspendedDuring bool
	var buf bytes.Buffer
	_, err := c.Files().Download(context.Background(), "rec.hda", 3, &buf, func(uint32, uint32) {
		suspendedDuring = c.probeSuspended.Load()
	})
	require.NoError(t, err)
	assert.True(t, suspendedDuring)
	assert.False(t, c.probeSuspended.Load(), "suspension must lift after the transfer")
}

func TestDownloadBlock(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdGetFileBlock, func(cmd *wire.Message) [][]byte {
		require.GreaterOrEqual(t, len(cmd.Body), 4)
		assert.Equal(t, []byte{0, 0, 0, 44}, cmd.Body[:4])
		assert.Equal(t, "rec.hda", string(cmd.Body[4:]))
		return [][]byte{mock.Packet(wire.CmdGetFileBlock, cmd.Sequence, bytes.Repeat([]byte{7}, 44))}
	})
	c := connect(t, tr, device.ModelH1E, 6, 0, 0)

	var buf bytes.Buffer
	n, err := c.Files().DownloadBlock(context.Background(), "rec.hda", 44, &buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(44), n)
	assert.Equal(t, 44, buf.Len())
}

func TestDelete(t *testing.T) {
	tr := mock.New()
	tr.Handle(wire.CmdDeleteFile, func(cmd *wire.Message) [][]byte {
		assert.Equal(t, "20240101120000-Rec01.hda", string(cmd.Body))
		return [][]byte{mock.Packet(wire.CmdDeleteFile, cmd.Sequence, []byte{0})}
	})
	c := connect(t, tr, device.ModelH1, 1, 0, 0)

	assert.NoError(t, c.Files().Delete("20240101120000-Rec01.hda"))
}

func TestRecordingDuration(t *testing.T) {
	tests := []struct {
		name       string
		encVersion uint8
		size       uint32
		want       time.Duration
	}{
		{"v1 32kBps", 1, 320000, 10 * time.Second},
		{"v2 skips header", 2, 96044, time.Second},
		{"v3 skips header", 3, 192044, time.Second},
		{"v2 tiny file clamps to zero", 2, 40, 0},
		{"v5 12kBps", 5, 120000, 10 * time.Second},
		{"v6 16kBps", 6, 160000, 10 * time.Second},
		{"v7 10kBps", 7, 100000, 10 * time.Second},
		{"unknown version falls back to v1 rate", 99, 320000, 10 * time.Second},
		{"zero size", 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recordingDuration(tt.encVersion, tt.size))
		})
	}
}

func TestParseFilenameTime(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		want   time.Time
		wantOK bool
	}{
		{
			"digit run prefix",
			"20250512093045-Rec01.hda",
			time.Date(2025, 5, 12, 9, 30, 45, 0, time.Local),
			true,
		},
		{
			"digit run with extra digits",
			"202505120930451234.wav",
			time.Date(2025, 5, 12, 9, 30, 45, 0, time.Local),
			true,
		},
		{
			"month name form",
			"2025May12-093045-Call02.wav",
			time.Date(2025, 5, 12, 9, 30, 45, 0, time.Local),
			true,
		},
		{"too few digits", "2025051209-Rec.hda", time.Time{}, false},
		{"impossible date", "20251399250000.hda", time.Time{}, false},
		{"no timestamp at all", "memo.wav", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFilenameTime(tt.file)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRecordingModeFromName(t *testing.T) {
	tests := []struct {
		file string
		want RecordingMode
	}{
		{"20250512093045-Rec01.hda", ModeRecording},
		{"20250512093045-Call07.wav", ModeCall},
		{"20250512093045-Rec.hda", ModeRecording},
		{"memo.wav", ModeUnknown},
		{"Record-of-things.wav", ModeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, recordingModeFromName(tt.file), tt.file)
	}
}

func TestCatalogRecordFiltersNameZeroBytes(t *testing.T) {
	rec := mock.CatalogRecord(1, "abc\x00\x00", 100, testSignature)
	entry, consumed := parseCatalogRecord(rec)
	require.NotZero(t, consumed)
	assert.Equal(t, "abc", entry.Name)
}

func TestCatalogParserTruncatedRecord(t *testing.T) {
	rec := mock.CatalogRecord(1, "file.hda", 100, testSignature)

	p := newCatalogParser()
	p.consume(rec[:10])
	assert.Empty(t, p.entries)
	p.consume(rec[10:])
	require.Len(t, p.entries, 1)
	assert.Equal(t, "file.hda", p.entries[0].Name)
}
