package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensen-protocol/jensen-go/pkg/device"
)

// fakeEnumerator replays a scripted sequence of bus snapshots; the last
// snapshot repeats.
type fakeEnumerator struct {
	mu        sync.Mutex
	snapshots [][]DeviceHandle
	errs      []error
	calls     int
}

func (f *fakeEnumerator) Enumerate() ([]DeviceHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	return f.snapshots[i], nil
}

func handle(model device.Model, pid uint16, addr int) DeviceHandle {
	return DeviceHandle{Model: model, VendorID: device.VendorID, ProductID: pid, Bus: 1, Address: addr}
}

func collect(ch <-chan DeviceHandle, timeout time.Duration) (DeviceHandle, bool) {
	select {
	case h, ok := <-ch:
		return h, ok
	case <-time.After(timeout):
		return DeviceHandle{}, false
	}
}

func TestWatcherReportsInitialDevices(t *testing.T) {
	h1 := handle(device.ModelH1E, device.ProductIDH1E, 4)
	enum := &fakeEnumerator{snapshots: [][]DeviceHandle{{h1}}}

	w := NewWatcher(WatcherConfig{PollInterval: 10 * time.Millisecond, Enumerator: enum})
	added, _, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	got, ok := collect(added, time.Second)
	require.True(t, ok)
	assert.Equal(t, h1, got)
}

func TestWatcherAttachDetach(t *testing.T) {
	h1 := handle(device.ModelH1E, device.ProductIDH1E, 4)
	h2 := handle(device.ModelP1, device.ProductIDP1, 5)
	enum := &fakeEnumerator{snapshots: [][]DeviceHandle{
		{h1},
		{h1, h2},
		{h2},
	}}

	w := NewWatcher(WatcherConfig{PollInterval: 10 * time.Millisecond, Enumerator: enum})
	added, removed, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	first, ok := collect(added, time.Second)
	require.True(t, ok)
	assert.Equal(t, h1.Key(), first.Key())

	second, ok := collect(added, time.Second)
	require.True(t, ok)
	assert.Equal(t, h2.Key(), second.Key())

	gone, ok := collect(removed, time.Second)
	require.True(t, ok)
	assert.Equal(t, h1.Key(), gone.Key())
}

func TestWatcherReplugCountsAsNewDevice(t *testing.T) {
	before := handle(device.ModelH1, device.ProductIDH1, 4)
	after := handle(device.ModelH1, device.ProductIDH1, 9) // new address
	enum := &fakeEnumerator{snapshots: [][]DeviceHandle{
		{before},
		{},
		{after},
	}}

	w := NewWatcher(WatcherConfig{PollInterval: 10 * time.Millisecond, Enumerator: enum})
	added, removed, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	_, ok := collect(added, time.Second)
	require.True(t, ok)
	_, ok = collect(removed, time.Second)
	require.True(t, ok)

	replugged, ok := collect(added, time.Second)
	require.True(t, ok)
	assert.Equal(t, after.Key(), replugged.Key())
	assert.NotEqual(t, before.Key(), after.Key())
}

func TestWatcherStopClosesChannels(t *testing.T) {
	enum := &fakeEnumerator{snapshots: [][]DeviceHandle{{}}}
	w := NewWatcher(WatcherConfig{PollInterval: 10 * time.Millisecond, Enumerator: enum})
	added, removed, err := w.Start(context.Background())
	require.NoError(t, err)

	w.Stop()

	_, open := collect(added, time.Second)
	assert.False(t, open)
	_, open = collect(removed, time.Second)
	assert.False(t, open)

	w.Stop() // idempotent
}

func TestWatcherDoubleStartFails(t *testing.T) {
	enum := &fakeEnumerator{snapshots: [][]DeviceHandle{{}}}
	w := NewWatcher(WatcherConfig{PollInterval: 10 * time.Millisecond, Enumerator: enum})
	_, _, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	_, _, err = w.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestWatcherRecoversFromEnumerationErrors(t *testing.T) {
	h1 := handle(device.ModelH1E, device.ProductIDH1E, 4)
	enum := &fakeEnumerator{
		errs:      []error{errors.New("libusb: interrupted")},
		snapshots: [][]DeviceHandle{nil, {h1}},
	}

	w := NewWatcher(WatcherConfig{PollInterval: 10 * time.Millisecond, Enumerator: enum})
	added, _, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	got, ok := collect(added, 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, h1.Key(), got.Key())
}

func TestDeviceHandleKeyAndString(t *testing.T) {
	h := handle(device.ModelP1, device.ProductIDP1, 7)
	assert.Equal(t, "1:7:af0e", h.Key())
	assert.Contains(t, h.String(), "P1")
	assert.Contains(t, h.String(), "addr 7")
}

func TestBackoffGrowsAndResets(t *testing.T) {
	b := newBackoff()
	first := b.next()
	second := b.next()
	assert.GreaterOrEqual(t, first, errorBackoffInitial)
	assert.Greater(t, second, first)

	for i := 0; i < 10; i++ {
		b.next()
	}
	capped := b.next()
	assert.LessOrEqual(t, capped, errorBackoffMax+time.Duration(errorBackoffJitter*float64(errorBackoffMax)))

	b.reset()
	assert.GreaterOrEqual(t, b.next(), errorBackoffInitial)
}
