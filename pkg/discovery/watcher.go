package discovery

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Watcher defaults.
const (
	// DefaultPollInterval is the bus scan interval.
	DefaultPollInterval = 2 * time.Second

	// errorBackoffInitial and errorBackoffMax bound the retry delay after
	// a failed enumeration (libusb hiccups during replug storms).
	errorBackoffInitial = 1 * time.Second
	errorBackoffMax     = 30 * time.Second

	errorBackoffMultiplier = 2.0
	errorBackoffJitter     = 0.25
)

// WatcherConfig configures the hotplug watcher.
type WatcherConfig struct {
	// PollInterval between bus scans (default 2s).
	PollInterval time.Duration

	// Enumerator scans the bus. Nil uses USBEnumerator.
	Enumerator Enumerator
}

// Watcher polls the USB bus and reports attach/detach events.
type Watcher struct {
	config WatcherConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher; call Start to begin polling.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Enumerator == nil {
		config.Enumerator = USBEnumerator{}
	}
	return &Watcher{config: config}
}

// Start begins polling. Devices present at the first scan are delivered
// as attach events. Both channels close when ctx is cancelled or Stop is
// called. A second Start without an intervening Stop fails.
func (w *Watcher) Start(ctx context.Context) (added, removed <-chan DeviceHandle, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil, nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel

	addCh := make(chan DeviceHandle, 8)
	removeCh := make(chan DeviceHandle, 8)
	go w.loop(ctx, addCh, removeCh)
	return addCh, removeCh, nil
}

// Stop cancels polling and closes the event channels. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	w.cancel()
}

func (w *Watcher) loop(ctx context.Context, added, removed chan<- DeviceHandle) {
	defer close(added)
	defer close(removed)

	known := make(map[string]DeviceHandle)
	backoff := newBackoff()

	for {
		handles, err := w.config.Enumerator.Enumerate()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff.next()):
			}
			continue
		}
		backoff.reset()

		current := make(map[string]DeviceHandle, len(handles))
		for _, h := range handles {
			current[h.Key()] = h
			if _, seen := known[h.Key()]; !seen {
				if !emit(ctx, added, h) {
					return
				}
			}
		}
		for key, h := range known {
			if _, still := current[key]; !still {
				if !emit(ctx, removed, h) {
					return
				}
			}
		}
		known = current

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.config.PollInterval):
		}
	}
}

func emit(ctx context.Context, ch chan<- DeviceHandle, h DeviceHandle) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- h:
		return true
	}
}

// backoff grows the retry delay exponentially with jitter, so a wedged
// libusb does not get hammered at the poll rate.
type backoff struct {
	current time.Duration
	rng     *rand.Rand
}

func newBackoff() *backoff {
	return &backoff{
		current: errorBackoffInitial,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(b.rng.Float64() * errorBackoffJitter * float64(d))
	b.current = time.Duration(float64(b.current) * errorBackoffMultiplier)
	if b.current > errorBackoffMax {
		b.current = errorBackoffMax
	}
	return d + jitter
}

func (b *backoff) reset() {
	b.current = errorBackoffInitial
}
