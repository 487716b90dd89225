package jensen

import (
	"sync"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/log"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// Keep-alive constants.
const (
	// DefaultProbeInterval is the interval between liveness probes.
	DefaultProbeInterval = 5 * time.Second

	// DefaultProbeTimeout bounds one probe exchange. Kept short: the
	// probe is low priority and must not hold the channel long.
	DefaultProbeTimeout = 1 * time.Second
)

// KeepAliveConfig configures the liveness probe.
type KeepAliveConfig struct {
	// Interval between probes (default 5s).
	Interval time.Duration

	// ProbeTimeout bounds one probe exchange (default 1s).
	ProbeTimeout time.Duration

	// Disabled turns the probe off entirely.
	Disabled bool
}

// keepAlive periodically confirms the channel is still responsive between
// user-issued commands. Probe failures are swallowed: the probe is
// best-effort liveness only, and a dead channel will surface through the
// next real command anyway.
//
// The probe never contends with a foreground command: it skips its cycle
// when the suppression flag is set (bulk transfers) or when the exchange
// mutex is held.
type keepAlive struct {
	client *Client
	config KeepAliveConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func newKeepAlive(client *Client, config KeepAliveConfig) *keepAlive {
	if config.Interval == 0 {
		config.Interval = DefaultProbeInterval
	}
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = DefaultProbeTimeout
	}
	return &keepAlive{client: client, config: config}
}

// start launches the probe loop. Safe to call repeatedly.
func (ka *keepAlive) start() {
	if ka.config.Disabled {
		return
	}

	ka.mu.Lock()
	defer ka.mu.Unlock()
	if ka.running {
		return
	}
	ka.running = true
	ka.stopCh = make(chan struct{})
	go ka.loop(ka.stopCh)
}

// stop cancels the probe loop deterministically. Safe to call repeatedly,
// including when never started.
func (ka *keepAlive) stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
}

func (ka *keepAlive) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(ka.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ka.probe()
		}
	}
}

// probe runs one best-effort liveness exchange.
func (ka *keepAlive) probe() {
	c := ka.client

	// Skip the cycle during bulk transfers; the suppression flag has no
	// timeout of its own.
	if c.probeSuspended.Load() {
		return
	}

	// Never queue behind a foreground command; a command in flight is
	// itself proof of liveness.
	if !c.exchangeMu.TryLock() {
		return
	}
	defer c.exchangeMu.Unlock()

	if _, err := c.exchangeLocked(wire.CmdGetDeviceInfo, nil, ka.config.ProbeTimeout, log.CategoryKeepAlive); err != nil {
		// Swallowed: best-effort liveness only.
		return
	}
}
