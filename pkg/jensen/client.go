// Package jensen implements the host side of the Jensen protocol: one
// Client per physical HiDock session, with the file, clock, settings,
// Bluetooth, and system controllers layered on top of a single
// send-then-wait command loop.
package jensen

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/jensen-protocol/jensen-go/pkg/device"
	"github.com/jensen-protocol/jensen-go/pkg/log"
	"github.com/jensen-protocol/jensen-go/pkg/transport"
	"github.com/jensen-protocol/jensen-go/pkg/version"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// Client defaults.
const (
	// DefaultCommandTimeout bounds an ordinary request/response exchange.
	DefaultCommandTimeout = 5 * time.Second

	// deviceInfoBodySize is the minimum device-info response body:
	// 4-byte version code followed by a 16-byte serial field.
	deviceInfoBodySize = 20
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Model of the target hardware, known from USB enumeration before the
	// protocol-level identity is available.
	Model device.Model

	// CommandTimeout is the default per-command deadline (default 5s).
	CommandTimeout time.Duration

	// KeepAlive configures the liveness probe.
	KeepAlive KeepAliveConfig

	// Logger receives protocol trace events. Nil disables tracing.
	Logger log.Logger
}

// Client owns one physical session to a HiDock recorder. It serializes all
// command traffic through its transport: the protocol allows exactly one
// outstanding command, so callers issuing commands concurrently from
// several goroutines must themselves serialize (the internal mutex only
// arbitrates between the keep-alive probe and the foreground caller).
type Client struct {
	config    ClientConfig
	transport transport.Transport
	logger    log.Logger
	connID    string

	// exchangeMu serializes wire exchanges between the foreground caller
	// and the keep-alive probe. seq and decoder are guarded by it.
	exchangeMu sync.Mutex
	seq        uint32
	decoder    *wire.Decoder

	connected      *atomic.Bool
	probeSuspended *atomic.Bool

	identityMu sync.RWMutex
	identity   device.Identity
	caps       device.Capabilities

	keepAlive *keepAlive

	// Feature controllers, constructed once and long-lived. They hold a
	// non-owning back-reference to this client.
	files     *Files
	clock     *Clock
	settings  *Settings
	bluetooth *Bluetooth
	system    *System
}

// NewClient creates a client over the given transport. The client takes
// exclusive ownership of the transport; nothing else may read or write it.
func NewClient(t transport.Transport, config ClientConfig) *Client {
	if config.CommandTimeout == 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	c := &Client{
		config:         config,
		transport:      t,
		logger:         logger,
		decoder:        wire.NewDecoder(),
		connected:      atomic.NewBool(false),
		probeSuspended: atomic.NewBool(false),
	}
	c.keepAlive = newKeepAlive(c, config.KeepAlive)
	c.files = &Files{client: c}
	c.clock = &Clock{client: c}
	c.settings = &Settings{client: c}
	c.bluetooth = &Bluetooth{client: c}
	c.system = &System{client: c}
	return c
}

// Files returns the file catalog and transfer controller.
func (c *Client) Files() *Files { return c.files }

// Clock returns the device clock controller.
func (c *Client) Clock() *Clock { return c.clock }

// Settings returns the settings bitfield controller.
func (c *Client) Settings() *Settings { return c.settings }

// Bluetooth returns the Bluetooth pairing/scan controller.
func (c *Client) Bluetooth() *Bluetooth { return c.bluetooth }

// System returns the storage/battery/update controller.
func (c *Client) System() *System { return c.system }

// Connect opens the transport, performs the device-info round trip that
// hydrates the session identity, recomputes the capability set, and starts
// the keep-alive probe. Calling Connect on a connected client is a no-op.
func (c *Client) Connect() (device.Identity, error) {
	if c.connected.Load() {
		return c.Identity(), nil
	}

	if err := c.transport.Connect(); err != nil {
		return device.Identity{}, fmt.Errorf("connect transport: %w", err)
	}

	c.exchangeMu.Lock()
	c.seq = 0
	c.decoder.Reset()
	c.exchangeMu.Unlock()

	c.connID = uuid.NewString()
	c.connected.Store(true)

	identity, err := c.queryDeviceInfo()
	if err != nil {
		c.connected.Store(false)
		c.transport.Disconnect()
		return device.Identity{}, fmt.Errorf("device info: %w", err)
	}

	c.identityMu.Lock()
	c.identity = identity
	// Capabilities depend on the firmware version, which is only known
	// after this first round trip; recompute on every connect.
	c.caps = device.CapabilitiesFor(identity.Model, identity.Firmware)
	c.identityMu.Unlock()

	c.keepAlive.start()
	c.logState("", "connected", "")
	return identity, nil
}

// Disconnect stops the keep-alive probe and closes the transport. It is
// idempotent and safe to call from a deferred teardown path; a command
// blocked in its wait loop fails promptly with ErrNotConnected.
func (c *Client) Disconnect() error {
	if !c.connected.Swap(false) {
		return nil
	}

	c.keepAlive.stop()
	err := c.transport.Disconnect()
	c.logState("connected", "disconnected", "")
	return err
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Identity returns the hardware identity hydrated by Connect.
func (c *Client) Identity() device.Identity {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.identity
}

// Capabilities returns the supported-feature set of the connected device.
func (c *Client) Capabilities() device.Capabilities {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.caps
}

// send issues one command and waits for the matching response with the
// default command timeout.
func (c *Client) send(id wire.CommandID, body []byte) (*wire.Message, error) {
	return c.sendTimeout(id, body, c.config.CommandTimeout)
}

// sendTimeout issues one command and waits up to timeout for a response
// whose command ID matches. Responses for other IDs - unsolicited or stale
// traffic such as a late keep-alive reply - are discarded silently and the
// wait continues.
func (c *Client) sendTimeout(id wire.CommandID, body []byte, timeout time.Duration) (*wire.Message, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()
	return c.exchangeLocked(id, body, timeout, log.CategoryCommand)
}

// exchangeLocked runs one request/response exchange. Callers must hold
// exchangeMu.
func (c *Client) exchangeLocked(id wire.CommandID, body []byte, timeout time.Duration, category log.Category) (*wire.Message, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	seq := c.nextSequence()
	packet, err := (&wire.Command{ID: id, Sequence: seq, Body: body}).Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", id, err)
	}

	if err := c.transport.Send(packet); err != nil {
		if !c.connected.Load() {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("send %s: %w", id, err)
	}
	c.logCommand(log.DirectionOut, category, id, seq, len(body), nil)

	return c.receiveLocked(id, timeout, category)
}

// receiveLocked waits up to timeout for a response whose command ID
// matches. Callers must hold exchangeMu.
func (c *Client) receiveLocked(id wire.CommandID, timeout time.Duration, category log.Category) (*wire.Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s after %s", ErrCommandTimeout, id, timeout)
		}

		data, err := c.transport.Receive(remaining)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				// Re-check the deadline at the top of the loop; a
				// malformed or empty read window is a reason to keep
				// waiting, not an immediate failure.
				continue
			}
			if !c.connected.Load() {
				return nil, ErrNotConnected
			}
			return nil, fmt.Errorf("receive %s: %w", id, err)
		}

		for _, msg := range c.decoder.Feed(data) {
			matched := msg.ID == id
			c.logCommand(log.DirectionIn, category, msg.ID, msg.Sequence, len(msg.Body), &matched)
			if matched {
				return msg, nil
			}
		}
	}
}

// nextSequence allocates the next sequence number. The counter is
// monotonic for the session's lifetime and wraps at the 32-bit boundary;
// with one command outstanding at a time a wrapped value can never collide
// with a pending request.
func (c *Client) nextSequence() uint32 {
	c.seq++
	return c.seq
}

// suspendProbe disables the keep-alive probe for the duration of a bulk
// transfer. Returns a resume function for defer.
func (c *Client) suspendProbe() func() {
	c.probeSuspended.Store(true)
	return func() { c.probeSuspended.Store(false) }
}

// requireFeature fails fast - before any bytes are sent - when the
// connected hardware cannot support the feature.
func (c *Client) requireFeature(f device.Feature) error {
	caps := c.Capabilities()
	if caps.Supports(f) {
		return nil
	}
	if caps.ModelEligible(f) {
		return fmt.Errorf("%w: %s requires newer firmware than %s", ErrUnsupportedFeature, f, caps.Firmware())
	}
	return fmt.Errorf("%w: %s not available on %s", ErrUnsupportedDevice, f, caps.Model())
}

// queryDeviceInfo performs the identity round trip and parses the result.
func (c *Client) queryDeviceInfo() (device.Identity, error) {
	msg, err := c.sendTimeout(wire.CmdGetDeviceInfo, nil, c.config.CommandTimeout)
	if err != nil {
		return device.Identity{}, err
	}
	if len(msg.Body) < deviceInfoBodySize {
		return device.Identity{}, fmt.Errorf("%w: device info body %d bytes", ErrInvalidResponse, len(msg.Body))
	}

	var code [4]byte
	copy(code[:], msg.Body[:4])

	return device.Identity{
		Model:    c.config.Model,
		Firmware: version.FromCode(code),
		Serial:   trimSerial(msg.Body[4:20]),
	}, nil
}

// trimSerial strips the zero/0xFF padding the firmware pads serial fields
// with.
func trimSerial(raw []byte) string {
	end := len(raw)
	for end > 0 && (raw[end-1] == 0x00 || raw[end-1] == 0xFF) {
		end--
	}
	return string(raw[:end])
}

// statusByte interprets the conventional single-status-byte response body:
// zero is success, anything else is a device-reported failure.
func statusByte(msg *wire.Message) error {
	if len(msg.Body) < 1 {
		return fmt.Errorf("%w: %s response has no status byte", ErrInvalidResponse, msg.ID)
	}
	if msg.Body[0] != 0 {
		return fmt.Errorf("%w: %s status %d", ErrCommandFailed, msg.ID, msg.Body[0])
	}
	return nil
}

// logCommand emits a wire-layer trace event.
func (c *Client) logCommand(dir log.Direction, category log.Category, id wire.CommandID, seq uint32, bodySize int, matched *bool) {
	identity := c.Identity()
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     category,
		Model:        identity.Model.String(),
		Serial:       identity.Serial,
		Command: &log.CommandEvent{
			CommandID:   uint16(id),
			CommandName: id.String(),
			Sequence:    seq,
			BodySize:    bodySize,
			Matched:     matched,
		},
	})
}

// logState emits a session state-change trace event.
func (c *Client) logState(oldState, newState, reason string) {
	identity := c.Identity()
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		Model:        identity.Model.String(),
		Serial:       identity.Serial,
		StateChange:  &log.StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	})
}
