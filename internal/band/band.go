package band

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/tremolink/internal/config"
	"github.com/srg/tremolink/internal/groutine"
	"github.com/srg/tremolink/internal/ringchan"
	"github.com/srg/tremolink/internal/wire"
)

// GATT layout of the band's control service.
const (
	ControlServiceUUID          = "12345678-1234-1234-1234-1234567890ab"
	CommandCharacteristicUUID   = "87654321-4321-4321-4321-abcdefabcdef"
	TelemetryCharacteristicUUID = "99999999-1111-2222-3333-444444444444"
)

// State is the connection lifecycle phase of the manager.
type State int

const (
	Disconnected State = iota
	Discovering
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Discovering:
		return "discovering"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	telemetryBuffer  = 128
	stateEventBuffer = 8
)

// Manager owns the connection to the band: discovery, the live link, the
// telemetry feed, and serialized command writes. All state transitions go
// through setState so observers see them in order.
type Manager struct {
	cfg *config.BandConfig
	log *logrus.Logger

	mu    sync.Mutex
	state State
	peer  Peer

	// seen tracks advertisements observed during the current scan, keyed by
	// address. Scan callbacks arrive on the radio goroutine while snapshots
	// come from callers, hence the lock-free map.
	seen *hashmap.Map[string, SeenPeer]

	telemetry *ringchan.RingChannel[wire.TelemetryEvent]
	states    *ringchan.RingChannel[State]
	decoder   *wire.Decoder

	writeBusy atomic.Bool
}

// NewManager creates a manager in the Disconnected state.
func NewManager(cfg *config.BandConfig, log *logrus.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       log,
		state:     Disconnected,
		seen:      hashmap.New[string, SeenPeer](),
		telemetry: ringchan.New[wire.TelemetryEvent](telemetryBuffer),
		states:    ringchan.New[State](stateEventBuffer),
		decoder:   wire.NewDecoder(log),
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// States exposes lifecycle transitions as a bounded feed. When the consumer
// lags, older transitions are dropped in favor of newer ones.
func (m *Manager) States() <-chan State {
	return m.states.C()
}

// Telemetry exposes decoded events from the band. The feed is bounded and
// overwrites oldest on overflow so a slow consumer never stalls the link.
func (m *Manager) Telemetry() <-chan wire.TelemetryEvent {
	return m.telemetry.C()
}

// SeenPeer is one peripheral observed during a scan.
type SeenPeer struct {
	Name string
	Addr string
	RSSI int
}

// Seen returns a snapshot of the peripherals observed during the most recent
// scan, in no particular order.
func (m *Manager) Seen() []SeenPeer {
	var out []SeenPeer
	m.seen.Range(func(_ string, p SeenPeer) bool {
		out = append(out, p)
		return true
	})
	return out
}

func (m *Manager) observe(adv Advertisement) {
	m.seen.Set(adv.Addr(), SeenPeer{Name: adv.LocalName(), Addr: adv.Addr(), RSSI: adv.RSSI()})
}

func (m *Manager) resetSeen() {
	m.seen.Range(func(k string, _ SeenPeer) bool {
		m.seen.Del(k)
		return true
	})
}

// Survey scans for the full window and reports every peripheral observed,
// without connecting to anything. It is independent of the connection state
// machine.
func (m *Manager) Survey(ctx context.Context, window time.Duration) ([]SeenPeer, error) {
	transport, err := TransportFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transport: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	m.resetSeen()
	m.log.WithField("window", window).Info("Surveying nearby peripherals")

	if err := transport.Scan(scanCtx, m.observe); err != nil {
		return nil, err
	}
	return m.Seen(), nil
}

func (m *Manager) setState(s State) {
	m.state = s
	m.states.ForceSend(s)
	m.log.WithField("state", s.String()).Debug("Connection state changed")
}

// StartDiscovery scans for the band by advertised name, connects to the
// first match, and subscribes to telemetry. It returns ErrNoPeerFound when
// the scan window closes without a match, and ErrAlreadyConnected when a
// link is already up. Radio level scan noise is logged, not surfaced;
// connect failures are returned to the caller.
func (m *Manager) StartDiscovery(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case Connected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case Discovering:
		m.mu.Unlock()
		return &ConnectionError{State: AlreadyConnected, Msg: "discovery already in progress"}
	}
	m.setState(Discovering)
	m.mu.Unlock()

	adv, err := m.scanForBand(ctx)
	if err != nil {
		m.mu.Lock()
		m.setState(Disconnected)
		m.mu.Unlock()
		return err
	}

	peer, err := m.connect(ctx, adv)
	if err != nil {
		m.mu.Lock()
		m.setState(Disconnected)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.peer = peer
	m.setState(Connected)
	m.mu.Unlock()

	groutine.Go(context.Background(), "band-link-monitor", func(context.Context) {
		m.watchPeer(peer)
	})
	return nil
}

// watchPeer waits for the peer's drop signal and transitions the manager to
// Disconnected if the link was not already torn down deliberately.
func (m *Manager) watchPeer(p Peer) {
	<-p.Disconnected()

	m.mu.Lock()
	if m.peer != p {
		// Already replaced or cleared by an explicit Disconnect.
		m.mu.Unlock()
		return
	}
	m.peer = nil
	m.setState(Disconnected)
	m.mu.Unlock()

	m.log.Warn("Band dropped the connection")
	_ = p.Close()
}

func (m *Manager) scanForBand(ctx context.Context) (Advertisement, error) {
	transport, err := TransportFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transport: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, m.cfg.ScanTimeout)
	defer cancel()

	m.resetSeen()

	var (
		matchMu sync.Mutex
		match   Advertisement
	)
	m.log.WithFields(logrus.Fields{
		"name":    m.cfg.Name,
		"timeout": m.cfg.ScanTimeout,
	}).Info("Scanning for band...")

	scanErr := transport.Scan(scanCtx, func(adv Advertisement) {
		m.observe(adv)
		if adv.LocalName() != m.cfg.Name {
			return
		}
		matchMu.Lock()
		if match == nil {
			match = adv
			// Stop scanning on first match.
			cancel()
		}
		matchMu.Unlock()
	})

	matchMu.Lock()
	defer matchMu.Unlock()
	if match != nil {
		m.log.WithFields(logrus.Fields{
			"address": match.Addr(),
			"rssi":    match.RSSI(),
		}).Info("Band found")
		return match, nil
	}
	if scanErr != nil {
		m.log.WithField("error", scanErr).Warn("Scan ended with error")
	}
	return nil, ErrNoPeerFound
}

func (m *Manager) connect(ctx context.Context, adv Advertisement) (Peer, error) {
	transport, err := TransportFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transport: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	m.log.WithField("address", adv.Addr()).Info("Connecting to band...")
	peer, err := transport.Dial(dialCtx, adv)
	if err != nil {
		return nil, err
	}

	// Let the peer finish its own service setup before the first exchange.
	select {
	case <-time.After(m.cfg.SettleDelay):
	case <-ctx.Done():
		_ = peer.Close()
		return nil, ctx.Err()
	}

	if err := peer.Subscribe(m.onNotification); err != nil {
		_ = peer.Close()
		return nil, fmt.Errorf("failed to subscribe to telemetry: %w", err)
	}
	return peer, nil
}

// onNotification runs on the transport's notification goroutine. The payload
// buffer may be reused by the radio stack after the callback returns, so it
// is copied before decoding.
func (m *Manager) onNotification(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	event, ok := m.decoder.Decode(buf)
	if !ok {
		return
	}
	m.telemetry.ForceSend(event)
}

// Write encodes cmd and sends it to the control characteristic. Only one
// write may be in flight at a time; concurrent attempts get ErrWriteInFlight
// so commands cannot interleave on the wire.
func (m *Manager) Write(cmd wire.Command) error {
	m.mu.Lock()
	peer := m.peer
	state := m.state
	m.mu.Unlock()

	if state != Connected || peer == nil {
		return ErrNotConnected
	}

	if !m.writeBusy.CompareAndSwap(false, true) {
		return ErrWriteInFlight
	}
	defer m.writeBusy.Store(false)

	frame, err := wire.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := peer.Write(frame); err != nil {
		return fmt.Errorf("write failed: %w", NormalizeError(err))
	}
	return nil
}

// Disconnect tears down the link. Safe to call in any state; disconnecting an
// already disconnected manager is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	peer := m.peer
	m.peer = nil
	if m.state != Disconnected {
		m.setState(Disconnected)
	}
	m.mu.Unlock()

	if peer == nil {
		return nil
	}
	if err := peer.Close(); err != nil {
		m.log.WithField("error", err).Warn("Error while closing peer link")
		return err
	}
	m.log.Info("Disconnected from band")
	return nil
}
