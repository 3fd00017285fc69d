package band

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"

	"github.com/srg/tremolink/internal/groutine"
)

// newRadio creates the underlying ble.Device (can be overridden in tests).
var newRadio = func() (ble.Device, error) {
	return darwin.NewDevice()
}

// bleTransport drives the go-ble radio. The device is created once and shared
// between scan and dial since ble.SetDefaultDevice is process-global.
type bleTransport struct {
	dev ble.Device
}

func newBLETransport() (*bleTransport, error) {
	dev, err := newRadio()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)
	return &bleTransport{dev: dev}, nil
}

// bleAdvertisement adapts ble.Advertisement to the Advertisement interface.
type bleAdvertisement struct {
	adv ble.Advertisement
}

func (a *bleAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a *bleAdvertisement) Addr() string      { return a.adv.Addr().String() }
func (a *bleAdvertisement) RSSI() int         { return a.adv.RSSI() }

func (t *bleTransport) Scan(ctx context.Context, handler func(Advertisement)) error {
	err := t.dev.Scan(ctx, false, func(adv ble.Advertisement) {
		handler(&bleAdvertisement{adv: adv})
	})
	// Scan ends via context cancellation in normal operation.
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return NormalizeError(err)
}

func (t *bleTransport) Dial(ctx context.Context, adv Advertisement) (Peer, error) {
	client, err := ble.Dial(ctx, ble.NewAddr(adv.Addr()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", adv.Addr(), NormalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			err = fmt.Errorf("%w (cancel: %v)", err, cancelErr)
		}
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	peer := &blePeer{
		client:  client,
		addr:    adv.Addr(),
		dropped: make(chan struct{}),
	}
	for _, svc := range profile.Services {
		if normalizeUUID(svc.UUID.String()) != normalizeUUID(ControlServiceUUID) {
			continue
		}
		for _, char := range svc.Characteristics {
			switch normalizeUUID(char.UUID.String()) {
			case normalizeUUID(CommandCharacteristicUUID):
				peer.writeChar = char
			case normalizeUUID(TelemetryCharacteristicUUID):
				peer.notifyChar = char
			}
		}
	}
	if peer.writeChar == nil || peer.notifyChar == nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			return nil, fmt.Errorf("control service %q not found (cancel: %v)", ControlServiceUUID, cancelErr)
		}
		return nil, fmt.Errorf("control service %q not found", ControlServiceUUID)
	}

	// The go-ble darwin client reports peer-initiated drops on its
	// Disconnected() channel. Relay those into the peer's own drop signal.
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(context.Background(), "ble-drop-monitor", func(context.Context) {
			select {
			case <-dc.Disconnected():
				peer.signalDrop()
			case <-peer.dropped:
			}
		})
	}
	return peer, nil
}

// blePeer is a live link to the band's control service.
type blePeer struct {
	client     ble.Client
	addr       string
	writeChar  *ble.Characteristic
	notifyChar *ble.Characteristic

	dropped  chan struct{}
	dropOnce sync.Once

	mu     sync.Mutex
	closed bool
}

func (p *blePeer) Addr() string { return p.addr }

func (p *blePeer) Disconnected() <-chan struct{} { return p.dropped }

func (p *blePeer) signalDrop() {
	p.dropOnce.Do(func() { close(p.dropped) })
}

func (p *blePeer) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrNotConnected
	}
	return NormalizeError(p.client.WriteCharacteristic(p.writeChar, data, false))
}

func (p *blePeer) Subscribe(handler func(data []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrNotConnected
	}
	return NormalizeError(p.client.Subscribe(p.notifyChar, false, handler))
}

// Close unsubscribes and tears the link down. Unsubscribe is attempted for
// both notify and indicate modes since peripherals vary in what they enable.
func (p *blePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	defer p.signalDrop()

	err1 := NormalizeError(p.client.Unsubscribe(p.notifyChar, false)) // notify
	err2 := NormalizeError(p.client.Unsubscribe(p.notifyChar, true)) // indicate
	if cancelErr := p.client.CancelConnection(); cancelErr != nil {
		return NormalizeError(cancelErr)
	}
	// At least one mode must unsubscribe cleanly.
	if err1 != nil && err2 != nil {
		return err1
	}
	return nil
}

// normalizeUUID lowercases a UUID and strips dashes so lookups do not depend
// on the formatting the platform stack reports.
func normalizeUUID(uuid string) string {
	return strings.ReplaceAll(strings.ToLower(uuid), "-", "")
}
