package band

import (
	"context"
)

// Advertisement is the subset of a BLE advertisement the manager needs to
// decide whether a discovered peripheral is the band.
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
}

// Peer is an established link to the band's control service. Write sends a
// command frame to the control characteristic; Subscribe registers a handler
// for telemetry notifications. Disconnected returns a channel that closes
// when the link ends for any reason, peer-initiated drop or local Close.
type Peer interface {
	Addr() string
	Write(data []byte) error
	Subscribe(handler func(data []byte)) error
	Disconnected() <-chan struct{}
	Close() error
}

// Transport abstracts the BLE radio. Scan blocks until ctx is done or the
// handler has seen enough; Dial connects to an advertised peripheral and
// resolves the control service.
type Transport interface {
	Scan(ctx context.Context, handler func(Advertisement)) error
	Dial(ctx context.Context, adv Advertisement) (Peer, error)
}

// TransportFactory creates the Transport used by the manager.
// This is a variable so that it can be overridden in tests.
var TransportFactory = func() (Transport, error) {
	return newBLETransport()
}
