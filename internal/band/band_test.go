package band

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/tremolink/internal/config"
	"github.com/srg/tremolink/internal/wire"
)

type fakeAdvertisement struct {
	name string
	addr string
	rssi int
}

func (a fakeAdvertisement) LocalName() string { return a.name }
func (a fakeAdvertisement) Addr() string      { return a.addr }
func (a fakeAdvertisement) RSSI() int         { return a.rssi }

type fakePeer struct {
	mu      sync.Mutex
	writes  [][]byte
	handler func(data []byte)
	closed  int

	dropped  chan struct{}
	dropOnce sync.Once

	blockWrites chan struct{}
}

func newFakePeer() *fakePeer {
	return &fakePeer{dropped: make(chan struct{})}
}

func (p *fakePeer) Addr() string { return "aa:bb:cc:dd:ee:ff" }

func (p *fakePeer) Disconnected() <-chan struct{} { return p.dropped }

func (p *fakePeer) drop() {
	p.dropOnce.Do(func() { close(p.dropped) })
}

func (p *fakePeer) Write(data []byte) error {
	if p.blockWrites != nil {
		<-p.blockWrites
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	p.writes = append(p.writes, buf)
	return nil
}

func (p *fakePeer) Subscribe(handler func(data []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	p.drop()
	return nil
}

func (p *fakePeer) notify(data []byte) {
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

func (p *fakePeer) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func (p *fakePeer) lastWrite() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return nil
	}
	return p.writes[len(p.writes)-1]
}

type fakeTransport struct {
	advs    []Advertisement
	peer    *fakePeer
	dialErr error
}

func (t *fakeTransport) Scan(ctx context.Context, handler func(Advertisement)) error {
	for _, adv := range t.advs {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		handler(adv)
	}
	<-ctx.Done()
	return nil
}

func (t *fakeTransport) Dial(_ context.Context, _ Advertisement) (Peer, error) {
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	return t.peer, nil
}

type ManagerTestSuite struct {
	suite.Suite

	transport   *fakeTransport
	peer        *fakePeer
	mgr         *Manager
	origFactory func() (Transport, error)
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) SetupTest() {
	s.peer = newFakePeer()
	s.transport = &fakeTransport{
		advs: []Advertisement{
			fakeAdvertisement{name: "KitchenTV", addr: "11:11:11:11:11:11", rssi: -80},
			fakeAdvertisement{name: "Arduino", addr: "aa:bb:cc:dd:ee:ff", rssi: -42},
		},
		peer: s.peer,
	}
	s.origFactory = TransportFactory
	TransportFactory = func() (Transport, error) {
		return s.transport, nil
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	s.mgr = NewManager(&config.BandConfig{
		Name:           "Arduino",
		ScanTimeout:    200 * time.Millisecond,
		ConnectTimeout: time.Second,
		SettleDelay:    time.Millisecond,
	}, log)
}

func (s *ManagerTestSuite) TearDownTest() {
	TransportFactory = s.origFactory
}

func (s *ManagerTestSuite) TestDiscoveryConnectsToMatchingBand() {
	err := s.mgr.StartDiscovery(context.Background())
	s.Require().NoError(err)

	s.Equal(Connected, s.mgr.State())
	s.NotNil(s.peer.handler, "telemetry subscription should be established")

	seen := s.mgr.Seen()
	s.Require().Len(seen, 2)
	byAddr := make(map[string]SeenPeer, len(seen))
	for _, p := range seen {
		byAddr[p.Addr] = p
	}
	s.Equal(SeenPeer{Name: "Arduino", Addr: "aa:bb:cc:dd:ee:ff", RSSI: -42}, byAddr["aa:bb:cc:dd:ee:ff"])
}

func (s *ManagerTestSuite) TestSurveyListsPeripherals() {
	seen, err := s.mgr.Survey(context.Background(), 50*time.Millisecond)
	s.Require().NoError(err)

	s.Require().Len(seen, 2)
	s.Equal(Disconnected, s.mgr.State(), "survey must not touch the connection state")

	names := make(map[string]int, len(seen))
	for _, p := range seen {
		names[p.Name] = p.RSSI
	}
	s.Equal(-42, names["Arduino"])
	s.Equal(-80, names["KitchenTV"])
}

func (s *ManagerTestSuite) TestDiscoveryIgnoresOtherNames() {
	s.transport.advs = []Advertisement{
		fakeAdvertisement{name: "KitchenTV", addr: "11:11:11:11:11:11", rssi: -80},
	}

	err := s.mgr.StartDiscovery(context.Background())
	s.Require().ErrorIs(err, ErrNoPeerFound)
	s.Equal(Disconnected, s.mgr.State())
}

func (s *ManagerTestSuite) TestDiscoveryWhileConnected() {
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))

	err := s.mgr.StartDiscovery(context.Background())
	s.Require().ErrorIs(err, ErrAlreadyConnected)
	s.Equal(Connected, s.mgr.State())
}

func (s *ManagerTestSuite) TestDialFailureReturnsToDisconnected() {
	s.transport.dialErr = errors.New("peer refused the connection")

	err := s.mgr.StartDiscovery(context.Background())
	s.Require().Error(err)
	s.NotErrorIs(err, ErrNoPeerFound)
	s.Equal(Disconnected, s.mgr.State())
}

func (s *ManagerTestSuite) TestWriteDeliversEncodedCommand() {
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))

	s.Require().NoError(s.mgr.Write(wire.StartAutomatic{}))
	s.Require().Equal(1, s.peer.writeCount())

	decoded, err := wire.DecodeCommand(s.peer.lastWrite())
	s.Require().NoError(err)
	s.Equal(wire.ModeML, decoded.Mode)
	s.Equal(wire.StateStart, decoded.State)
}

func (s *ManagerTestSuite) TestWriteRequiresConnection() {
	err := s.mgr.Write(wire.StopAll{})
	s.Require().ErrorIs(err, ErrNotConnected)
}

func (s *ManagerTestSuite) TestConcurrentWritesAreRejected() {
	s.peer.blockWrites = make(chan struct{})
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.mgr.Write(wire.StartAutomatic{})
	}()

	// Wait until the first write is holding the slot.
	s.Require().Eventually(func() bool {
		return s.mgr.Write(wire.StopAll{}) != nil
	}, time.Second, time.Millisecond)

	err := s.mgr.Write(wire.StopAll{})
	s.Require().ErrorIs(err, ErrWriteInFlight)

	close(s.peer.blockWrites)
	s.Require().NoError(<-firstDone)
}

func (s *ManagerTestSuite) TestNotificationsFlowIntoTelemetry() {
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))

	payload := base64.StdEncoding.EncodeToString([]byte(`{"hz": 8.25}`))
	s.peer.notify([]byte(payload))

	select {
	case event := <-s.mgr.Telemetry():
		sample, ok := event.(wire.FrequencySample)
		s.Require().True(ok, "expected a frequency sample, got %T", event)
		s.InDelta(8.25, sample.Hz, 1e-9)
	case <-time.After(time.Second):
		s.Fail("timed out waiting for telemetry event")
	}
}

func (s *ManagerTestSuite) TestMalformedNotificationIsDropped() {
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))

	s.peer.notify([]byte("{{not json"))

	select {
	case event := <-s.mgr.Telemetry():
		s.Failf("unexpected event", "got %T", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *ManagerTestSuite) TestPeerDropDisconnects() {
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))
	s.Require().Equal(Connected, s.mgr.State())

	// Drain the connect transitions so only the drop remains.
	for len(s.mgr.States()) > 0 {
		<-s.mgr.States()
	}

	s.peer.drop()

	select {
	case st := <-s.mgr.States():
		s.Equal(Disconnected, st)
	case <-time.After(time.Second):
		s.Fail("timed out waiting for the drop transition")
	}

	s.Require().Eventually(func() bool {
		return s.mgr.State() == Disconnected
	}, time.Second, time.Millisecond)

	err := s.mgr.Write(wire.StopAll{})
	s.Require().ErrorIs(err, ErrNotConnected)
}

func (s *ManagerTestSuite) TestDisconnectIsIdempotent() {
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))

	s.Require().NoError(s.mgr.Disconnect())
	s.Equal(Disconnected, s.mgr.State())
	s.Equal(1, s.peer.closed)

	s.Require().NoError(s.mgr.Disconnect())
	s.Equal(1, s.peer.closed)
}

func (s *ManagerTestSuite) TestStateTransitionsAreObservable() {
	s.Require().NoError(s.mgr.StartDiscovery(context.Background()))
	s.Require().NoError(s.mgr.Disconnect())

	var states []State
	for {
		select {
		case st := <-s.mgr.States():
			states = append(states, st)
			if st == Disconnected {
				s.Equal([]State{Discovering, Connected, Disconnected}, states)
				return
			}
		case <-time.After(time.Second):
			s.Fail("timed out waiting for state transitions")
			return
		}
	}
}
