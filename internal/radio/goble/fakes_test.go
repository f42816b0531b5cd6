package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/srg/blip/internal/peripheral"
)

// fakeDevice implements the peripheral half of ble.Device. Calls to any
// other method panic through the nil embedded interface.
type fakeDevice struct {
	ble.Device
	mock.Mock

	mu       sync.Mutex
	services []*ble.Service
}

func (d *fakeDevice) AddService(svc *ble.Service) error {
	args := d.Called(svc)
	if args.Error(0) == nil {
		d.mu.Lock()
		d.services = append(d.services, svc)
		d.mu.Unlock()
	}
	return args.Error(0)
}

func (d *fakeDevice) RemoveAllServices() error {
	d.mu.Lock()
	d.services = nil
	d.mu.Unlock()
	return d.Called().Error(0)
}

func (d *fakeDevice) Stop() error {
	return d.Called().Error(0)
}

func (d *fakeDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	args := d.Called(ctx, name, uuids)
	if err := args.Error(0); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// characteristic returns the registered go-ble characteristic for id.
func (d *fakeDevice) characteristic(id uuid.UUID) *ble.Characteristic {
	want := toBLEUUID(id)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.services {
		for _, c := range s.Characteristics {
			if c.UUID.Equal(want) {
				return c
			}
		}
	}
	return nil
}

type fakeAddr string

func (a fakeAddr) String() string { return string(a) }

type fakeConn struct {
	ble.Conn
	addr fakeAddr
	disc chan struct{}
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: fakeAddr(addr), disc: make(chan struct{})}
}

func (c *fakeConn) RemoteAddr() ble.Addr          { return c.addr }
func (c *fakeConn) Disconnected() <-chan struct{} { return c.disc }
func (c *fakeConn) disconnect()                   { close(c.disc) }

type fakeRequest struct {
	conn   ble.Conn
	data   []byte
	offset int
}

func (r *fakeRequest) Conn() ble.Conn { return r.conn }
func (r *fakeRequest) Data() []byte   { return r.data }
func (r *fakeRequest) Offset() int    { return r.offset }

type fakeResponse struct {
	buf    []byte
	status ble.ATTError
	cap    int
}

func (r *fakeResponse) Write(b []byte) (int, error) {
	r.buf = append(r.buf, b...)
	return len(b), nil
}
func (r *fakeResponse) Status() ble.ATTError          { return r.status }
func (r *fakeResponse) SetStatus(status ble.ATTError) { r.status = status }
func (r *fakeResponse) Len() int                      { return len(r.buf) }
func (r *fakeResponse) Cap() int                      { return r.cap }

type fakeNotifier struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	writes [][]byte
}

func newFakeNotifier() *fakeNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeNotifier{ctx: ctx, cancel: cancel}
}

func (n *fakeNotifier) Context() context.Context { return n.ctx }
func (n *fakeNotifier) Write(b []byte) (int, error) {
	n.mu.Lock()
	n.writes = append(n.writes, append([]byte(nil), b...))
	n.mu.Unlock()
	return len(b), nil
}
func (n *fakeNotifier) Close() error { n.cancel(); return nil }
func (n *fakeNotifier) Cap() int     { return 20 }

func (n *fakeNotifier) written() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte(nil), n.writes...)
}

// recordingSink records connection events and answers requests through a
// configurable responder.
type recordingSink struct {
	mu      sync.Mutex
	states  []peripheral.ConnectionState
	added   []*peripheral.ServiceDescriptor
	reads   []int
	writes  []peripheral.WriteRequest
	respond func(peer peripheral.Peer, requestID int)
}

func (s *recordingSink) OnConnectionStateChange(_ peripheral.Peer, _ int, st peripheral.ConnectionState) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *recordingSink) OnServiceAdded(_ peripheral.Status, svc *peripheral.ServiceDescriptor) {
	s.mu.Lock()
	s.added = append(s.added, svc)
	s.mu.Unlock()
}

func (s *recordingSink) OnCharacteristicReadRequest(peer peripheral.Peer, requestID int, offset int, _ uuid.UUID) {
	s.mu.Lock()
	s.reads = append(s.reads, offset)
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		respond(peer, requestID)
	}
}

func (s *recordingSink) OnCharacteristicWriteRequest(req peripheral.WriteRequest) {
	s.mu.Lock()
	s.writes = append(s.writes, req)
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		respond(req.Peer, req.RequestID)
	}
}

func (s *recordingSink) connectionStates() []peripheral.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]peripheral.ConnectionState(nil), s.states...)
}

func (s *recordingSink) addedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.added)
}

type recordingAdvertiseSink struct {
	mu       sync.Mutex
	success  int
	failures []peripheral.AdvertiseFailure
}

func (s *recordingAdvertiseSink) OnStartSuccess(peripheral.AdvertiseSettings) {
	s.mu.Lock()
	s.success++
	s.mu.Unlock()
}

func (s *recordingAdvertiseSink) OnStartFailure(code peripheral.AdvertiseFailure) {
	s.mu.Lock()
	s.failures = append(s.failures, code)
	s.mu.Unlock()
}

func (s *recordingAdvertiseSink) snapshot() (int, []peripheral.AdvertiseFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.success, append([]peripheral.AdvertiseFailure(nil), s.failures...)
}
