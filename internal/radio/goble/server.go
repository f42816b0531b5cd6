package goble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/blip/internal/groutine"
	"github.com/srg/blip/internal/peripheral"
)

// server adapts go-ble's handler model to the GattEventSink callbacks.
//
// go-ble calls a handler per request and sends the response when the
// handler returns, so every request is parked in pending for the duration
// of the sink call and SendResponse writes into its ResponseWriter. go-ble
// has no connection callback in the peripheral role: a central is reported
// connected on its first request or subscription and disconnected when its
// link closes.
type server struct {
	dev    ble.Device
	sink   peripheral.GattEventSink
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	nextID  atomic.Int64
	pending *hashmap.Map[int, *pendingRequest]
	peers   *hashmap.Map[string, ble.Conn]
	subs    *hashmap.Map[string, *subscription]

	mu       sync.Mutex
	services []*peripheral.ServiceDescriptor
}

type pendingRequest struct {
	peer     peripheral.Peer
	rsp      ble.ResponseWriter
	answered atomic.Bool
}

type subscription struct {
	notifier ble.Notifier
	indicate bool
}

func newServer(dev ble.Device, sink peripheral.GattEventSink, logger *logrus.Logger) *server {
	ctx, cancel := context.WithCancel(context.Background())
	return &server{
		dev:     dev,
		sink:    sink,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: hashmap.New[int, *pendingRequest](),
		peers:   hashmap.New[string, ble.Conn](),
		subs:    hashmap.New[string, *subscription](),
	}
}

// AddService registers svc with the device. The device applies it
// synchronously; the confirmation is still delivered on another goroutine
// as the contract requires.
func (s *server) AddService(svc *peripheral.ServiceDescriptor) error {
	if s.closed.Load() {
		return errServerClosed
	}

	bsvc := ble.NewService(toBLEUUID(svc.ID))
	for _, c := range svc.Characteristics {
		bc := bsvc.NewCharacteristic(toBLEUUID(c.ID))
		if c.Permissions.Has(peripheral.PermRead) {
			bc.HandleRead(ble.ReadHandlerFunc(s.serveRead(c.ID)))
		}
		if c.Permissions.Has(peripheral.PermWrite) {
			bc.HandleWrite(ble.WriteHandlerFunc(s.serveWrite(c.ID)))
		}
		if c.Permissions.Has(peripheral.PermNotify) {
			bc.HandleNotify(ble.NotifyHandlerFunc(s.serveNotify(c.ID, false)))
			bc.HandleIndicate(ble.NotifyHandlerFunc(s.serveNotify(c.ID, true)))
		}
	}

	if err := s.dev.AddService(bsvc); err != nil {
		return NormalizeError(err)
	}

	s.mu.Lock()
	s.services = append(s.services, svc)
	s.mu.Unlock()

	groutine.Go(s.ctx, "ble-service-added", func(ctx context.Context) {
		if ctx.Err() == nil {
			s.sink.OnServiceAdded(peripheral.StatusSuccess, svc)
		}
	})
	return nil
}

// ClearServices removes every service from the device.
func (s *server) ClearServices() {
	s.mu.Lock()
	n := len(s.services)
	s.services = nil
	s.mu.Unlock()
	if n == 0 {
		return
	}
	if err := s.dev.RemoveAllServices(); err != nil {
		s.logger.WithError(NormalizeError(err)).Warn("Failed to remove services")
	}
}

// Close ends the session: subscriptions are closed and peer monitors stop.
func (s *server) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()

	s.subs.Range(func(key string, sub *subscription) bool {
		_ = sub.notifier.Close()
		s.subs.Del(key)
		return true
	})
	s.peers.Range(func(addr string, _ ble.Conn) bool {
		s.peers.Del(addr)
		return true
	})
}

// SendResponse answers a parked request. It must be called from within the
// sink callback that delivered requestID.
func (s *server) SendResponse(peer peripheral.Peer, requestID int, status peripheral.Status, offset int, value []byte) error {
	pr, ok := s.pending.Get(requestID)
	if !ok {
		return fmt.Errorf("%w: %d", errUnknownRequest, requestID)
	}
	if pr.peer != peer {
		return fmt.Errorf("%w: %s != %s", errPeerMismatch, peer, pr.peer)
	}
	if !pr.answered.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %d", errAnswered, requestID)
	}

	if status != peripheral.StatusSuccess {
		pr.rsp.SetStatus(attStatus(status))
		return nil
	}
	// go-ble gives write handlers a writer without a buffer: the ATT Write
	// Response carries no value, so only the status is sent.
	if pr.rsp.Cap() == 0 {
		pr.rsp.SetStatus(ble.ErrSuccess)
		return nil
	}
	if limit := pr.rsp.Cap(); len(value) > limit {
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"offset":     offset,
			"length":     len(value),
			"cap":        limit,
		}).Debug("Response truncated to ATT payload size")
		value = value[:limit]
	}
	if _, err := pr.rsp.Write(value); err != nil {
		return NormalizeError(err)
	}
	return nil
}

// NotifyCharacteristicChanged pushes the value of char to peer. go-ble picks
// notification or indication from what the central subscribed to, so
// confirm only selects between two concurrent subscriptions.
func (s *server) NotifyCharacteristicChanged(peer peripheral.Peer, char *peripheral.CharacteristicDescriptor, confirm bool) error {
	if s.closed.Load() {
		return errServerClosed
	}
	log := s.logger.WithFields(logrus.Fields{
		"peer":      peer.Address,
		"char_uuid": char.ID.String(),
		"confirm":   confirm,
	})

	sub, ok := s.subs.Get(subKey(peer.Address, char.ID, confirm))
	if !ok {
		sub, ok = s.subs.Get(subKey(peer.Address, char.ID, !confirm))
	}
	if !ok {
		// Same as a platform notify to an unsubscribed client: nothing is
		// sent and the value is served on the next read.
		log.Debug("Central has not subscribed, notification skipped")
		return nil
	}

	value := char.Value()
	if limit := sub.notifier.Cap(); len(value) > limit {
		value = value[:limit]
	}
	if _, err := sub.notifier.Write(value); err != nil {
		return NormalizeError(err)
	}
	log.WithField("indicate", sub.indicate).Debug("Value pushed")
	return nil
}

func (s *server) serveRead(charID uuid.UUID) func(ble.Request, ble.ResponseWriter) {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		peer := s.track(req.Conn())
		id, pr := s.park(peer, rsp)
		defer s.pending.Del(id)

		s.sink.OnCharacteristicReadRequest(peer, id, req.Offset(), charID)
		s.ensureAnswered(id, pr)
	}
}

func (s *server) serveWrite(charID uuid.UUID) func(ble.Request, ble.ResponseWriter) {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		peer := s.track(req.Conn())
		id, pr := s.park(peer, rsp)
		defer s.pending.Del(id)

		// go-ble serves Write Request and Write Command through the same
		// handler and discards the response for commands.
		value := append([]byte(nil), req.Data()...)
		s.sink.OnCharacteristicWriteRequest(peripheral.WriteRequest{
			Peer:             peer,
			RequestID:        id,
			CharacteristicID: charID,
			ResponseNeeded:   true,
			Offset:           req.Offset(),
			Value:            value,
		})
		s.ensureAnswered(id, pr)
	}
}

func (s *server) serveNotify(charID uuid.UUID, indicate bool) func(ble.Request, ble.Notifier) {
	return func(req ble.Request, n ble.Notifier) {
		peer := s.track(req.Conn())
		key := subKey(peer.Address, charID, indicate)
		sub := &subscription{notifier: n, indicate: indicate}
		s.subs.Set(key, sub)

		log := s.logger.WithFields(logrus.Fields{
			"peer":      peer.Address,
			"char_uuid": charID.String(),
			"indicate":  indicate,
		})
		log.Info("Central subscribed")

		select {
		case <-n.Context().Done():
		case <-s.ctx.Done():
		}
		if cur, ok := s.subs.Get(key); ok && cur == sub {
			s.subs.Del(key)
		}
		log.Info("Central unsubscribed")
	}
}

func (s *server) park(peer peripheral.Peer, rsp ble.ResponseWriter) (int, *pendingRequest) {
	id := int(s.nextID.Add(1))
	pr := &pendingRequest{peer: peer, rsp: rsp}
	s.pending.Set(id, pr)
	return id, pr
}

// ensureAnswered fails a request the sink left unanswered so the central
// is not left waiting for the ATT transaction timeout.
func (s *server) ensureAnswered(id int, pr *pendingRequest) {
	if pr.answered.CompareAndSwap(false, true) {
		s.logger.WithField("request_id", id).Warn("Request not answered, replying with an error")
		pr.rsp.SetStatus(attStatus(peripheral.StatusUnlikely))
	}
}

// track reports a central the first time it is seen and watches its link.
func (s *server) track(conn ble.Conn) peripheral.Peer {
	addr := conn.RemoteAddr().String()
	peer := peripheral.Peer{Address: addr}
	if s.closed.Load() {
		return peer
	}
	if _, loaded := s.peers.GetOrInsert(addr, conn); loaded {
		return peer
	}

	s.sink.OnConnectionStateChange(peer, 0, peripheral.StateConnected)
	groutine.Go(s.ctx, "ble-peer-monitor", func(ctx context.Context) {
		select {
		case <-conn.Disconnected():
			s.peers.Del(addr)
			s.sink.OnConnectionStateChange(peer, 0, peripheral.StateDisconnected)
		case <-ctx.Done():
		}
	})
	return peer
}

func subKey(addr string, charID uuid.UUID, indicate bool) string {
	if indicate {
		return addr + "/" + charID.String() + "/i"
	}
	return addr + "/" + charID.String() + "/n"
}

// attStatus converts a status to the single byte ATT carries. Codes above
// the ATT range are reported as Unlikely Error.
func attStatus(st peripheral.Status) ble.ATTError {
	if st < 0 || st > 0xFF {
		st = peripheral.StatusUnlikely
	}
	return ble.ATTError(st)
}

func toBLEUUID(u uuid.UUID) ble.UUID {
	return ble.MustParse(u.String())
}

var _ peripheral.ServerHandle = (*server)(nil)
