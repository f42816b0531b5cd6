package peripheral

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ConnectionTracker tracks the single connected central.
type ConnectionTracker struct {
	publish func(Event)
	logger  *logrus.Logger

	mu   sync.Mutex
	peer *Peer
}

// NewConnectionTracker creates a tracker with no peer.
func NewConnectionTracker(publish func(Event), logger *logrus.Logger) *ConnectionTracker {
	if logger == nil {
		logger = logrus.New()
	}
	if publish == nil {
		publish = func(Event) {}
	}
	return &ConnectionTracker{publish: publish, logger: logger}
}

// OnConnectionStateChange tracks peer on connect and forgets it on
// disconnect. A new connection replaces the tracked peer; a disconnect from
// any other peer leaves the tracked one in place.
func (t *ConnectionTracker) OnConnectionStateChange(peer Peer, status int, newState ConnectionState) {
	log := t.logger.WithFields(logrus.Fields{
		"peer":   peer.Address,
		"status": status,
		"state":  newState.String(),
	})

	t.mu.Lock()
	switch newState {
	case StateConnected:
		if t.peer != nil && *t.peer != peer {
			log = log.WithField("replaced", t.peer.Address)
		}
		p := peer
		t.peer = &p
		t.mu.Unlock()

		log.Info("Central connected")
		t.publish(Event{Type: EventPeerConnected, Peer: peer})

	default:
		if t.peer == nil || *t.peer != peer {
			t.mu.Unlock()
			log.Debug("Disconnect from untracked central ignored")
			return
		}
		t.peer = nil
		t.mu.Unlock()

		log.Info("Central disconnected")
		t.publish(Event{Type: EventPeerDisconnected, Peer: peer})
	}
}

// Peer returns the tracked peer.
func (t *ConnectionTracker) Peer() (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.peer == nil {
		return Peer{}, false
	}
	return *t.peer, true
}

// Reset forgets the tracked peer without publishing an event.
func (t *ConnectionTracker) Reset() {
	t.mu.Lock()
	t.peer = nil
	t.mu.Unlock()
}
