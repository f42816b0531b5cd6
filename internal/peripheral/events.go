package peripheral

import (
	"context"

	"github.com/google/uuid"
)

// EventType identifies what an Event reports.
type EventType int

const (
	EventIncomingValue EventType = iota
	EventPeerConnected
	EventPeerDisconnected
	EventAdvertisingStarted
	EventAdvertisingFailed
	EventServiceAdded
)

func (t EventType) String() string {
	return [...]string{
		"incoming_value",
		"peer_connected",
		"peer_disconnected",
		"advertising_started",
		"advertising_failed",
		"service_added",
	}[t]
}

// Event is published from the radio callback context for consumption on
// the interactive context.
type Event struct {
	Type      EventType
	Peer      Peer
	Text      string           // EventIncomingValue
	Failure   AdvertiseFailure // EventAdvertisingFailed
	Status    Status           // EventServiceAdded
	ServiceID uuid.UUID        // EventServiceAdded
}

// Presenter displays values written by the connected peer.
type Presenter interface {
	OnIncomingValue(text string)
}

// StatusPresenter is optionally implemented by a Presenter that also wants
// connection and advertising notices.
type StatusPresenter interface {
	OnPeerConnected(peer Peer)
	OnPeerDisconnected(peer Peer)
	OnAdvertisingStarted()
	OnAdvertisingFailed(code AdvertiseFailure)
}

// Present drains published events on the calling goroutine until ctx is
// done or the peripheral is closed, dispatching each to pr.
func (p *Peripheral) Present(ctx context.Context, pr Presenter) {
	sp, _ := pr.(StatusPresenter)
	p.events.Run(ctx, func(ev Event) {
		dispatchEvent(ev, pr, sp)
	})
}

func dispatchEvent(ev Event, p Presenter, sp StatusPresenter) {
	switch ev.Type {
	case EventIncomingValue:
		p.OnIncomingValue(ev.Text)
	case EventPeerConnected:
		if sp != nil {
			sp.OnPeerConnected(ev.Peer)
		}
	case EventPeerDisconnected:
		if sp != nil {
			sp.OnPeerDisconnected(ev.Peer)
		}
	case EventAdvertisingStarted:
		if sp != nil {
			sp.OnAdvertisingStarted()
		}
	case EventAdvertisingFailed:
		if sp != nil {
			sp.OnAdvertisingFailed(ev.Failure)
		}
	}
}
