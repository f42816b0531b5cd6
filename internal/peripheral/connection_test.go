package peripheral_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/blip/internal/peripheral"
	"github.com/srg/blip/internal/testutils"
)

func TestConnectionTracker(t *testing.T) {
	peerB := peripheral.Peer{Address: "aa:bb:cc:dd:ee:ff"}

	tests := []struct {
		name     string
		events   []func(*peripheral.ConnectionTracker)
		wantPeer *peripheral.Peer
		wantPub  []peripheral.EventType
	}{
		{
			name:    "no events",
			wantPub: nil,
		},
		{
			name: "connect tracks peer",
			events: []func(*peripheral.ConnectionTracker){
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerA, 0, peripheral.StateConnected) },
			},
			wantPeer: &peerA,
			wantPub:  []peripheral.EventType{peripheral.EventPeerConnected},
		},
		{
			name: "disconnect clears peer",
			events: []func(*peripheral.ConnectionTracker){
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerA, 0, peripheral.StateConnected) },
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerA, 19, peripheral.StateDisconnected) },
			},
			wantPub: []peripheral.EventType{peripheral.EventPeerConnected, peripheral.EventPeerDisconnected},
		},
		{
			name: "new connection replaces peer",
			events: []func(*peripheral.ConnectionTracker){
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerA, 0, peripheral.StateConnected) },
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerB, 0, peripheral.StateConnected) },
			},
			wantPeer: &peerB,
			wantPub:  []peripheral.EventType{peripheral.EventPeerConnected, peripheral.EventPeerConnected},
		},
		{
			name: "disconnect of another peer is ignored",
			events: []func(*peripheral.ConnectionTracker){
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerA, 0, peripheral.StateConnected) },
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerB, 0, peripheral.StateDisconnected) },
			},
			wantPeer: &peerA,
			wantPub:  []peripheral.EventType{peripheral.EventPeerConnected},
		},
		{
			name: "reset forgets silently",
			events: []func(*peripheral.ConnectionTracker){
				func(c *peripheral.ConnectionTracker) { c.OnConnectionStateChange(peerA, 0, peripheral.StateConnected) },
				func(c *peripheral.ConnectionTracker) { c.Reset() },
			},
			wantPub: []peripheral.EventType{peripheral.EventPeerConnected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var published []peripheral.EventType
			tracker := peripheral.NewConnectionTracker(func(ev peripheral.Event) {
				published = append(published, ev.Type)
			}, testutils.NewTestHelper(t).Logger)

			for _, ev := range tt.events {
				ev(tracker)
			}

			peer, ok := tracker.Peer()
			if tt.wantPeer == nil {
				assert.False(t, ok)
			} else {
				assert.True(t, ok)
				assert.Equal(t, *tt.wantPeer, peer)
			}
			assert.Equal(t, tt.wantPub, published)
		})
	}
}
