package peripheral

import "github.com/google/uuid"

// RadioAdapter is the narrow capability set consumed from the platform BLE
// stack. Implementations must not panic across this boundary: failures are
// reported by return value or by a failure callback.
type RadioAdapter interface {
	IsAdapterPresent() bool
	IsAdapterEnabled() bool
	// RequestEnable asks the platform to power the radio on. The outcome is
	// delivered out of band; callers do not wait for it.
	RequestEnable()
	// OpenGattServer opens a server session reporting into sink.
	OpenGattServer(sink GattEventSink) (ServerHandle, error)
	// Advertiser returns nil when the platform cannot advertise.
	Advertiser() Advertiser
}

// ServerHandle is an open GATT server session.
type ServerHandle interface {
	// AddService submits a service; completion arrives via OnServiceAdded.
	AddService(svc *ServiceDescriptor) error
	// ClearServices and Close are idempotent.
	ClearServices()
	Close()
	SendResponse(peer Peer, requestID int, status Status, offset int, value []byte) error
	// NotifyCharacteristicChanged pushes the current value of char to peer,
	// as an indication when confirm is set.
	NotifyCharacteristicChanged(peer Peer, char *CharacteristicDescriptor, confirm bool) error
}

// Advertiser starts and stops advertising. Both calls are fire-and-forget;
// the start outcome is reported through sink.
type Advertiser interface {
	StartAdvertising(settings AdvertiseSettings, payload AdvertisePayload, sink AdvertiseEventSink) error
	StopAdvertising(sink AdvertiseEventSink)
}

// GattEventSink receives server events. Calls may arrive on any goroutine.
type GattEventSink interface {
	OnConnectionStateChange(peer Peer, status int, newState ConnectionState)
	OnServiceAdded(status Status, svc *ServiceDescriptor)
	OnCharacteristicReadRequest(peer Peer, requestID int, offset int, charID uuid.UUID)
	OnCharacteristicWriteRequest(req WriteRequest)
}

// AdvertiseEventSink receives the asynchronous advertising outcome.
type AdvertiseEventSink interface {
	OnStartSuccess(settings AdvertiseSettings)
	OnStartFailure(code AdvertiseFailure)
}
