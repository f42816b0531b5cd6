package peripheral

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/blip/internal/dispatch"
)

// Default profile identifiers.
var (
	DefaultServiceUUID        = uuid.MustParse("6e0f0001-8d3a-4b7c-9a51-2f6c0e1d7a00")
	DefaultCharacteristicUUID = uuid.MustParse("6e0f0002-8d3a-4b7c-9a51-2f6c0e1d7a00")
)

// Options configures a Peripheral.
type Options struct {
	DeviceName       string
	ServiceID        uuid.UUID
	CharacteristicID uuid.UUID
	Settings         AdvertiseSettings

	// SyntheticRead answers every read with ReadValue instead of the
	// stored value.
	SyntheticRead bool
	ReadValue     string

	// ConfirmNotifications sends local updates as indications.
	ConfirmNotifications bool

	// EventBuffer bounds the event queue; the oldest event is discarded
	// when the consumer falls behind.
	EventBuffer int
}

// DefaultOptions returns the single-service profile with synthetic reads.
func DefaultOptions() Options {
	return Options{
		DeviceName:           "blip",
		ServiceID:            DefaultServiceUUID,
		CharacteristicID:     DefaultCharacteristicUUID,
		Settings:             DefaultAdvertiseSettings(),
		SyntheticRead:        true,
		ReadValue:            "test",
		ConfirmNotifications: true,
		EventBuffer:          64,
	}
}

// Peripheral is the server-role facade. It owns the profile and wires the
// controllers to the radio, acting as the GATT event sink for every server
// session it opens.
type Peripheral struct {
	opts    Options
	logger  *logrus.Logger
	service *ServiceDescriptor
	events  *dispatch.Queue[Event]

	gatt        *GattServerController
	tracker     *ConnectionTracker
	advertising *AdvertisingController
	requests    *RequestHandler
}

// New builds a Peripheral on radio. Nothing touches the radio until Start.
func New(radio RadioAdapter, opts Options, logger *logrus.Logger) *Peripheral {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultOptions().EventBuffer
	}

	p := &Peripheral{
		opts:   opts,
		logger: logger,
		events: dispatch.NewQueue[Event](opts.EventBuffer),
	}
	char := NewCharacteristic(opts.CharacteristicID, PermRead|PermWrite|PermNotify)
	p.service = NewService(opts.ServiceID, char)

	p.gatt = NewGattServerController(radio, p, p.publish, logger)
	p.tracker = NewConnectionTracker(p.publish, logger)
	p.advertising = NewAdvertisingController(radio, p.gatt, p.tracker, p.publish, logger)
	p.requests = NewRequestHandler(p.service, opts.CharacteristicID, p.gatt, p.tracker,
		ReadPolicy{Synthetic: opts.SyntheticRead, Value: opts.ReadValue},
		opts.ConfirmNotifications, p.publish, logger)
	return p
}

// Start registers the profile and requests advertising.
func (p *Peripheral) Start() error {
	return p.advertising.Start(p.opts.Settings, p.opts.DeviceName, []*ServiceDescriptor{p.service})
}

// Stop stops advertising and closes the GATT server.
func (p *Peripheral) Stop() {
	p.advertising.Stop()
}

// Send stores text and notifies the connected peer.
func (p *Peripheral) Send(text string) error {
	return p.requests.SendLocalValue(text)
}

// State returns the advertising state.
func (p *Peripheral) State() AdvertisingState {
	return p.advertising.State()
}

// Peer returns the connected peer, if any.
func (p *Peripheral) Peer() (Peer, bool) {
	return p.tracker.Peer()
}

// Service returns the profile service.
func (p *Peripheral) Service() *ServiceDescriptor {
	return p.service
}

// Characteristic returns the owned characteristic.
func (p *Peripheral) Characteristic() *CharacteristicDescriptor {
	c, _ := p.service.Characteristic(p.opts.CharacteristicID)
	return c
}

// RegisteredServices returns the services currently registered on the server.
func (p *Peripheral) RegisteredServices() []*ServiceDescriptor {
	return p.gatt.Services()
}

// Payload returns the last submitted advertisement payload.
func (p *Peripheral) Payload() AdvertisePayload {
	return p.advertising.Payload()
}

// Options returns the options the peripheral was built with.
func (p *Peripheral) Options() Options {
	return p.opts
}

// Events returns the receive side of the event queue. Reads through it are
// not counted as processed; use Present to consume events.
func (p *Peripheral) Events() <-chan Event {
	return p.events.C()
}

// EventMetrics returns the event queue counters.
func (p *Peripheral) EventMetrics() dispatch.Metrics {
	return p.events.Metrics()
}

// Close stops the peripheral and closes the event queue. Events published
// afterwards are dropped.
func (p *Peripheral) Close() {
	p.Stop()
	p.events.Close()
}

func (p *Peripheral) publish(ev Event) {
	if p.events.Send(ev) {
		p.logger.WithField("event", ev.Type.String()).Warn("Event queue full, oldest event dropped")
	}
}

// OnConnectionStateChange implements GattEventSink.
func (p *Peripheral) OnConnectionStateChange(peer Peer, status int, newState ConnectionState) {
	p.tracker.OnConnectionStateChange(peer, status, newState)
}

// OnServiceAdded implements GattEventSink.
func (p *Peripheral) OnServiceAdded(status Status, svc *ServiceDescriptor) {
	p.gatt.OnServiceAdded(status, svc)
}

// OnCharacteristicReadRequest implements GattEventSink.
func (p *Peripheral) OnCharacteristicReadRequest(peer Peer, requestID int, offset int, charID uuid.UUID) {
	p.requests.OnCharacteristicReadRequest(peer, requestID, offset, charID)
}

// OnCharacteristicWriteRequest implements GattEventSink.
func (p *Peripheral) OnCharacteristicWriteRequest(req WriteRequest) {
	p.requests.OnCharacteristicWriteRequest(req)
}

var _ GattEventSink = (*Peripheral)(nil)
