package peripheral

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GattServerController owns the GATT server handle and the services
// registered on it.
type GattServerController struct {
	radio   RadioAdapter
	sink    GattEventSink
	publish func(Event)
	logger  *logrus.Logger

	mu        sync.Mutex
	handle    ServerHandle
	services  []*ServiceDescriptor
	confirmed map[uuid.UUID]bool
}

// NewGattServerController creates a controller whose server sessions report
// into sink.
func NewGattServerController(radio RadioAdapter, sink GattEventSink, publish func(Event), logger *logrus.Logger) *GattServerController {
	if logger == nil {
		logger = logrus.New()
	}
	if publish == nil {
		publish = func(Event) {}
	}
	return &GattServerController{
		radio:   radio,
		sink:    sink,
		publish: publish,
		logger:  logger,
	}
}

// Open opens a server session and submits each service in order. Opening an
// already open server is a no-op. Service additions complete asynchronously.
func (c *GattServerController) Open(services []*ServiceDescriptor) error {
	if c.IsOpen() {
		c.logger.Debug("GATT server already open")
		return nil
	}

	handle, err := c.radio.OpenGattServer(c.sink)
	if err != nil {
		return newError(ServerUnavailable, "failed to open GATT server", err)
	}
	if handle == nil {
		return newError(ServerUnavailable, "platform returned no GATT server", nil)
	}

	c.mu.Lock()
	c.handle = handle
	c.services = nil
	c.confirmed = make(map[uuid.UUID]bool)
	c.mu.Unlock()

	for _, svc := range services {
		// Append before submitting so a synchronous OnServiceAdded finds it.
		c.mu.Lock()
		c.services = append(c.services, svc)
		c.mu.Unlock()

		if err := handle.AddService(svc); err != nil {
			c.Close()
			return fmt.Errorf("failed to add service %s: %w", svc.ID, err)
		}
		c.logger.WithFields(logrus.Fields{
			"service_uuid":    svc.ID.String(),
			"characteristics": len(svc.Characteristics),
		}).Debug("Service submitted")
	}

	c.logger.WithField("services", len(services)).Info("GATT server opened")
	return nil
}

// Close clears all services and releases the server handle. It is safe to
// call on a closed or never opened server.
func (c *GattServerController) Close() {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.services = nil
	c.confirmed = nil
	c.mu.Unlock()

	if h == nil {
		return
	}
	h.ClearServices()
	h.Close()
	c.logger.Info("GATT server closed")
}

// OnServiceAdded records the asynchronous outcome of an AddService call.
func (c *GattServerController) OnServiceAdded(status Status, svc *ServiceDescriptor) {
	log := c.logger.WithField("status", status.String())
	if svc != nil {
		log = log.WithField("service_uuid", svc.ID.String())
	}
	if status != StatusSuccess {
		log.Error("Service registration failed")
	} else {
		log.Debug("Service added")
	}

	c.mu.Lock()
	if c.confirmed != nil && svc != nil && status == StatusSuccess {
		c.confirmed[svc.ID] = true
	}
	c.mu.Unlock()

	ev := Event{Type: EventServiceAdded, Status: status}
	if svc != nil {
		ev.ServiceID = svc.ID
	}
	c.publish(ev)
}

// IsOpen reports whether a server session is open.
func (c *GattServerController) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Handle returns the open server handle, or nil.
func (c *GattServerController) Handle() ServerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Services returns the registered services.
func (c *GattServerController) Services() []*ServiceDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ServiceDescriptor, len(c.services))
	copy(out, c.services)
	return out
}

// ServiceUUIDs returns the UUIDs of the registered services in registration order.
func (c *GattServerController) ServiceUUIDs() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, 0, len(c.services))
	for _, svc := range c.services {
		out = append(out, svc.ID)
	}
	return out
}

// Confirmed reports whether the platform acknowledged the service.
func (c *GattServerController) Confirmed(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed[id]
}
