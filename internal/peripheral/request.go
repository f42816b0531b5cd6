package peripheral

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ReadPolicy selects what a read request returns.
type ReadPolicy struct {
	// Synthetic makes every read return Value, storing it into the
	// characteristic first. Otherwise the stored value is returned.
	Synthetic bool
	Value     string
}

// RequestHandler answers read and write requests on the owned characteristic
// and pushes local values to the connected peer.
type RequestHandler struct {
	service *ServiceDescriptor
	charID  uuid.UUID
	gatt    *GattServerController
	tracker *ConnectionTracker
	publish func(Event)
	logger  *logrus.Logger

	read    ReadPolicy
	confirm bool
}

// NewRequestHandler creates a handler for charID within service.
func NewRequestHandler(service *ServiceDescriptor, charID uuid.UUID, gatt *GattServerController, tracker *ConnectionTracker, read ReadPolicy, confirm bool, publish func(Event), logger *logrus.Logger) *RequestHandler {
	if logger == nil {
		logger = logrus.New()
	}
	if publish == nil {
		publish = func(Event) {}
	}
	return &RequestHandler{
		service: service,
		charID:  charID,
		gatt:    gatt,
		tracker: tracker,
		publish: publish,
		logger:  logger,
		read:    read,
		confirm: confirm,
	}
}

// OnCharacteristicReadRequest sends exactly one response.
func (h *RequestHandler) OnCharacteristicReadRequest(peer Peer, requestID int, offset int, charID uuid.UUID) {
	log := h.logger.WithFields(logrus.Fields{
		"peer":       peer.Address,
		"request_id": requestID,
		"offset":     offset,
		"char_uuid":  charID.String(),
	})

	char, ok := h.service.Characteristic(charID)
	if !ok {
		log.Warn("Read of unknown characteristic")
		h.respond(log, peer, requestID, StatusAttributeNotFound, offset, nil)
		return
	}
	if !char.Permissions.Has(PermRead) {
		h.respond(log, peer, requestID, StatusReadNotPermitted, offset, nil)
		return
	}

	if h.read.Synthetic {
		char.SetText(h.read.Value)
	}
	value := char.Value()
	if offset < 0 || offset > len(value) {
		log.WithField("length", len(value)).Debug("Read offset past end of value")
		h.respond(log, peer, requestID, StatusInvalidOffset, offset, nil)
		return
	}

	log.WithField("length", len(value)-offset).Debug("Read request")
	h.respond(log, peer, requestID, StatusSuccess, offset, value[offset:])
}

// OnCharacteristicWriteRequest stores the value, publishes it as text and
// echoes it back when a response is needed.
func (h *RequestHandler) OnCharacteristicWriteRequest(req WriteRequest) {
	log := h.logger.WithFields(logrus.Fields{
		"peer":       req.Peer.Address,
		"request_id": req.RequestID,
		"offset":     req.Offset,
		"char_uuid":  req.CharacteristicID.String(),
		"prepared":   req.PreparedWrite,
	})

	fail := func(status Status) {
		if req.ResponseNeeded {
			h.respond(log, req.Peer, req.RequestID, status, req.Offset, nil)
		}
	}

	char, ok := h.service.Characteristic(req.CharacteristicID)
	if !ok {
		log.Warn("Write to unknown characteristic")
		fail(StatusAttributeNotFound)
		return
	}
	if !char.Permissions.Has(PermWrite) {
		fail(StatusWriteNotPermitted)
		return
	}
	if len(req.Value) == 0 {
		log.Debug("Empty write dropped")
		fail(StatusInvalidAttributeValueLength)
		return
	}

	// Prepared writes are applied immediately; there is no execute-write queue.
	stored, ok := char.writeAt(req.Offset, req.Value)
	if !ok {
		log.Debug("Write offset past end of value")
		fail(StatusInvalidOffset)
		return
	}

	text := strings.ToValidUTF8(string(stored), "\uFFFD")
	log.WithField("length", len(stored)).Info("Value written by central")
	h.publish(Event{Type: EventIncomingValue, Peer: req.Peer, Text: text})

	if req.ResponseNeeded {
		h.respond(log, req.Peer, req.RequestID, StatusSuccess, req.Offset, req.Value)
	}
}

// SendLocalValue stores text in the owned characteristic and notifies the
// connected peer. The value is stored even when no peer is connected.
func (h *RequestHandler) SendLocalValue(text string) error {
	char, ok := h.service.Characteristic(h.charID)
	if !ok {
		return &NotFoundError{
			Resource: "characteristic",
			UUIDs:    []string{h.service.ID.String(), h.charID.String()},
		}
	}
	char.SetText(text)

	peer, ok := h.tracker.Peer()
	if !ok {
		return ErrNoPeerConnected
	}

	handle := h.gatt.Handle()
	if handle == nil {
		return newError(NotificationUnavailable, "GATT server is not open", nil)
	}

	log := h.logger.WithFields(logrus.Fields{
		"peer":      peer.Address,
		"char_uuid": char.ID.String(),
		"confirm":   h.confirm,
	})
	if err := handle.NotifyCharacteristicChanged(peer, char, h.confirm); err != nil {
		log.WithError(err).Warn("Notification failed")
		return newError(NotificationUnavailable, "failed to notify "+peer.Address, err)
	}
	log.Debug("Notification sent")
	return nil
}

func (h *RequestHandler) respond(log *logrus.Entry, peer Peer, requestID int, status Status, offset int, value []byte) {
	handle := h.gatt.Handle()
	if handle == nil {
		log.Warn("Response dropped, GATT server is closed")
		return
	}
	if err := handle.SendResponse(peer, requestID, status, offset, value); err != nil {
		log.WithError(err).WithField("status", status.String()).Warn("Failed to send response")
	}
}
