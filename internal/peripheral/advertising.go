package peripheral

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// AdvertisingController drives the two-phase advertising lifecycle:
// Start submits a request and moves to AdvertisingStarting; the platform
// later confirms through OnStartSuccess or OnStartFailure.
type AdvertisingController struct {
	radio   RadioAdapter
	gatt    *GattServerController
	tracker *ConnectionTracker
	publish func(Event)
	logger  *logrus.Logger

	// opMu serializes Start and Stop. Platform callbacks never take it.
	opMu sync.Mutex

	mu       sync.Mutex
	state    AdvertisingState
	gen      uint64
	attempt  *advertiseAttempt
	adv      Advertiser
	settings AdvertiseSettings
	payload  AdvertisePayload
}

// NewAdvertisingController creates an idle controller.
func NewAdvertisingController(radio RadioAdapter, gatt *GattServerController, tracker *ConnectionTracker, publish func(Event), logger *logrus.Logger) *AdvertisingController {
	if logger == nil {
		logger = logrus.New()
	}
	if publish == nil {
		publish = func(Event) {}
	}
	return &AdvertisingController{
		radio:   radio,
		gatt:    gatt,
		tracker: tracker,
		publish: publish,
		logger:  logger,
	}
}

// Start opens the GATT server with services and submits an advertising
// request. A nil error means the request was submitted, not that
// advertising is on the air. Start while starting or advertising is a no-op.
func (c *AdvertisingController) Start(settings AdvertiseSettings, name string, services []*ServiceDescriptor) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if st := c.State(); st != AdvertisingIdle {
		c.logger.WithField("state", st.String()).Debug("Advertising already requested")
		return nil
	}

	if !c.radio.IsAdapterPresent() {
		return newError(RadioUnavailable, "no Bluetooth adapter present", nil)
	}
	if !c.radio.IsAdapterEnabled() {
		c.logger.Warn("Bluetooth adapter is disabled, requesting enable")
		c.radio.RequestEnable()
		return newError(RadioDisabled, "Bluetooth adapter is disabled", nil)
	}

	adv := c.radio.Advertiser()
	if adv == nil {
		return newError(RadioUnavailable, "platform does not support advertising", nil)
	}

	if err := c.gatt.Open(services); err != nil {
		return err
	}

	payload := AdvertisePayload{
		IncludeDeviceName: true,
		TxPowerLevel:      settings.TxPower.DBm(),
		ServiceUUIDs:      c.gatt.ServiceUUIDs(),
	}
	if _, err := payload.Encode(name); err != nil {
		c.gatt.Close()
		return err
	}

	c.mu.Lock()
	c.gen++
	attempt := &advertiseAttempt{c: c, gen: c.gen}
	c.attempt = attempt
	c.adv = adv
	c.settings = settings
	c.payload = payload
	// Set before submitting so a synchronous confirmation lands on Starting.
	c.state = AdvertisingStarting
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"mode":     settings.Mode.String(),
		"tx_power": settings.TxPower.String(),
		"services": len(payload.ServiceUUIDs),
	}).Info("Advertising requested")

	if err := adv.StartAdvertising(settings, payload, attempt); err != nil {
		c.mu.Lock()
		if c.attempt == attempt {
			c.state = AdvertisingIdle
			c.attempt = nil
			c.adv = nil
		}
		c.mu.Unlock()
		c.gatt.Close()
		return newError(RadioUnavailable, "failed to submit advertising request", err)
	}
	return nil
}

// Stop stops advertising, closes the GATT server and forgets the peer.
// Stop on an idle controller does nothing.
func (c *AdvertisingController) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state == AdvertisingIdle {
		c.mu.Unlock()
		return
	}
	adv, attempt := c.adv, c.attempt
	c.gen++ // invalidate late callbacks for this attempt
	c.mu.Unlock()

	if adv != nil && attempt != nil {
		adv.StopAdvertising(attempt)
	}
	c.gatt.Close()
	c.tracker.Reset()

	c.mu.Lock()
	c.state = AdvertisingIdle
	c.attempt = nil
	c.adv = nil
	c.mu.Unlock()

	c.logger.Info("Advertising stopped")
}

// State returns the current lifecycle state.
func (c *AdvertisingController) State() AdvertisingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Payload returns the payload of the current or last submitted request.
func (c *AdvertisingController) Payload() AdvertisePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload
}

func (c *AdvertisingController) onStartSuccess(gen uint64, settings AdvertiseSettings) {
	c.mu.Lock()
	if gen != c.gen || c.state != AdvertisingStarting {
		c.mu.Unlock()
		c.logger.WithField("generation", gen).Debug("Stale advertising confirmation ignored")
		return
	}
	c.state = AdvertisingActive
	c.mu.Unlock()

	c.logger.WithField("mode", settings.Mode.String()).Info("Advertising started")
	c.publish(Event{Type: EventAdvertisingStarted})
}

func (c *AdvertisingController) onStartFailure(gen uint64, code AdvertiseFailure) {
	c.mu.Lock()
	if gen != c.gen || c.state == AdvertisingIdle {
		c.mu.Unlock()
		c.logger.WithField("generation", gen).Debug("Stale advertising failure ignored")
		return
	}
	// Tear down before Idle becomes visible so a concurrent Start opens a
	// fresh server instead of reusing the one being closed.
	c.gatt.Close()
	c.tracker.Reset()
	c.state = AdvertisingIdle
	c.attempt = nil
	c.adv = nil
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"code":   int(code),
		"reason": code.String(),
	}).Error("Advertising failed")
	c.publish(Event{Type: EventAdvertisingFailed, Failure: code})
}

// advertiseAttempt is the sink handed to the platform for one Start call.
// Callbacks carrying an old generation are dropped.
type advertiseAttempt struct {
	c   *AdvertisingController
	gen uint64
}

func (a *advertiseAttempt) OnStartSuccess(settings AdvertiseSettings) {
	a.c.onStartSuccess(a.gen, settings)
}

func (a *advertiseAttempt) OnStartFailure(code AdvertiseFailure) {
	a.c.onStartFailure(a.gen, code)
}
