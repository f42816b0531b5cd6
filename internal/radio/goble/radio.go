// Package goble implements the peripheral radio contract on go-ble, using
// HCI sockets on linux and CoreBluetooth on darwin.
package goble

import (
	"errors"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blip/internal/peripheral"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newDevice

// DefaultConfirmDelay is how long an advertisement must run without error
// before the start is reported as successful.
const DefaultConfirmDelay = 250 * time.Millisecond

// Config holds the adapter settings that go-ble does not take per call.
type Config struct {
	// DeviceName is the local name advertised when the payload includes it.
	DeviceName string
	// ConfirmDelay overrides DefaultConfirmDelay when positive.
	ConfirmDelay time.Duration
}

// Radio is a peripheral.RadioAdapter backed by one go-ble device. The device
// is opened lazily on first use.
type Radio struct {
	cfg    Config
	logger *logrus.Logger

	mu      sync.Mutex
	dev     ble.Device
	openErr error
	server  *server
	adv     *advertiser
}

// NewRadio creates a Radio. Nothing is opened until the first call.
func NewRadio(cfg Config, logger *logrus.Logger) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = DefaultConfirmDelay
	}
	return &Radio{cfg: cfg, logger: logger}
}

// device opens the device once. A failure is cached until RequestEnable.
func (r *Radio) device() (ble.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev != nil {
		return r.dev, nil
	}
	if r.openErr != nil {
		return nil, r.openErr
	}

	dev, err := DeviceFactory()
	if err != nil {
		r.openErr = NormalizeError(err)
		r.logger.WithError(r.openErr).Debug("Failed to open Bluetooth device")
		return nil, r.openErr
	}
	r.dev = dev
	r.logger.Debug("Bluetooth device opened")
	return dev, nil
}

// IsAdapterPresent reports whether an adapter exists, powered or not.
func (r *Radio) IsAdapterPresent() bool {
	_, err := r.device()
	return err == nil || errors.Is(err, ErrBluetoothOff)
}

// IsAdapterEnabled reports whether the adapter is open and powered.
func (r *Radio) IsAdapterEnabled() bool {
	_, err := r.device()
	return err == nil
}

// RequestEnable cannot power the radio from user space on either backend.
// It asks the user to do so and forgets the cached failure so the next
// start probes the adapter again.
func (r *Radio) RequestEnable() {
	r.mu.Lock()
	r.openErr = nil
	r.mu.Unlock()
	r.logger.Warn("Bluetooth is off. Turn it on in system settings and start again")
}

// OpenGattServer opens a server session. Only one session is open at a
// time; opening a new one closes the previous.
func (r *Radio) OpenGattServer(sink peripheral.GattEventSink) (peripheral.ServerHandle, error) {
	dev, err := r.device()
	if err != nil {
		return nil, &peripheral.Error{Kind: peripheral.ServerUnavailable, Msg: "cannot host a GATT server", Err: err}
	}

	s := newServer(dev, sink, r.logger)
	r.mu.Lock()
	prev := r.server
	r.server = s
	r.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return s, nil
}

// Advertiser returns nil when the device cannot be opened.
func (r *Radio) Advertiser() peripheral.Advertiser {
	dev, err := r.device()
	if err != nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adv == nil {
		r.adv = newAdvertiser(dev, r.cfg.DeviceName, r.cfg.ConfirmDelay, r.logger)
	}
	return r.adv
}

// Close stops advertising, closes the server and releases the device.
func (r *Radio) Close() error {
	r.mu.Lock()
	dev, s, adv := r.dev, r.server, r.adv
	r.dev, r.server, r.adv = nil, nil, nil
	r.mu.Unlock()

	if adv != nil {
		adv.stop()
	}
	if s != nil {
		s.Close()
	}
	if dev == nil {
		return nil
	}
	if err := dev.Stop(); err != nil {
		return NormalizeError(err)
	}
	r.logger.Debug("Bluetooth device stopped")
	return nil
}

var _ peripheral.RadioAdapter = (*Radio)(nil)
