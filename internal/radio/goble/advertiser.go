package goble

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blip/internal/groutine"
	"github.com/srg/blip/internal/peripheral"
)

// advertiser runs go-ble's blocking AdvertiseNameAndServices on a background
// goroutine. go-ble reports no start confirmation, so an advertisement that
// survives confirmDelay without error counts as started.
type advertiser struct {
	dev          ble.Device
	name         string
	confirmDelay time.Duration
	logger       *logrus.Logger

	mu   sync.Mutex
	run  *advertiseRun
	last *advertiseRun
}

type advertiseRun struct {
	cancel context.CancelFunc
	done   <-chan struct{}
}

func newAdvertiser(dev ble.Device, name string, confirmDelay time.Duration, logger *logrus.Logger) *advertiser {
	return &advertiser{dev: dev, name: name, confirmDelay: confirmDelay, logger: logger}
}

// StartAdvertising starts a new advertisement. Mode, tx power and
// connectability are fixed by the go-ble backends and only logged.
func (a *advertiser) StartAdvertising(settings peripheral.AdvertiseSettings, payload peripheral.AdvertisePayload, sink peripheral.AdvertiseEventSink) error {
	a.mu.Lock()
	if a.run != nil {
		a.mu.Unlock()
		groutine.Go(context.Background(), "ble-advertise-result", func(context.Context) {
			sink.OnStartFailure(peripheral.AdvertiseFailedAlreadyStarted)
		})
		return nil
	}
	prev := a.last
	a.mu.Unlock()

	// A stopped advertisement may still be unwinding inside go-ble.
	if prev != nil {
		<-prev.done
	}

	name := ""
	if payload.IncludeDeviceName {
		name = a.name
	}
	uuids := make([]ble.UUID, 0, len(payload.ServiceUUIDs))
	for _, u := range payload.ServiceUUIDs {
		uuids = append(uuids, toBLEUUID(u))
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	done := groutine.Go(ctx, "ble-advertiser", func(ctx context.Context) {
		errc <- a.dev.AdvertiseNameAndServices(ctx, name, uuids...)
	})
	run := &advertiseRun{cancel: cancel, done: done}

	a.mu.Lock()
	a.run = run
	a.last = run
	a.mu.Unlock()

	log := a.logger.WithFields(logrus.Fields{
		"name":     name,
		"services": len(uuids),
		"mode":     settings.Mode.String(),
		"tx_power": settings.TxPower.String(),
	})
	log.Debug("Advertising submitted")

	groutine.Go(ctx, "ble-advertise-result", func(ctx context.Context) {
		timer := time.NewTimer(a.confirmDelay)
		defer timer.Stop()

		select {
		case err := <-errc:
			if ctx.Err() != nil {
				return
			}
			a.finish(run)
			err = NormalizeError(err)
			log.WithError(err).Error("Advertising failed to start")
			sink.OnStartFailure(advertiseFailure(err))
			return
		case <-timer.C:
			sink.OnStartSuccess(settings)
		case <-ctx.Done():
			return
		}

		// A confirmed advertisement that dies later is reported as a start
		// failure so the controller drops back to idle.
		select {
		case err := <-errc:
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				a.finish(run)
				err = NormalizeError(err)
				log.WithError(err).Error("Advertising stopped unexpectedly")
				sink.OnStartFailure(advertiseFailure(err))
			}
		case <-ctx.Done():
		}
	})
	return nil
}

// StopAdvertising cancels the running advertisement, if any.
func (a *advertiser) StopAdvertising(peripheral.AdvertiseEventSink) {
	a.stop()
}

func (a *advertiser) stop() {
	a.mu.Lock()
	run := a.run
	a.run = nil
	a.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	a.logger.Debug("Advertising cancelled")
}

// finish forgets run if it is still the active advertisement.
func (a *advertiser) finish(run *advertiseRun) {
	a.mu.Lock()
	if a.run == run {
		a.run = nil
	}
	a.mu.Unlock()
	run.cancel()
}

var _ peripheral.Advertiser = (*advertiser)(nil)
