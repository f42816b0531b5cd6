//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newDevice() (ble.Device, error) {
	// CoreBluetooth needs the peripheral manager explicitly.
	return darwin.NewDevice(ble.OptPeripheralRole())
}
