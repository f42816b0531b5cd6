//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func newDevice() (ble.Device, error) {
	// HCI devices serve both roles; OptPeripheralRole is rejected here.
	return linux.NewDevice()
}
