package main

import (
	"errors"

	"github.com/srg/blip/internal/peripheral"
	"github.com/srg/blip/internal/radio/goble"
)

// FormatUserError turns radio and peripheral failures into a message a user
// can act on. Anything else is printed as is.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, goble.ErrPermission):
		return "permission denied opening the Bluetooth adapter (run as root or grant CAP_NET_ADMIN)"
	case errors.Is(err, goble.ErrUnsupportedPlatform):
		return "the peripheral role is not supported on this platform"
	case errors.Is(err, peripheral.ErrRadioDisabled):
		return "Bluetooth is turned off, turn it on and start again"
	case errors.Is(err, peripheral.ErrRadioUnavailable):
		return "no usable Bluetooth adapter: " + err.Error()
	case errors.Is(err, peripheral.ErrServerUnavailable):
		return "cannot open the GATT server: " + err.Error()
	case errors.Is(err, peripheral.ErrPayloadTooLarge):
		return "advertisement does not fit in 31 bytes: " + err.Error()
	case errors.Is(err, peripheral.ErrNoPeerConnected):
		return "no central is connected"
	default:
		return err.Error()
	}
}
