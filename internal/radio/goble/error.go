package goble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blip/internal/peripheral"
)

var (
	// ErrBluetoothOff means an adapter exists but is powered off.
	ErrBluetoothOff = errors.New("bluetooth is turned off")
	// ErrNoAdapter means no usable adapter was found.
	ErrNoAdapter = errors.New("no bluetooth adapter")
	// ErrPermission means the process may not open the adapter.
	ErrPermission = errors.New("permission denied opening bluetooth adapter")
	// ErrUnsupportedPlatform is returned by DeviceFactory where go-ble has no backend.
	ErrUnsupportedPlatform = errors.New("bluetooth peripheral role is not supported on this platform")

	errServerClosed   = errors.New("GATT server is closed")
	errUnknownRequest = errors.New("unknown or expired request")
	errAnswered       = errors.New("request already answered")
	errPeerMismatch   = errors.New("response peer does not match request")
)

// NormalizeError maps known go-ble and platform error strings to the
// sentinels above. The original error is kept in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "is Bluetooth turned on"),
		containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "powered off"),
		containsIgnoreCase(msg, "rfkill"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "operation not permitted"),
		containsIgnoreCase(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	case containsIgnoreCase(msg, "no such device"),
		containsIgnoreCase(msg, "can't init hci"),
		containsIgnoreCase(msg, "no devices available"):
		return fmt.Errorf("%w: %v", ErrNoAdapter, err)
	default:
		return err
	}
}

// advertiseFailure classifies an advertising error into the code reported
// through OnStartFailure.
func advertiseFailure(err error) peripheral.AdvertiseFailure {
	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "not supported"), containsIgnoreCase(msg, "unsupported"):
		return peripheral.AdvertiseFailedFeatureUnsupported
	case containsIgnoreCase(msg, "too large"), containsIgnoreCase(msg, "too long"), containsIgnoreCase(msg, "exceed"):
		return peripheral.AdvertiseFailedDataTooLarge
	case containsIgnoreCase(msg, "already"):
		return peripheral.AdvertiseFailedAlreadyStarted
	case containsIgnoreCase(msg, "too many"):
		return peripheral.AdvertiseFailedTooManyAdvertisers
	default:
		return peripheral.AdvertiseFailedInternalError
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
