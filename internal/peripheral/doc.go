// Package peripheral implements the server side of a Bluetooth Low Energy
// interaction: it advertises one service, accepts a single central and
// exchanges a text value through one read/write characteristic.
//
// The package is organized around four cooperating controllers:
//   - AdvertisingController owns the advertising lifecycle and payload
//   - GattServerController owns the GATT server handle and registered services
//   - ConnectionTracker owns the identity of the connected central
//   - RequestHandler answers read/write requests and pushes local updates
//
// The radio stack itself is consumed through the RadioAdapter contract, so the
// controllers can be driven by go-ble in production and by mocks in tests.
// Peripheral ties the controllers together and implements the event sinks the
// radio reports into.
package peripheral
