package peripheral

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Peer identifies a connected central device.
type Peer struct {
	Address string
}

func (p Peer) String() string {
	return p.Address
}

// ConnectionState is the link state reported with a connection event.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnected
)

func (s ConnectionState) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Status is the ATT status code carried by a response.
// Do not renumber; values match the Bluetooth Core specification.
type Status int

const (
	StatusSuccess                     Status = 0x00
	StatusReadNotPermitted            Status = 0x02
	StatusWriteNotPermitted           Status = 0x03
	StatusRequestNotSupported         Status = 0x06
	StatusInvalidOffset               Status = 0x07
	StatusAttributeNotFound           Status = 0x0A
	StatusInvalidAttributeValueLength Status = 0x0D
	StatusUnlikely                    Status = 0x0E
	StatusFailure                     Status = 0x101
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusReadNotPermitted:
		return "read not permitted"
	case StatusWriteNotPermitted:
		return "write not permitted"
	case StatusRequestNotSupported:
		return "request not supported"
	case StatusInvalidOffset:
		return "invalid offset"
	case StatusAttributeNotFound:
		return "attribute not found"
	case StatusInvalidAttributeValueLength:
		return "invalid attribute value length"
	case StatusUnlikely:
		return "unlikely error"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Permissions is the set of operations a characteristic allows.
type Permissions uint8

const (
	PermRead Permissions = 1 << iota
	PermWrite
	PermNotify
)

// Has reports whether all bits of q are set in p.
func (p Permissions) Has(q Permissions) bool {
	return p&q == q
}

func (p Permissions) String() string {
	var names []string
	if p.Has(PermRead) {
		names = append(names, "read")
	}
	if p.Has(PermWrite) {
		names = append(names, "write")
	}
	if p.Has(PermNotify) {
		names = append(names, "notify")
	}
	return strings.Join(names, ",")
}

// CharacteristicDescriptor is a value slot within a service.
// The value is shared between the radio callback context and the
// interactive context, so all access goes through Value and SetValue.
type CharacteristicDescriptor struct {
	ID          uuid.UUID
	Permissions Permissions

	mu    sync.RWMutex
	value []byte
}

// NewCharacteristic creates a characteristic with an empty value.
func NewCharacteristic(id uuid.UUID, perms Permissions) *CharacteristicDescriptor {
	return &CharacteristicDescriptor{ID: id, Permissions: perms}
}

// Value returns a copy of the current value.
func (c *CharacteristicDescriptor) Value() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out
}

// SetValue replaces the current value with a copy of b.
func (c *CharacteristicDescriptor) SetValue(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	c.mu.Lock()
	c.value = cp
	c.mu.Unlock()
}

// SetText stores the UTF-8 bytes of s.
func (c *CharacteristicDescriptor) SetText(s string) {
	c.SetValue([]byte(s))
}

// writeAt applies a (possibly long) write at offset and returns the
// resulting value. ok is false when offset is past the end of the value.
func (c *CharacteristicDescriptor) writeAt(offset int, b []byte) (result []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset < 0 || offset > len(c.value) {
		return nil, false
	}
	next := make([]byte, offset+len(b))
	copy(next, c.value[:offset])
	copy(next[offset:], b)
	c.value = next

	result = make([]byte, len(next))
	copy(result, next)
	return result, true
}

// ServiceDescriptor is a primary service and the characteristics it owns.
type ServiceDescriptor struct {
	ID              uuid.UUID
	Characteristics []*CharacteristicDescriptor
}

// NewService creates a service owning the given characteristics.
func NewService(id uuid.UUID, chars ...*CharacteristicDescriptor) *ServiceDescriptor {
	return &ServiceDescriptor{ID: id, Characteristics: chars}
}

// Characteristic returns the characteristic with the given id.
func (s *ServiceDescriptor) Characteristic(id uuid.UUID) (*CharacteristicDescriptor, bool) {
	for _, c := range s.Characteristics {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// WriteRequest is an inbound characteristic write. It is only valid for the
// duration of the OnCharacteristicWriteRequest call that carries it.
type WriteRequest struct {
	Peer             Peer
	RequestID        int
	CharacteristicID uuid.UUID
	PreparedWrite    bool
	ResponseNeeded   bool
	Offset           int
	Value            []byte
}

// AdvertisingState is the lifecycle state of the AdvertisingController.
type AdvertisingState int

const (
	AdvertisingIdle AdvertisingState = iota
	// AdvertisingStarting means a start was submitted but not yet confirmed.
	AdvertisingStarting
	AdvertisingActive
)

func (s AdvertisingState) String() string {
	switch s {
	case AdvertisingStarting:
		return "starting"
	case AdvertisingActive:
		return "advertising"
	default:
		return "idle"
	}
}

// AdvertiseMode trades discovery latency against power.
type AdvertiseMode int

const (
	AdvertiseModeLowPower AdvertiseMode = iota
	AdvertiseModeBalanced
	AdvertiseModeLowLatency
)

func (m AdvertiseMode) String() string {
	return [...]string{"low_power", "balanced", "low_latency"}[m]
}

// TxPower is the requested advertising transmit power.
type TxPower int

const (
	TxPowerUltraLow TxPower = iota
	TxPowerLow
	TxPowerMedium
	TxPowerHigh
)

func (p TxPower) String() string {
	return [...]string{"ultra_low", "low", "medium", "high"}[p]
}

// AdvertiseSettings are the radio parameters submitted with a payload.
type AdvertiseSettings struct {
	Mode        AdvertiseMode
	TxPower     TxPower
	Connectable bool
}

// DefaultAdvertiseSettings returns balanced mode at high power.
func DefaultAdvertiseSettings() AdvertiseSettings {
	return AdvertiseSettings{
		Mode:        AdvertiseModeBalanced,
		TxPower:     TxPowerHigh,
		Connectable: true,
	}
}

// AdvertiseFailure is the code reported by OnStartFailure.
type AdvertiseFailure int

const (
	AdvertiseFailedDataTooLarge AdvertiseFailure = iota + 1
	AdvertiseFailedTooManyAdvertisers
	AdvertiseFailedAlreadyStarted
	AdvertiseFailedInternalError
	AdvertiseFailedFeatureUnsupported
)

func (f AdvertiseFailure) String() string {
	switch f {
	case AdvertiseFailedDataTooLarge:
		return "data too large"
	case AdvertiseFailedTooManyAdvertisers:
		return "too many advertisers"
	case AdvertiseFailedAlreadyStarted:
		return "already started"
	case AdvertiseFailedInternalError:
		return "internal error"
	case AdvertiseFailedFeatureUnsupported:
		return "feature unsupported"
	default:
		return "unknown"
	}
}
