package peripheral

import "fmt"

// ErrorKind classifies peripheral failures.
type ErrorKind string

const (
	RadioUnavailable        ErrorKind = "radio_unavailable"
	RadioDisabled           ErrorKind = "radio_disabled"
	ServerUnavailable       ErrorKind = "server_unavailable"
	PayloadTooLarge         ErrorKind = "payload_too_large"
	NoPeerConnected         ErrorKind = "no_peer_connected"
	CharacteristicNotFound  ErrorKind = "characteristic_not_found"
	NotificationUnavailable ErrorKind = "notification_unavailable"
)

// Error is a classified peripheral failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is allows errors.Is to compare Error values by Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Sentinels for errors.Is checks.
var (
	ErrRadioUnavailable        = &Error{Kind: RadioUnavailable}
	ErrRadioDisabled           = &Error{Kind: RadioDisabled}
	ErrServerUnavailable       = &Error{Kind: ServerUnavailable}
	ErrPayloadTooLarge         = &Error{Kind: PayloadTooLarge}
	ErrNoPeerConnected         = &Error{Kind: NoPeerConnected}
	ErrCharacteristicNotFound  = &Error{Kind: CharacteristicNotFound}
	ErrNotificationUnavailable = &Error{Kind: NotificationUnavailable}
)

// newError builds a classified error carrying a cause.
func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// NotFoundError represents a lookup of a service or characteristic that
// does not exist in the profile.
type NotFoundError struct {
	Resource string   // "service" or "characteristic"
	UUIDs    []string // [serviceUUID] or [serviceUUID, charUUID]
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// Is makes a characteristic NotFoundError match ErrCharacteristicNotFound.
func (e *NotFoundError) Is(target error) bool {
	return e.Resource == "characteristic" && target == ErrCharacteristicNotFound
}
