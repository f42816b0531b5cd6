package peripheral

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxAdvertisementLength is the legacy link-layer advertising data limit.
const MaxAdvertisementLength = 31

// advertising data field types
const (
	adTypeFlags        = 0x01
	adTypeSomeUUID128  = 0x06
	adTypeAllUUID128   = 0x07
	adTypeShortName    = 0x08
	adTypeCompleteName = 0x09
	adTypeTxPower      = 0x0A
)

// flag bits
const (
	adFlagGeneralDiscoverable = 1 << 1
	adFlagLEOnly              = 1 << 2
)

// AdvertisePayload describes the content of the advertising packet.
type AdvertisePayload struct {
	IncludeDeviceName   bool
	IncludeTxPowerLevel bool
	TxPowerLevel        int8 // dBm, only encoded when IncludeTxPowerLevel is set
	ServiceUUIDs        []uuid.UUID
}

// Encode builds the advertising data for a device called name.
// All service UUIDs must fit; the name is shortened to whatever room is
// left and dropped when no room is left at all.
func (p AdvertisePayload) Encode(name string) ([]byte, error) {
	pkt := new(adPacket)
	pkt.appendField(adTypeFlags, []byte{adFlagGeneralDiscoverable | adFlagLEOnly})

	if p.IncludeTxPowerLevel {
		pkt.appendField(adTypeTxPower, []byte{byte(p.TxPowerLevel)})
	}

	if len(p.ServiceUUIDs) > 0 {
		data := make([]byte, 0, 16*len(p.ServiceUUIDs))
		for _, u := range p.ServiceUUIDs {
			data = append(data, reverseUUID(u)...)
		}
		if !pkt.fits(len(data)) {
			return nil, newError(PayloadTooLarge,
				fmt.Sprintf("%d service UUIDs need %d bytes, %d available",
					len(p.ServiceUUIDs), len(data)+2, MaxAdvertisementLength-len(pkt.data)), nil)
		}
		pkt.appendField(adTypeAllUUID128, data)
	}

	if p.IncludeDeviceName && name != "" {
		typ := byte(adTypeCompleteName)
		room := MaxAdvertisementLength - len(pkt.data) - 2
		if len(name) > room {
			name = truncateUTF8(name, room)
			typ = adTypeShortName
		}
		if name != "" {
			pkt.appendField(typ, []byte(name))
		}
	}
	return pkt.data, nil
}

// DecodedAdvertisement is the subset of AD fields this package produces.
type DecodedAdvertisement struct {
	Flags        byte
	LocalName    string
	ShortName    bool
	TxPowerLevel *int8
	ServiceUUIDs []uuid.UUID
}

var errInvalidAdvertisement = errors.New("invalid advertise data")

// DecodeAdvertisement parses advertising data produced by Encode.
// Unknown field types are skipped.
func DecodeAdvertisement(b []byte) (*DecodedAdvertisement, error) {
	adv := &DecodedAdvertisement{}
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, errInvalidAdvertisement
		}
		l, t := int(b[0]), b[1]
		if l == 0 || len(b) < 1+l {
			return nil, errInvalidAdvertisement
		}
		d := b[2 : 1+l]
		switch t {
		case adTypeFlags:
			if len(d) > 0 {
				adv.Flags = d[0]
			}
		case adTypeTxPower:
			if len(d) > 0 {
				lvl := int8(d[0])
				adv.TxPowerLevel = &lvl
			}
		case adTypeSomeUUID128, adTypeAllUUID128:
			if len(d)%16 != 0 {
				return nil, errInvalidAdvertisement
			}
			for ; len(d) > 0; d = d[16:] {
				adv.ServiceUUIDs = append(adv.ServiceUUIDs, unreverseUUID(d[:16]))
			}
		case adTypeShortName:
			adv.LocalName = string(d)
			adv.ShortName = true
		case adTypeCompleteName:
			adv.LocalName = string(d)
		}
		b = b[1+l:]
	}
	return adv, nil
}

type adPacket struct {
	data []byte
}

// appendField appends len, typ, data. Len covers typ plus data.
func (p *adPacket) appendField(typ byte, data []byte) {
	p.data = append(p.data, byte(len(data)+1), typ)
	p.data = append(p.data, data...)
}

func (p *adPacket) fits(dataLen int) bool {
	return len(p.data)+2+dataLen <= MaxAdvertisementLength
}

// reverseUUID returns u in the little-endian order used on the air.
func reverseUUID(u uuid.UUID) []byte {
	b := make([]byte, 16)
	for i := range u {
		b[15-i] = u[i]
	}
	return b
}

func unreverseUUID(b []byte) uuid.UUID {
	var u uuid.UUID
	for i := range u {
		u[i] = b[15-i]
	}
	return u
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// DBm returns the transmit level a central would see for p.
func (p TxPower) DBm() int8 {
	return [...]int8{-21, -15, -7, 1}[p]
}
