package protocol

import (
	"encoding/binary"
	"fmt"
)

// Message is one application level command or report.
// The set of implementations is closed to this package.
type Message interface {
	// Type returns the message-type tag byte.
	Type() byte
	String() string

	appendPayload([]byte) []byte
}

// Message type tags.
// Commands (host -> device) use 0x10-0x1F, reports (device -> host)
// 0x20-0x2F and link level messages 0x30-0x3F. None of them collide with
// the framing sentinels.
const (
	TypeSetBrightness     byte = 0x10
	TypeSetVolume         byte = 0x11
	TypeSetLED            byte = 0x12
	TypeSetTemperature    byte = 0x13
	TypePowerCycle        byte = 0x14
	TypeBootload          byte = 0x1f
	TypeDialDelta         byte = 0x20
	TypeDialButtonPress   byte = 0x21
	TypeDialButtonRelease byte = 0x22
	TypeEmergencyOff      byte = 0x23
	TypeDeviceError       byte = 0x2e
	TypeHeartbeat         byte = 0x30
	TypeAck               byte = 0x31
	TypeNack              byte = 0x32
)

// MaxPayloadLen is the largest payload of any message type.
const MaxPayloadLen = 6

var payloadLens = [256]int8{
	TypeSetBrightness:     1,
	TypeSetVolume:         1,
	TypeSetLED:            6,
	TypeSetTemperature:    3,
	TypePowerCycle:        2,
	TypeBootload:          0,
	TypeDialDelta:         1,
	TypeDialButtonPress:   0,
	TypeDialButtonRelease: 0,
	TypeEmergencyOff:      0,
	TypeDeviceError:       2,
	TypeHeartbeat:         0,
	TypeAck:               1,
	TypeNack:              2,
}

var knownTypes = [256]bool{
	TypeSetBrightness:     true,
	TypeSetVolume:         true,
	TypeSetLED:            true,
	TypeSetTemperature:    true,
	TypePowerCycle:        true,
	TypeBootload:          true,
	TypeDialDelta:         true,
	TypeDialButtonPress:   true,
	TypeDialButtonRelease: true,
	TypeEmergencyOff:      true,
	TypeDeviceError:       true,
	TypeHeartbeat:         true,
	TypeAck:               true,
	TypeNack:              true,
}

// PayloadLen returns the fixed payload length of a message type.
func PayloadLen(tag byte) (int, error) {
	if !knownTypes[tag] {
		return 0, &DecodeError{Kind: UnknownMessageType, Type: tag}
	}
	return int(payloadLens[tag]), nil
}

// IsKnownType checks if tag is a defined message type.
func IsKnownType(tag byte) bool {
	return knownTypes[tag]
}

// IsCommand checks if tag is a host to device command.
func IsCommand(tag byte) bool {
	return knownTypes[tag] && tag&0xf0 == 0x10
}

// IsReport checks if tag is a device to host report.
func IsReport(tag byte) bool {
	return knownTypes[tag] && tag&0xf0 == 0x20
}

var typeNames = map[byte]string{
	TypeSetBrightness:     "set_brightness",
	TypeSetVolume:         "set_volume",
	TypeSetLED:            "set_led",
	TypeSetTemperature:    "set_temperature",
	TypePowerCycle:        "power_cycle",
	TypeBootload:          "bootload",
	TypeDialDelta:         "dial_delta",
	TypeDialButtonPress:   "dial_button_press",
	TypeDialButtonRelease: "dial_button_release",
	TypeEmergencyOff:      "emergency_off",
	TypeDeviceError:       "device_error",
	TypeHeartbeat:         "heartbeat",
	TypeAck:               "ack",
	TypeNack:              "nack",
}

// TypeName returns a snake_case name of the message type,
// or "0xNN" for unknown tags.
func TypeName(tag byte) string {
	if name, ok := typeNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", tag)
}

// MessageType returns the tag byte of m.
func MessageType(m Message) byte {
	return m.Type()
}

// MarshalPayload returns the payload bytes of m, without type or framing.
func MarshalPayload(m Message) []byte {
	return m.appendPayload(make([]byte, 0, MaxPayloadLen))
}

// Unmarshal builds the message for tag from its payload.
// payload must be exactly PayloadLen(tag) bytes.
func Unmarshal(tag byte, payload []byte) (Message, error) {
	n, err := PayloadLen(tag)
	if err != nil {
		return nil, err
	}
	if len(payload) != n {
		return nil, fmt.Errorf("message type 0x%02x: payload length %d, expect %d", tag, len(payload), n)
	}
	switch tag {
	case TypeSetBrightness:
		return SetBrightness{Level: payload[0]}, nil
	case TypeSetVolume:
		return SetVolume{Level: payload[0]}, nil
	case TypeSetLED:
		return SetLED{
			R:          payload[0],
			G:          payload[1],
			B:          payload[2],
			Pulse:      PulseMode(payload[3]),
			IntervalMS: binary.BigEndian.Uint16(payload[4:6]),
		}, nil
	case TypeSetTemperature:
		return SetTemperature{Target: payload[0], Value: binary.BigEndian.Uint16(payload[1:3])}, nil
	case TypePowerCycle:
		return PowerCycle{Slot: payload[0], On: payload[1] != 0}, nil
	case TypeBootload:
		return Bootload{}, nil
	case TypeDialDelta:
		return DialDelta{Delta: int8(payload[0])}, nil
	case TypeDialButtonPress:
		return DialButtonPress{}, nil
	case TypeDialButtonRelease:
		return DialButtonRelease{}, nil
	case TypeEmergencyOff:
		return EmergencyOff{}, nil
	case TypeDeviceError:
		return DeviceError{Code: binary.BigEndian.Uint16(payload)}, nil
	case TypeHeartbeat:
		return Heartbeat{}, nil
	case TypeAck:
		return Ack{Sequence: payload[0]}, nil
	case TypeNack:
		return Nack{Sequence: payload[0], Reason: ErrorCode(payload[1])}, nil
	}
	// knownTypes and this switch must list the same tags.
	panic(fmt.Sprintf("message type 0x%02x has no decoder", tag))
}

// SetBrightness sets the lighting intensity.
type SetBrightness struct {
	Level uint8
}

// Type implements Message.
func (m SetBrightness) Type() byte { return TypeSetBrightness }

func (m SetBrightness) String() string { return fmt.Sprintf("SetBrightness{level=%d}", m.Level) }

func (m SetBrightness) appendPayload(b []byte) []byte { return append(b, m.Level) }

// SetVolume sets the volume level.
type SetVolume struct {
	Level uint8
}

// Type implements Message.
func (m SetVolume) Type() byte { return TypeSetVolume }

func (m SetVolume) String() string { return fmt.Sprintf("SetVolume{level=%d}", m.Level) }

func (m SetVolume) appendPayload(b []byte) []byte { return append(b, m.Level) }

// PulseMode selects how the panel LED animates.
type PulseMode uint8

// Pulse modes.
const (
	PulseSolid PulseMode = iota
	PulseDialTurn
	PulseBreathing
)

func (p PulseMode) String() string {
	switch p {
	case PulseSolid:
		return "solid"
	case PulseDialTurn:
		return "dial"
	case PulseBreathing:
		return "breathing"
	}
	return fmt.Sprintf("PulseMode(%d)", uint8(p))
}

// SetLED sets the color and animation of the panel LED.
// IntervalMS is the breathing half period and only used with PulseBreathing.
type SetLED struct {
	R, G, B    uint8
	Pulse      PulseMode
	IntervalMS uint16
}

// Type implements Message.
func (m SetLED) Type() byte { return TypeSetLED }

func (m SetLED) String() string {
	if m.Pulse == PulseBreathing {
		return fmt.Sprintf("SetLED{rgb=#%02x%02x%02x, pulse=%s, interval=%dms}", m.R, m.G, m.B, m.Pulse, m.IntervalMS)
	}
	return fmt.Sprintf("SetLED{rgb=#%02x%02x%02x, pulse=%s}", m.R, m.G, m.B, m.Pulse)
}

func (m SetLED) appendPayload(b []byte) []byte {
	return append(b, m.R, m.G, m.B, byte(m.Pulse), byte(m.IntervalMS>>8), byte(m.IntervalMS))
}

// Validate checks the fields the wire format cannot constrain.
func (m SetLED) Validate() error {
	switch m.Pulse {
	case PulseSolid, PulseDialTurn:
		return nil
	case PulseBreathing:
		if m.IntervalMS == 0 {
			return fmt.Errorf("breathing interval must be positive")
		}
		return nil
	}
	return fmt.Errorf("invalid pulse mode %d", uint8(m.Pulse))
}

// SetTemperature sets the color temperature of a light target.
type SetTemperature struct {
	Target uint8
	Value  uint16
}

// Type implements Message.
func (m SetTemperature) Type() byte { return TypeSetTemperature }

func (m SetTemperature) String() string {
	return fmt.Sprintf("SetTemperature{target=%d, value=%d}", m.Target, m.Value)
}

func (m SetTemperature) appendPayload(b []byte) []byte {
	return append(b, m.Target, byte(m.Value>>8), byte(m.Value))
}

// PowerCycle switches a power slot.
type PowerCycle struct {
	Slot uint8
	On   bool
}

// Type implements Message.
func (m PowerCycle) Type() byte { return TypePowerCycle }

func (m PowerCycle) String() string { return fmt.Sprintf("PowerCycle{slot=%d, on=%v}", m.Slot, m.On) }

func (m PowerCycle) appendPayload(b []byte) []byte {
	var on byte
	if m.On {
		on = 1
	}
	return append(b, m.Slot, on)
}

// Bootload reboots the device into its bootloader.
type Bootload struct{}

// Type implements Message.
func (Bootload) Type() byte { return TypeBootload }

func (Bootload) String() string { return "Bootload" }

func (Bootload) appendPayload(b []byte) []byte { return b }

// DialDelta reports incremental rotary movement.
type DialDelta struct {
	Delta int8
}

// Type implements Message.
func (m DialDelta) Type() byte { return TypeDialDelta }

func (m DialDelta) String() string { return fmt.Sprintf("DialDelta{delta=%d}", m.Delta) }

func (m DialDelta) appendPayload(b []byte) []byte { return append(b, byte(m.Delta)) }

// DialButtonPress reports the dial button going down.
type DialButtonPress struct{}

// Type implements Message.
func (DialButtonPress) Type() byte { return TypeDialButtonPress }

func (DialButtonPress) String() string { return "DialButtonPress" }

func (DialButtonPress) appendPayload(b []byte) []byte { return b }

// DialButtonRelease reports the dial button going up.
type DialButtonRelease struct{}

// Type implements Message.
func (DialButtonRelease) Type() byte { return TypeDialButtonRelease }

func (DialButtonRelease) String() string { return "DialButtonRelease" }

func (DialButtonRelease) appendPayload(b []byte) []byte { return b }

// EmergencyOff reports the emergency switch was hit.
type EmergencyOff struct{}

// Type implements Message.
func (EmergencyOff) Type() byte { return TypeEmergencyOff }

func (EmergencyOff) String() string { return "EmergencyOff" }

func (EmergencyOff) appendPayload(b []byte) []byte { return b }

// DeviceError reports a firmware specific error code.
type DeviceError struct {
	Code uint16
}

// Type implements Message.
func (m DeviceError) Type() byte { return TypeDeviceError }

func (m DeviceError) String() string { return fmt.Sprintf("DeviceError{code=0x%04x}", m.Code) }

func (m DeviceError) appendPayload(b []byte) []byte { return append(b, byte(m.Code>>8), byte(m.Code)) }

// Heartbeat is the keepalive, sent by both sides.
type Heartbeat struct{}

// Type implements Message.
func (Heartbeat) Type() byte { return TypeHeartbeat }

func (Heartbeat) String() string { return "Heartbeat" }

func (Heartbeat) appendPayload(b []byte) []byte { return b }

// Ack acknowledges the command with Sequence.
type Ack struct {
	Sequence uint8
}

// Type implements Message.
func (m Ack) Type() byte { return TypeAck }

func (m Ack) String() string { return fmt.Sprintf("Ack{seq=%d}", m.Sequence) }

func (m Ack) appendPayload(b []byte) []byte { return append(b, m.Sequence) }

// Nack rejects the command with Sequence.
type Nack struct {
	Sequence uint8
	Reason   ErrorCode
}

// Type implements Message.
func (m Nack) Type() byte { return TypeNack }

func (m Nack) String() string { return fmt.Sprintf("Nack{seq=%d, reason=%s}", m.Sequence, m.Reason) }

func (m Nack) appendPayload(b []byte) []byte { return append(b, m.Sequence, byte(m.Reason)) }

// ErrorCode is the reason carried by Nack.
type ErrorCode uint8

// Error codes. The first five mirror the decode error kinds.
const (
	ErrorCodeNone ErrorCode = iota
	ErrorCodeUnknownMessageType
	ErrorCodeChecksumMismatch
	ErrorCodeFramingError
	ErrorCodeUnexpectedStart
	ErrorCodeBufferOverflow
	ErrorCodeBusy
	ErrorCodeUnsupported
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeNone:               "none",
	ErrorCodeUnknownMessageType: "unknown message type",
	ErrorCodeChecksumMismatch:   "checksum mismatch",
	ErrorCodeFramingError:       "framing error",
	ErrorCodeUnexpectedStart:    "unexpected start",
	ErrorCodeBufferOverflow:     "buffer overflow",
	ErrorCodeBusy:               "busy",
	ErrorCodeUnsupported:        "unsupported",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(0x%02x)", uint8(c))
}

// ErrorCodeFor maps a decode error to the code a receiver reports in Nack.
func ErrorCodeFor(err error) ErrorCode {
	kind, ok := KindOf(err)
	if !ok {
		return ErrorCodeNone
	}
	return ErrorCode(kind)
}
