package protocol

import "io"

// Framing constants, fixed for protocol version 1.
// Any byte equal to StartByte, EndByte or EscapeByte between the
// sentinels is sent as EscapeByte, b^EscapeMask.
const (
	StartByte  byte = 0x7e
	EndByte    byte = 0x7f
	EscapeByte byte = 0x7d
	EscapeMask byte = 0x20
)

// MaxFrameLen is the worst case encoded length of any message:
// START, END and every one of type, payload and checksum escaped.
const MaxFrameLen = 2 + 2*(1+MaxPayloadLen+1)

func needsEscape(b byte) bool {
	return b == StartByte || b == EndByte || b == EscapeByte
}

func appendEscaped(dst []byte, b byte) []byte {
	if needsEscape(b) {
		return append(dst, EscapeByte, b^EscapeMask)
	}
	return append(dst, b)
}

// AppendFrame appends the encoded frame of m to dst.
// It doesn't allocate if dst has MaxFrameLen bytes spare capacity.
func AppendFrame(dst []byte, m Message) []byte {
	var scratch [1 + MaxPayloadLen]byte
	raw := appendRaw(scratch[:0], m)
	dst = append(dst, StartByte)
	for _, b := range raw {
		dst = appendEscaped(dst, b)
	}
	dst = appendEscaped(dst, Checksum(raw))
	return append(dst, EndByte)
}

// appendRaw appends the type and payload of m.
// Calls on the concrete types keep b off the heap.
func appendRaw(b []byte, m Message) []byte {
	b = append(b, m.Type())
	switch m := m.(type) {
	case SetBrightness:
		return m.appendPayload(b)
	case SetVolume:
		return m.appendPayload(b)
	case SetLED:
		return m.appendPayload(b)
	case SetTemperature:
		return m.appendPayload(b)
	case PowerCycle:
		return m.appendPayload(b)
	case DialDelta:
		return m.appendPayload(b)
	case DeviceError:
		return m.appendPayload(b)
	case Ack:
		return m.appendPayload(b)
	case Nack:
		return m.appendPayload(b)
	case Bootload, DialButtonPress, DialButtonRelease, EmergencyOff, Heartbeat:
		return b
	}
	// the Message set is closed, every variant is listed above.
	panic("protocol: unknown message variant")
}

// Encode returns the encoded frame of m.
func Encode(m Message) []byte {
	return AppendFrame(make([]byte, 0, MaxFrameLen), m)
}

// WriteFrame encodes m and writes the frame with a single Write.
func WriteFrame(w io.Writer, m Message) (int, error) {
	var buf [MaxFrameLen]byte
	return w.Write(AppendFrame(buf[:0], m))
}
