package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleMessages() []Message {
	return []Message{
		SetBrightness{Level: 0},
		SetBrightness{Level: 200},
		SetBrightness{Level: 255},
		SetVolume{Level: 0x7d},
		SetLED{R: 255, G: 0, B: 0, Pulse: PulseSolid},
		SetLED{R: 0x7e, G: 0x7f, B: 0x7d, Pulse: PulseBreathing, IntervalMS: 4000},
		SetTemperature{Target: 1, Value: 0x7e7f},
		PowerCycle{Slot: 2, On: true},
		PowerCycle{Slot: 3},
		Bootload{},
		DialDelta{Delta: 5},
		DialDelta{Delta: -128},
		DialDelta{Delta: 127},
		DialButtonPress{},
		DialButtonRelease{},
		EmergencyOff{},
		DeviceError{Code: 0xbeef},
		Heartbeat{},
		Ack{Sequence: 92},
		Nack{Sequence: 7, Reason: ErrorCodeChecksumMismatch},
		Nack{Sequence: 0xff, Reason: ErrorCode(0x7e)},
	}
}

func TestPayloadLen(t *testing.T) {
	max := 0
	for _, m := range sampleMessages() {
		n, err := PayloadLen(m.Type())
		require.NoError(t, err)
		require.Len(t, MarshalPayload(m), n, m.String())
		require.Equal(t, m.Type(), MessageType(m))
		if n > max {
			max = n
		}
	}
	require.Equal(t, MaxPayloadLen, max)

	for tag := 0; tag < 256; tag++ {
		_, err := PayloadLen(byte(tag))
		if IsKnownType(byte(tag)) {
			require.NoError(t, err)
			require.False(t, needsEscape(byte(tag)), "tag 0x%02x collides with sentinel", tag)
			continue
		}
		require.True(t, errors.Is(err, ErrUnknownMessageType))
		kind, ok := KindOf(err)
		require.True(t, ok)
		require.Equal(t, UnknownMessageType, kind)
	}
}

func TestTypeClasses(t *testing.T) {
	require.True(t, IsCommand(TypeSetLED))
	require.True(t, IsCommand(TypeBootload))
	require.False(t, IsCommand(TypeHeartbeat))
	require.False(t, IsCommand(0x15))
	require.True(t, IsReport(TypeDialDelta))
	require.False(t, IsReport(TypeAck))
	require.Equal(t, "set_led", TypeName(TypeSetLED))
	require.Equal(t, "0x99", TypeName(0x99))
}

func TestUnmarshal(t *testing.T) {
	for _, m := range sampleMessages() {
		t.Run(m.String(), func(t *testing.T) {
			decoded, err := Unmarshal(m.Type(), MarshalPayload(m))
			require.NoError(t, err)
			require.Equal(t, m, decoded)
		})
	}

	_, err := Unmarshal(TypeSetLED, []byte{1, 2})
	require.Error(t, err)
	_, err = Unmarshal(0x00, nil)
	require.True(t, errors.Is(err, ErrUnknownMessageType))
}

func TestPayloadLayout(t *testing.T) {
	testCases := []struct {
		msg    Message
		expect []byte
	}{
		{SetLED{R: 1, G: 2, B: 3, Pulse: PulseBreathing, IntervalMS: 0x0fa0}, []byte{1, 2, 3, 2, 0x0f, 0xa0}},
		{SetTemperature{Target: 1, Value: 0x1234}, []byte{1, 0x12, 0x34}},
		{PowerCycle{Slot: 4, On: true}, []byte{4, 1}},
		{DialDelta{Delta: -1}, []byte{0xff}},
		{DeviceError{Code: 0x0102}, []byte{1, 2}},
		{Nack{Sequence: 3, Reason: ErrorCodeBusy}, []byte{3, 6}},
		{Heartbeat{}, []byte{}},
	}
	for _, tc := range testCases {
		t.Run(tc.msg.String(), func(t *testing.T) {
			require.Equal(t, tc.expect, MarshalPayload(tc.msg))
		})
	}
}

func TestSetLEDValidate(t *testing.T) {
	require.NoError(t, SetLED{Pulse: PulseSolid}.Validate())
	require.NoError(t, SetLED{Pulse: PulseDialTurn}.Validate())
	require.NoError(t, SetLED{Pulse: PulseBreathing, IntervalMS: 1}.Validate())
	require.Error(t, SetLED{Pulse: PulseBreathing}.Validate())
	require.Error(t, SetLED{Pulse: PulseMode(9)}.Validate())
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, "checksum mismatch", ErrorCodeChecksumMismatch.String())
	require.Equal(t, "ErrorCode(0x7e)", ErrorCode(0x7e).String())
	for _, kind := range Kinds {
		code := ErrorCodeFor(&DecodeError{Kind: kind})
		require.Equal(t, kind.String(), code.String())
	}
	require.Equal(t, ErrorCodeNone, ErrorCodeFor(errors.New("other")))
}
