package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/protocol"
)

func TestEnvelope(t *testing.T) {
	at := time.Unix(1700000000, 123)
	msgs := []protocol.Message{
		protocol.DialDelta{Delta: -4},
		protocol.SetLED{R: 1, G: 2, B: 3, Pulse: protocol.PulseBreathing, IntervalMS: 1500},
		protocol.EmergencyOff{},
		protocol.Nack{Sequence: 3, Reason: protocol.ErrorCodeBusy},
	}
	for _, msg := range msgs {
		t.Run(msg.String(), func(t *testing.T) {
			data, err := EncodeEnvelope(FromMessage("panel-1", msg, at))
			require.NoError(t, err)
			env, err := DecodeEnvelope(data)
			require.NoError(t, err)
			require.Equal(t, "panel-1", env.DeviceID)
			require.Equal(t, at, env.Time())
			decoded, err := env.Message()
			require.NoError(t, err)
			require.Equal(t, msg, decoded)
		})
	}
}

func TestEnvelopeInvalid(t *testing.T) {
	_, err := (&Envelope{Type: 0x1234}).Message()
	require.Error(t, err)
	_, err = (&Envelope{Type: uint32(protocol.TypeSetLED), Payload: []byte{1}}).Message()
	require.Error(t, err)
	_, err = DecodeEnvelope([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
