// Package bridge carries panel messages beyond the serial link.
package bridge

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/panel.go/pkg/protocol"
)

// Envelope wraps a panel message with the originating device.
type Envelope struct {
	Type     uint32 `protobuf:"varint,1,opt,name=type,proto3" json:"type,omitempty"`
	Payload  []byte `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
	DeviceID string `protobuf:"bytes,3,opt,name=device_id,proto3" json:"device_id,omitempty"`
	UnixNano int64  `protobuf:"varint,4,opt,name=unix_nano,proto3" json:"unix_nano,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Envelope) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Envelope) Reset() { *m = Envelope{} }

// String implements proto.Message.
func (m *Envelope) String() string { return proto.CompactTextString(m) }

// FromMessage wraps msg.
func FromMessage(deviceID string, msg protocol.Message, at time.Time) *Envelope {
	return &Envelope{
		Type:     uint32(msg.Type()),
		Payload:  protocol.MarshalPayload(msg),
		DeviceID: deviceID,
		UnixNano: at.UnixNano(),
	}
}

// Message decodes the wrapped message.
func (m *Envelope) Message() (protocol.Message, error) {
	if m.Type > 0xff {
		return nil, fmt.Errorf("invalid message type %d", m.Type)
	}
	return protocol.Unmarshal(byte(m.Type), m.Payload)
}

// Time returns the time the message was captured.
func (m *Envelope) Time() time.Time {
	return time.Unix(0, m.UnixNano)
}

// EncodeEnvelope serializes an Envelope.
func EncodeEnvelope(m *Envelope) ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeEnvelope parses an Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	m := &Envelope{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
