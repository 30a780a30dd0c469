package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/bridge"
	"github.com/robotalks/panel.go/pkg/link"
	"github.com/robotalks/panel.go/pkg/protocol"
)

// Topics relative to the queue prefix.
const (
	ReportTopicSuffix  = "/report"
	CommandTopicSuffix = "/cmd"
	MetaTopicSuffix    = "/meta"
	StateTopicSuffix   = "/state"
)

// ReportTopic carries messages received from the device.
func ReportTopic(deviceID string) string { return deviceID + ReportTopicSuffix }

// CommandTopic carries commands to be sent to the device.
func CommandTopic(deviceID string) string { return deviceID + CommandTopicSuffix }

// MetaTopic holds the retained Meta while the bridge is up.
func MetaTopic(deviceID string) string { return deviceID + MetaTopicSuffix }

// StateTopic holds the retained liveness of the device.
func StateTopic(deviceID string) string { return deviceID + StateTopicSuffix }

// Sender sends a message to the device, implemented by link.Link.
type Sender interface {
	Send(protocol.Message) error
}

// Meta describes a bridged device.
type Meta struct {
	DeviceID  string    `json:"device_id"`
	Device    string    `json:"device,omitempty"`
	Host      string    `json:"host,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Bridge publishes device messages and forwards commands to the device.
type Bridge struct {
	Queue    *Queue
	DeviceID string
	Sender   Sender
	// ForwardHeartbeats also publishes Heartbeat messages.
	ForwardHeartbeats bool

	metaJSON []byte
	now      func() time.Time
}

// NewBridge creates a Bridge. The meta topic is cleared by the broker
// through the will message if the bridge disappears.
func NewBridge(brokerURL string, meta Meta, sender Sender) (*Bridge, error) {
	if meta.DeviceID == "" {
		return nil, fmt.Errorf("missing device ID")
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+MetaTopic(meta.DeviceID), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("panel:" + meta.DeviceID)
	}
	return newBridge(NewQueue(opts, topicPrefix), meta, sender), nil
}

func newBridge(q *Queue, meta Meta, sender Sender) *Bridge {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}
	b := &Bridge{
		Queue:    q,
		DeviceID: meta.DeviceID,
		Sender:   sender,
		metaJSON: metaJSON,
		now:      time.Now,
	}
	q.OnConnect = func(*Queue) { b.onConnected() }
	return b
}

// HandleMessage implements link.MessageHandler.
func (b *Bridge) HandleMessage(ctx context.Context, msg protocol.Message) {
	if _, ok := msg.(protocol.Heartbeat); ok && !b.ForwardHeartbeats {
		return
	}
	data, err := bridge.EncodeEnvelope(bridge.FromMessage(b.DeviceID, msg, b.now()))
	if err != nil {
		glog.Errorf("encode %s: %v", msg, err)
		return
	}
	b.Queue.Pub(ReportTopic(b.DeviceID), data)
}

// StateChanged implements link.StateNotifier.
func (b *Bridge) StateChanged(ctx context.Context, state link.State) {
	b.Queue.PubWith(StateTopic(b.DeviceID), []byte(state.String()), 1, true)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(CommandTopic(b.DeviceID), b.handleCommand)
	defer sub.Close()
	token := b.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect: %w", err)
	}
	<-ctx.Done()
	b.Queue.PubWith(MetaTopic(b.DeviceID), nil, 1, true).WaitTimeout(time.Second)
	b.Queue.Close()
	return nil
}

func (b *Bridge) onConnected() {
	b.Queue.PubWith(MetaTopic(b.DeviceID), b.metaJSON, 1, true)
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	env, err := bridge.DecodeEnvelope(payload)
	if err != nil {
		glog.Warningf("%s: bad envelope: %v", topic, err)
		return
	}
	if env.DeviceID != "" && env.DeviceID != b.DeviceID {
		glog.Warningf("%s: envelope for device %q", topic, env.DeviceID)
		return
	}
	msg, err := env.Message()
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	if !protocol.IsCommand(msg.Type()) {
		glog.Warningf("%s: %s is not a command", topic, msg)
		return
	}
	if err := b.Sender.Send(msg); err != nil {
		glog.Errorf("%s: %v", topic, err)
	}
}
