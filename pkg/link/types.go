package link

import (
	"context"
	"fmt"
	"time"

	"github.com/robotalks/panel.go/pkg/protocol"
)

// State is the liveness of the peer as seen through inbound Heartbeats.
type State int

// States
const (
	StateUnknown State = iota // nothing received yet
	StateAlive                // heartbeats are arriving
	StateSilent               // no heartbeat within HeartbeatTimeout
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAlive:
		return "alive"
	case StateSilent:
		return "silent"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Direction of traffic.
type Direction int

// Directions
const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Observer receives per-event callbacks from a Link.
// It's called from the goroutine of Run or Send and must not block.
type Observer interface {
	ObserveBytes(dir Direction, n int)
	ObserveMessage(dir Direction, msg protocol.Message)
	ObserveDecodeError(kind protocol.ErrorKind)
	ObserveState(state State)
}

// Stats is a snapshot of Link counters.
// Rising Errors with an alive peer indicates a noisy line,
// while a silent peer indicates a disconnection.
type Stats struct {
	BytesIn       uint64
	BytesOut      uint64
	FramesIn      uint64
	FramesOut     uint64
	Errors        [protocol.BufferOverflow + 1]uint64
	State         State
	LastHeartbeat time.Time
}

// ErrorCount sums errors of all kinds.
func (s Stats) ErrorCount() (n uint64) {
	for _, c := range s.Errors {
		n += c
	}
	return
}

func (s Stats) String() string {
	str := fmt.Sprintf("state=%s in=%dB/%d out=%dB/%d", s.State, s.BytesIn, s.FramesIn, s.BytesOut, s.FramesOut)
	for _, kind := range protocol.Kinds {
		if c := s.Errors[kind]; c > 0 {
			str += fmt.Sprintf(" %s=%d", kind, c)
		}
	}
	return str
}

// MessageHandlers fans a message out to multiple handlers.
type MessageHandlers []MessageHandler

// HandleMessage implements MessageHandler.
func (h MessageHandlers) HandleMessage(ctx context.Context, msg protocol.Message) {
	for _, handler := range h {
		handler.HandleMessage(ctx, msg)
	}
}

// StateNotifiers fans a state change out to multiple notifiers.
type StateNotifiers []StateNotifier

// StateChanged implements StateNotifier.
func (n StateNotifiers) StateChanged(ctx context.Context, state State) {
	for _, notifier := range n {
		notifier.StateChanged(ctx, state)
	}
}
