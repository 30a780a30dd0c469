// Package sim emulates the device side of the panel protocol, for running
// the host tools without hardware.
package sim

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/link"
	"github.com/robotalks/panel.go/pkg/protocol"
)

// State is what a simulated panel currently shows.
type State struct {
	Brightness   uint8
	Volume       uint8
	LED          protocol.SetLED
	Temperatures map[uint8]uint16
	Power        map[uint8]bool
	Bootloads    int
}

func (s State) clone() State {
	c := s
	c.Temperatures = make(map[uint8]uint16, len(s.Temperatures))
	for k, v := range s.Temperatures {
		c.Temperatures[k] = v
	}
	c.Power = make(map[uint8]bool, len(s.Power))
	for k, v := range s.Power {
		c.Power[k] = v
	}
	return c
}

// Panel answers commands the way the firmware does: every command frame
// consumes the next sequence number and is answered with Ack or Nack.
type Panel struct {
	Link *link.Link
	// Unsupported command types are answered with Nack.
	Unsupported map[byte]bool
	// OnChange is called after a command updated the State.
	OnChange func(State)

	lock  sync.Mutex
	seq   link.Sequence
	state State
}

// NewPanel creates a Panel talking over rw.
func NewPanel(rw io.ReadWriter) *Panel {
	p := &Panel{
		Link: link.NewLink(rw),
		state: State{
			Temperatures: make(map[uint8]uint16),
			Power:        make(map[uint8]bool),
		},
	}
	p.Link.Handler = p
	p.Link.Notifier = link.StateChangedFunc(p.hostStateChanged)
	p.Link.DecodeFailed = p.decodeFailed
	return p
}

// State gets a copy of the current state.
func (p *Panel) State() State {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state.clone()
}

// Run implements Runnable.
func (p *Panel) Run(ctx context.Context) error {
	return p.Link.Run(ctx)
}

// Turn reports dial movement.
func (p *Panel) Turn(delta int8) error {
	return p.Link.Send(protocol.DialDelta{Delta: delta})
}

// Press reports the dial button going down.
func (p *Panel) Press() error {
	return p.Link.Send(protocol.DialButtonPress{})
}

// Release reports the dial button going up.
func (p *Panel) Release() error {
	return p.Link.Send(protocol.DialButtonRelease{})
}

// EmergencyOff reports the emergency switch.
func (p *Panel) EmergencyOff() error {
	return p.Link.Send(protocol.EmergencyOff{})
}

// ReportError reports a firmware error code.
func (p *Panel) ReportError(code uint16) error {
	return p.Link.Send(protocol.DeviceError{Code: code})
}

// HandleMessage implements link.MessageHandler.
func (p *Panel) HandleMessage(ctx context.Context, msg protocol.Message) {
	if !protocol.IsCommand(msg.Type()) {
		return
	}
	p.lock.Lock()
	p.seq = p.seq.Next()
	seq := uint8(p.seq)
	code := p.apply(msg)
	var state State
	if code == protocol.ErrorCodeNone {
		state = p.state.clone()
	}
	p.lock.Unlock()

	var reply protocol.Message = protocol.Ack{Sequence: seq}
	if code != protocol.ErrorCodeNone {
		glog.V(2).Infof("reject %s: %s", msg, code)
		reply = protocol.Nack{Sequence: seq, Reason: code}
	}
	if err := p.Link.Send(reply); err != nil {
		glog.Errorf("reply %s: %v", msg, err)
		return
	}
	if code == protocol.ErrorCodeNone && p.OnChange != nil {
		p.OnChange(state)
	}
}

func (p *Panel) apply(msg protocol.Message) protocol.ErrorCode {
	if p.Unsupported[msg.Type()] {
		return protocol.ErrorCodeUnsupported
	}
	switch m := msg.(type) {
	case protocol.SetBrightness:
		p.state.Brightness = m.Level
	case protocol.SetVolume:
		p.state.Volume = m.Level
	case protocol.SetLED:
		if err := m.Validate(); err != nil {
			return protocol.ErrorCodeUnsupported
		}
		p.state.LED = m
	case protocol.SetTemperature:
		p.state.Temperatures[m.Target] = m.Value
	case protocol.PowerCycle:
		p.state.Power[m.Slot] = m.On
	case protocol.Bootload:
		p.state.Bootloads++
	default:
		return protocol.ErrorCodeUnsupported
	}
	return protocol.ErrorCodeNone
}

// A command frame with a bad checksum still takes a sequence number,
// so the host attributes the Nack to the right command.
func (p *Panel) decodeFailed(ctx context.Context, err error) {
	var de *protocol.DecodeError
	if !errors.As(err, &de) || de.Kind != protocol.ChecksumMismatch || !protocol.IsCommand(de.Type) {
		return
	}
	p.lock.Lock()
	p.seq = p.seq.Next()
	seq := uint8(p.seq)
	p.lock.Unlock()
	if err := p.Link.Send(protocol.Nack{Sequence: seq, Reason: protocol.ErrorCodeFor(err)}); err != nil {
		glog.Errorf("nack: %v", err)
	}
}

// The host restarts numbering once it considers the panel silent.
func (p *Panel) hostStateChanged(ctx context.Context, state link.State) {
	if state != link.StateSilent {
		return
	}
	p.lock.Lock()
	p.seq = 0
	p.lock.Unlock()
}
