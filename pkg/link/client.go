package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/protocol"
)

var (
	// ErrNoReply indicates no reply received from peer.
	// This happens when a reply is received for a latter command, and all
	// previous commands fail with this error.
	ErrNoReply = errors.New("no reply")
	// ErrNotCommand indicates the message is not a host to device command.
	ErrNotCommand = errors.New("not a command")
	// ErrPeerSilent fails pending commands when the peer stops heartbeating.
	ErrPeerSilent = errors.New("peer silent")
)

// CommandError wraps the reason from a Nack.
type CommandError struct {
	Code protocol.ErrorCode
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Code)
}

// Sequence numbers commands for Ack/Nack matching.
// The peer counts commands in the same order, starting from 1.
type Sequence uint8

// Next calculates the next sequence number, skipping 0.
func (s Sequence) Next() Sequence {
	if n := s + 1; n != 0 {
		return n
	}
	return 1
}

// IsValid checks if it's a valid sequence number.
func (s Sequence) IsValid() bool {
	return s != 0
}

// Result is the result of a command using Do.
type Result struct {
	Err error
}

// Client provides command/reply operations over Link.
type Client struct {
	// Expiration fails commands not replied within this duration, 0 never expires.
	Expiration time.Duration

	link     *Link
	eventCh  chan protocol.Message
	stateCh  chan State
	seq      Sequence
	cmdsHead *Command
	cmdsTail *Command
	cmdsLock sync.Mutex
}

// Command represents a pending command waiting for reply.
type Command struct {
	msg      protocol.Message
	seq      Sequence
	sentAt   time.Time
	resultCh chan Result
	next     *Command
}

// Sequence returns the sequence number assigned to the command.
func (c *Command) Sequence() Sequence {
	return c.seq
}

// Message returns the command message.
func (c *Command) Message() protocol.Message {
	return c.msg
}

// ResultChan returns the chan to retrieve result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// Wait waits for the result.
func (c *Command) Wait(ctx context.Context) error {
	select {
	case r := <-c.resultCh:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EventQueueSize is the capacity of the event chan.
const EventQueueSize = 64

// NewClient creates client and wraps the link.
func NewClient(link *Link) *Client {
	c := &Client{
		link:    link,
		eventCh: make(chan protocol.Message, EventQueueSize),
		stateCh: make(chan State, 1),
	}
	c.link.Handler = c
	c.link.Notifier = StateChangedFunc(c.stateChanged)
	return c
}

// Link gets wrapped Link.
func (c *Client) Link() *Link {
	return c.link
}

// StateChan retrieves the state reporting chan.
func (c *Client) StateChan() <-chan State {
	return c.stateCh
}

// EventChan retrieves the chan of reports and other non-reply messages.
func (c *Client) EventChan() <-chan protocol.Message {
	return c.eventCh
}

// DoWith sends a command and expects a result in the provided chan.
func (c *Client) DoWith(msg protocol.Message, ch chan Result) *Command {
	cmd := &Command{msg: msg, resultCh: ch}
	if !protocol.IsCommand(msg.Type()) {
		cmd.resultCh <- Result{Err: ErrNotCommand}
		return cmd
	}

	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	if err := c.link.Send(msg); err != nil {
		cmd.resultCh <- Result{Err: err}
		return cmd
	}
	c.seq = c.seq.Next()
	cmd.seq, cmd.sentAt = c.seq, time.Now()
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	return cmd
}

// Do sends a command and returns a Command for result.
func (c *Client) Do(msg protocol.Message) *Command {
	return c.DoWith(msg, make(chan Result, 1))
}

// ResetSequence restarts numbering, used when the peer restarts.
// Pending commands fail with err.
func (c *Client) ResetSequence(err error) {
	c.cmdsLock.Lock()
	head := c.cmdsHead
	c.cmdsHead, c.cmdsTail, c.seq = nil, nil, 0
	c.cmdsLock.Unlock()
	for ; head != nil; head = head.next {
		head.resultCh <- Result{Err: err}
	}
}

// HandleMessage implements MessageHandler.
func (c *Client) HandleMessage(ctx context.Context, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Ack:
		c.reply(Sequence(m.Sequence), nil)
	case protocol.Nack:
		c.reply(Sequence(m.Sequence), &CommandError{Code: m.Reason})
	case protocol.Heartbeat:
	default:
		select {
		case c.eventCh <- msg:
		default:
			glog.Warningf("event queue full, drop %s", msg)
		}
	}
}

func (c *Client) reply(seq Sequence, err error) {
	if !seq.IsValid() {
		glog.V(2).Infof("reply with invalid sequence")
		return
	}
	c.cmdsLock.Lock()
	head := c.cmdsHead
	curr := c.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.seq == seq {
			if c.cmdsHead = curr.next; c.cmdsHead == nil {
				c.cmdsTail = nil
			}
			break
		}
	}
	c.cmdsLock.Unlock()
	if curr == nil {
		glog.V(2).Infof("reply to unknown command %d", seq)
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	curr.next = nil
	curr.resultCh <- Result{Err: err}
}

func (c *Client) stateChanged(ctx context.Context, state State) {
	if state == StateSilent {
		c.ResetSequence(ErrPeerSilent)
	}
	select {
	case c.stateCh <- state:
	default:
		// only the latest state matters.
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- state:
		default:
		}
	}
}

func (c *Client) expire(now time.Time) {
	c.cmdsLock.Lock()
	var expired *Command
	for c.cmdsHead != nil && now.Sub(c.cmdsHead.sentAt) >= c.Expiration {
		cmd := c.cmdsHead
		c.cmdsHead = cmd.next
		cmd.next, expired = expired, cmd
	}
	if c.cmdsHead == nil {
		c.cmdsTail = nil
	}
	c.cmdsLock.Unlock()
	for ; expired != nil; expired = expired.next {
		expired.resultCh <- Result{Err: context.DeadlineExceeded}
	}
}

// Run wraps Link.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	if c.Expiration <= 0 {
		return c.link.Run(ctx)
	}
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(checkPeriod(c.Expiration))
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case now := <-ticker.C:
				c.expire(now)
			}
		}
	}()
	return c.link.Run(ctx)
}
