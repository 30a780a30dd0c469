package link

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/protocol"
)

type deadlineConn struct {
	net.Conn
}

func (c deadlineConn) Read(p []byte) (int, error) {
	c.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	return c.Conn.Read(p)
}

type recordingObserver struct {
	lock     sync.Mutex
	bytes    [2]int
	messages [2][]protocol.Message
	errors   []protocol.ErrorKind
	states   []State
}

func (o *recordingObserver) ObserveBytes(dir Direction, n int) {
	o.lock.Lock()
	o.bytes[dir] += n
	o.lock.Unlock()
}

func (o *recordingObserver) ObserveMessage(dir Direction, msg protocol.Message) {
	o.lock.Lock()
	o.messages[dir] = append(o.messages[dir], msg)
	o.lock.Unlock()
}

func (o *recordingObserver) ObserveDecodeError(kind protocol.ErrorKind) {
	o.lock.Lock()
	o.errors = append(o.errors, kind)
	o.lock.Unlock()
}

func (o *recordingObserver) ObserveState(state State) {
	o.lock.Lock()
	o.states = append(o.states, state)
	o.lock.Unlock()
}

type linkTestEnv struct {
	t        *testing.T
	dev      net.Conn
	link     *Link
	observer *recordingObserver
	msgCh    chan protocol.Message
	stateCh  chan State
	errCh    chan error
	cancel   context.CancelFunc
}

func newLinkTestEnv(t *testing.T, readTimeout bool) *linkTestEnv {
	host, dev := net.Pipe()
	env := &linkTestEnv{
		t:        t,
		dev:      dev,
		observer: &recordingObserver{},
		msgCh:    make(chan protocol.Message, 16),
		stateCh:  make(chan State, 4),
		errCh:    make(chan error, 1),
	}
	if readTimeout {
		env.link = NewLink(deadlineConn{Conn: host})
		env.link.ReadTimeout = true
	} else {
		env.link = NewLink(host)
	}
	env.link.HeartbeatInterval = 0
	env.link.HeartbeatTimeout = 0
	env.link.Observer = env.observer
	env.link.Handler = HandleMessageFunc(func(ctx context.Context, msg protocol.Message) {
		env.msgCh <- msg
	})
	env.link.Notifier = StateChangedFunc(func(ctx context.Context, state State) {
		env.stateCh <- state
	})
	t.Cleanup(func() {
		host.Close()
		dev.Close()
	})
	return env
}

func (e *linkTestEnv) run() *linkTestEnv {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.t.Cleanup(cancel)
	go func() {
		e.errCh <- e.link.Run(ctx)
	}()
	return e
}

func (e *linkTestEnv) inject(p []byte) *linkTestEnv {
	_, err := e.dev.Write(p)
	require.NoError(e.t, err)
	return e
}

func (e *linkTestEnv) expectMessages(msgs ...protocol.Message) *linkTestEnv {
	for n, expected := range msgs {
		select {
		case msg := <-e.msgCh:
			require.Equalf(e.t, expected, msg, "message[%d] mismatch", n)
		case <-time.After(time.Second):
			e.t.Fatalf("message[%d] timeout", n)
		}
	}
	return e
}

func (e *linkTestEnv) expectState(state State) *linkTestEnv {
	select {
	case s := <-e.stateCh:
		require.Equal(e.t, state, s)
	case <-time.After(time.Second):
		e.t.Fatalf("expect state %s timeout", state)
	}
	return e
}

func (e *linkTestEnv) expectWrite(expected []byte) *linkTestEnv {
	buf := make([]byte, len(expected))
	e.dev.SetReadDeadline(time.Now().Add(time.Second))
	_, err := io.ReadFull(e.dev, buf)
	require.NoError(e.t, err)
	require.Equal(e.t, expected, buf)
	return e
}

func (e *linkTestEnv) send(msg protocol.Message) *linkTestEnv {
	go func() {
		if err := e.link.Send(msg); err != nil {
			e.t.Errorf("send %s: %v", msg, err)
		}
	}()
	return e
}

func TestLinkReceive(t *testing.T) {
	for _, readTimeout := range []bool{false, true} {
		name := "blocking"
		if readTimeout {
			name = "read timeout"
		}
		t.Run(name, func(t *testing.T) {
			stream := []byte{0x00, 0x7f}
			stream = append(stream, protocol.Encode(protocol.DialDelta{Delta: 3})...)
			stream = append(stream, 0x7e, 0x10, 200, 0x22, 0x7f)
			stream = append(stream, protocol.Encode(protocol.EmergencyOff{})...)

			env := newLinkTestEnv(t, readTimeout).run()
			env.inject(stream[:4]).inject(stream[4:]).
				expectMessages(protocol.DialDelta{Delta: 3}, protocol.EmergencyOff{})

			stats := env.link.Stats()
			require.EqualValues(t, len(stream), stats.BytesIn)
			require.EqualValues(t, 2, stats.FramesIn)
			require.EqualValues(t, 1, stats.Errors[protocol.ChecksumMismatch])
			require.EqualValues(t, 1, stats.ErrorCount())
			require.Equal(t, StateUnknown, stats.State)

			env.observer.lock.Lock()
			defer env.observer.lock.Unlock()
			require.Equal(t, len(stream), env.observer.bytes[Inbound])
			require.Equal(t, []protocol.ErrorKind{protocol.ChecksumMismatch}, env.observer.errors)
			require.Len(t, env.observer.messages[Inbound], 2)
		})
	}
}

func TestLinkSend(t *testing.T) {
	env := newLinkTestEnv(t, false).run()
	env.send(protocol.SetBrightness{Level: 200}).
		expectWrite([]byte{0x7e, 0x10, 200, 0x21, 0x7f}).
		send(protocol.Ack{Sequence: 92}).
		expectWrite([]byte{0x7e, 0x31, 92, 0x7d, 0x5f, 0x7f})

	require.Eventually(t, func() bool {
		return env.link.Stats().FramesOut == 2
	}, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 11, env.link.Stats().BytesOut)
}

func TestLinkHeartbeat(t *testing.T) {
	env := newLinkTestEnv(t, false)
	env.link.HeartbeatInterval = 20 * time.Millisecond
	env.run().
		expectWrite([]byte{0x7e, 0x30, 0x90, 0x7f}).
		expectWrite([]byte{0x7e, 0x30, 0x90, 0x7f})
}

func TestLinkLiveness(t *testing.T) {
	for _, readTimeout := range []bool{false, true} {
		env := newLinkTestEnv(t, readTimeout)
		env.link.HeartbeatTimeout = 80 * time.Millisecond
		env.run().
			inject(protocol.Encode(protocol.Heartbeat{})).
			expectState(StateAlive).
			expectMessages(protocol.Heartbeat{}).
			expectState(StateSilent).
			inject(protocol.Encode(protocol.Heartbeat{})).
			expectState(StateAlive)
		require.Equal(t, StateAlive, env.link.State())
		require.False(t, env.link.Stats().LastHeartbeat.IsZero())
	}
}

func TestLinkStopsOnReadError(t *testing.T) {
	for _, readTimeout := range []bool{false, true} {
		env := newLinkTestEnv(t, readTimeout).run()
		env.dev.Close()
		select {
		case err := <-env.errCh:
			require.True(t, errors.Is(err, io.EOF), "unexpected %v", err)
		case <-time.After(time.Second):
			t.Fatal("link not stopped")
		}
	}
}

func TestLinkCancel(t *testing.T) {
	env := newLinkTestEnv(t, false).run()
	env.cancel()
	select {
	case err := <-env.errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("link not stopped")
	}
}

func TestStatsString(t *testing.T) {
	var s Stats
	s.BytesIn, s.FramesIn = 10, 2
	s.Errors[protocol.FramingError] = 3
	s.State = StateAlive
	require.Equal(t, "state=alive in=10B/2 out=0B/0 framing error=3", s.String())
}

func TestFanOut(t *testing.T) {
	var received []string
	record := func(name string) MessageHandler {
		return HandleMessageFunc(func(ctx context.Context, msg protocol.Message) {
			received = append(received, name+":"+msg.String())
		})
	}
	MessageHandlers{record("a"), record("b")}.HandleMessage(context.Background(), protocol.Heartbeat{})
	require.Equal(t, []string{"a:Heartbeat", "b:Heartbeat"}, received)

	var states []State
	notify := StateChangedFunc(func(ctx context.Context, state State) {
		states = append(states, state)
	})
	StateNotifiers{notify, notify}.StateChanged(context.Background(), StateSilent)
	require.Equal(t, []State{StateSilent, StateSilent}, states)
}

func TestCheckPeriod(t *testing.T) {
	require.Equal(t, MinTickPeriod, checkPeriod(time.Nanosecond))
	require.Equal(t, MinTickPeriod, checkPeriod(3*time.Nanosecond))
	require.Equal(t, time.Second, checkPeriod(4*time.Second))
}

func TestLinkTinyTimeouts(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()
	defer dev.Close()
	l := NewLink(host)
	l.HeartbeatInterval = 0
	l.HeartbeatTimeout = 3 * time.Nanosecond
	c := NewClient(l)
	c.Expiration = 3 * time.Nanosecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Run(ctx), context.DeadlineExceeded)
	require.Equal(t, StateSilent, l.State())
}
