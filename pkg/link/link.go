package link

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/protocol"
)

// DefaultReadBufferSize is the chunk size used to read the transport.
const DefaultReadBufferSize = 64

// MinTickPeriod is the shortest period of the watchdog and expiration tickers.
const MinTickPeriod = time.Millisecond

// checkPeriod is how often a timeout of d is checked.
func checkPeriod(d time.Duration) time.Duration {
	if d /= 4; d < MinTickPeriod {
		return MinTickPeriod
	}
	return d
}

// MessageHandler is called when a message is received.
type MessageHandler interface {
	HandleMessage(context.Context, protocol.Message)
}

// HandleMessageFunc is func type of MessageHandler.
type HandleMessageFunc func(context.Context, protocol.Message)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg protocol.Message) {
	f(ctx, msg)
}

// StateNotifier is called when the liveness of the peer changed.
type StateNotifier interface {
	StateChanged(context.Context, State)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, State)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state State) {
	f(ctx, state)
}

// Link runs the frame codec over a byte stream.
// A single goroutine (Run) owns the decoder, Send may be called concurrently.
type Link struct {
	ReadWriter io.ReadWriter
	Handler    MessageHandler
	Notifier   StateNotifier
	Observer   Observer
	// DecodeFailed is called with each dropped frame error.
	// err is owned by the decoder and only valid during the call.
	DecodeFailed func(ctx context.Context, err error)
	// ReadTimeout is set to true if ReadWriter already supports timeout with Read.
	ReadTimeout    bool
	ReadBufferSize int
	// HeartbeatInterval is the period of sending Heartbeat, 0 disables it.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout marks the peer silent after no Heartbeat is received
	// for this long, 0 disables liveness tracking.
	HeartbeatTimeout time.Duration

	writeLock sync.Mutex
	writeBuf  [protocol.MaxFrameLen]byte

	lock          sync.RWMutex
	state         State
	stats         Stats
	lastHeartbeat time.Time

	decoder protocol.Decoder
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter:        rw,
		ReadBufferSize:    DefaultReadBufferSize,
		HeartbeatInterval: time.Second,
		HeartbeatTimeout:  3 * time.Second,
	}
}

// State gets the liveness of the peer.
func (l *Link) State() State {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state
}

// Stats gets a snapshot of the counters.
func (l *Link) Stats() Stats {
	l.lock.RLock()
	defer l.lock.RUnlock()
	s := l.stats
	s.State, s.LastHeartbeat = l.state, l.lastHeartbeat
	return s
}

// Send encodes and writes a message.
func (l *Link) Send(msg protocol.Message) error {
	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	frame := protocol.AppendFrame(l.writeBuf[:0], msg)
	n, err := l.ReadWriter.Write(frame)
	l.lock.Lock()
	l.stats.BytesOut += uint64(n)
	if err == nil {
		l.stats.FramesOut++
	}
	l.lock.Unlock()
	if o := l.Observer; o != nil {
		o.ObserveBytes(Outbound, n)
		if err == nil {
			o.ObserveMessage(Outbound, msg)
		}
	}
	if err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}
	glog.V(3).Infof("sent %s (% x)", msg, frame)
	return nil
}

// Run processes the Link in the background.
func (l *Link) Run(ctx context.Context) error {
	l.decoder.Reset()
	l.lock.Lock()
	l.lastHeartbeat = time.Now()
	l.lock.Unlock()

	var heartbeat, watchdog <-chan time.Time
	if l.HeartbeatInterval > 0 {
		ticker := time.NewTicker(l.HeartbeatInterval)
		defer ticker.Stop()
		heartbeat = ticker.C
	}
	if l.HeartbeatTimeout > 0 {
		ticker := time.NewTicker(checkPeriod(l.HeartbeatTimeout))
		defer ticker.Stop()
		watchdog = ticker.C
	}

	size := l.ReadBufferSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}

	if l.ReadTimeout {
		buf := make([]byte, size)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-heartbeat:
				if err := l.Send(protocol.Heartbeat{}); err != nil {
					return err
				}
			case now := <-watchdog:
				l.checkAlive(ctx, now)
			default:
				n, err := l.ReadWriter.Read(buf)
				if n > 0 {
					l.received(ctx, buf[:n])
				}
				if err != nil && !os.IsTimeout(err) {
					return err
				}
			}
		}
	}

	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, size, chunkCh, errCh)
	for {
		select {
		case chunk := <-chunkCh:
			l.received(ctx, chunk)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat:
			if err := l.Send(protocol.Heartbeat{}); err != nil {
				return err
			}
		case now := <-watchdog:
			l.checkAlive(ctx, now)
		}
	}
}

func (l *Link) readLoop(ctx context.Context, size int, chunkCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, size)
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case chunkCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (l *Link) received(ctx context.Context, p []byte) {
	glog.V(4).Infof("recv % x", p)
	l.lock.Lock()
	l.stats.BytesIn += uint64(len(p))
	l.lock.Unlock()
	if o := l.Observer; o != nil {
		o.ObserveBytes(Inbound, len(p))
	}
	l.decoder.FeedFunc(p, func(r protocol.Result) {
		if r.Err != nil {
			l.decodeFailed(ctx, r.Err)
			return
		}
		l.dispatch(ctx, r.Msg)
	})
}

func (l *Link) decodeFailed(ctx context.Context, err error) {
	kind, _ := protocol.KindOf(err)
	glog.V(2).Infof("frame dropped: %v", err)
	l.lock.Lock()
	if int(kind) < len(l.stats.Errors) {
		l.stats.Errors[kind]++
	}
	l.lock.Unlock()
	if o := l.Observer; o != nil {
		o.ObserveDecodeError(kind)
	}
	if fn := l.DecodeFailed; fn != nil {
		fn(ctx, err)
	}
}

func (l *Link) dispatch(ctx context.Context, msg protocol.Message) {
	glog.V(3).Infof("recv %s", msg)
	l.lock.Lock()
	l.stats.FramesIn++
	l.lock.Unlock()
	if o := l.Observer; o != nil {
		o.ObserveMessage(Inbound, msg)
	}
	if _, ok := msg.(protocol.Heartbeat); ok {
		now := time.Now()
		l.lock.Lock()
		l.lastHeartbeat = now
		l.lock.Unlock()
		l.setState(ctx, StateAlive)
	}
	if h := l.Handler; h != nil {
		h.HandleMessage(ctx, msg)
	}
}

func (l *Link) checkAlive(ctx context.Context, now time.Time) {
	l.lock.RLock()
	silent := now.Sub(l.lastHeartbeat) > l.HeartbeatTimeout
	l.lock.RUnlock()
	if silent {
		l.setState(ctx, StateSilent)
	}
}

func (l *Link) setState(ctx context.Context, state State) {
	l.lock.Lock()
	changed := l.state != state
	l.state = state
	l.lock.Unlock()
	if !changed {
		return
	}
	glog.Infof("peer %s", state)
	if o := l.Observer; o != nil {
		o.ObserveState(state)
	}
	if n := l.Notifier; n != nil {
		n.StateChanged(ctx, state)
	}
}
