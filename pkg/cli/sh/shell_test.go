package sh

import (
	"context"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/env"
	"github.com/robotalks/panel.go/pkg/transport"
)

type trackedConn struct {
	net.Conn
	closed int32
}

func (c *trackedConn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return c.Conn.Close()
}

func (c *trackedConn) isClosed() bool {
	return atomic.LoadInt32(&c.closed) != 0
}

func testConfig() *env.Config {
	conf := *env.Default()
	conf.HeartbeatInterval = 0
	conf.HeartbeatTimeout = 0
	conf.CommandTimeout = time.Second
	return &conf
}

func TestConnectClosesPrevious(t *testing.T) {
	var lock sync.Mutex
	var opened []*trackedConn
	var overlapped bool
	transport.Register("shelltest", func(u *url.URL) (*transport.Conn, error) {
		host, dev := net.Pipe()
		t.Cleanup(func() { dev.Close() })
		lock.Lock()
		defer lock.Unlock()
		for _, c := range opened {
			if !c.isClosed() {
				overlapped = true
			}
		}
		c := &trackedConn{Conn: host}
		opened = append(opened, c)
		return &transport.Conn{ReadWriteCloser: c, URL: u.String()}, nil
	})

	s := &Shell{Config: testConfig()}
	require.NoError(t, s.Connect("shelltest://panel"))
	first := s.Conn
	require.NoError(t, s.Connect("shelltest://panel"))
	require.NotSame(t, first, s.Conn)
	s.Disconnect()
	require.Nil(t, s.Conn)

	lock.Lock()
	defer lock.Unlock()
	require.Len(t, opened, 2)
	require.False(t, overlapped)
	require.True(t, opened[0].isClosed())
	require.True(t, opened[1].isClosed())
}

func TestCommandContext(t *testing.T) {
	conf := testConfig()
	s := &Shell{Config: conf, Conn: &Conn{Ctx: context.Background()}}

	ctx, cancel := s.commandContext()
	deadline, ok := ctx.Deadline()
	cancel()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)

	conf.CommandTimeout = 0
	ctx, cancel = s.commandContext()
	defer cancel()
	_, ok = ctx.Deadline()
	require.False(t, ok)
	require.NoError(t, ctx.Err())
}
