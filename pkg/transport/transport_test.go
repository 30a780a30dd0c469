package transport

import (
	"io"
	"net"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/protocol"
)

func TestSerialConfigFromURL(t *testing.T) {
	testCases := []struct {
		url      string
		address  string
		baud     int
		parity   string
		timeout  time.Duration
		hasError bool
	}{
		{url: "serial:///dev/ttyACM0", address: "/dev/ttyACM0", baud: 115200, parity: "N", timeout: 500 * time.Millisecond},
		{url: "serial://COM3?baud=9600&parity=e&timeout=1s", address: "COM3", baud: 9600, parity: "E", timeout: time.Second},
		{url: "serial:///dev/ttyUSB0?baud=fast", hasError: true},
		{url: "serial:///dev/ttyUSB0?parity=X", hasError: true},
		{url: "serial:///dev/ttyUSB0?timeout=-1s", hasError: true},
		{url: "serial://", hasError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			u, err := url.Parse(tc.url)
			require.NoError(t, err)
			cfg, err := SerialConfigFromURL(u)
			if tc.hasError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.address, cfg.Address)
			require.Equal(t, tc.baud, cfg.BaudRate)
			require.Equal(t, 8, cfg.DataBits)
			require.Equal(t, 1, cfg.StopBits)
			require.Equal(t, tc.parity, cfg.Parity)
			require.Equal(t, tc.timeout, cfg.Timeout)
		})
	}
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("bluetooth://panel")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "serial"), err.Error())
	require.Equal(t, []string{"serial", "tcp", "ws", "wss"}, Schemes())
}

func TestReadTimeoutError(t *testing.T) {
	err, ok := errReadTimeout.(interface{ Timeout() bool })
	require.True(t, ok)
	require.True(t, err.Timeout())
}

func echo(t *testing.T, conn *Conn, frame []byte) {
	_, err := conn.Write(frame)
	require.NoError(t, err)
	var d protocol.Decoder
	buf := make([]byte, 16)
	for {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		if results := d.Feed(buf[:n]); len(results) > 0 {
			require.Len(t, results, 1)
			require.Equal(t, protocol.SetVolume{Level: 42}, results[0].Msg)
			return
		}
	}
}

func TestWebsocket(t *testing.T) {
	srv := httptest.NewServer(Handler(func(conn *Conn) {
		io.Copy(conn, conn)
	}))
	defer srv.Close()

	conn, err := Open("ws://" + srv.Listener.Addr().String() + "/panel")
	require.NoError(t, err)
	defer conn.Close()
	require.False(t, conn.ReadTimeout)
	echo(t, conn, protocol.Encode(protocol.SetVolume{Level: 42}))
}

func TestTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	conn, err := Open("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	echo(t, conn, protocol.Encode(protocol.SetVolume{Level: 42}))
}
