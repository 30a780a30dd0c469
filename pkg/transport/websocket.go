package transport

import (
	"net/url"

	"golang.org/x/net/websocket"
)

// ws://host/path carries the raw stream in binary frames,
// e.g. from a serial-over-websocket bridge.
func openWebsocket(u *url.URL) (*Conn, error) {
	origin := url.URL{Scheme: "http", Host: u.Host}
	if u.Scheme == "wss" {
		origin.Scheme = "https"
	}
	ws, err := websocket.Dial(u.String(), "", origin.String())
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return &Conn{ReadWriteCloser: ws, URL: u.String()}, nil
}

// Handler serves a byte stream to websocket clients with binary frames.
// fn owns the Conn until it returns.
func Handler(fn func(*Conn)) websocket.Handler {
	return func(ws *websocket.Conn) {
		ws.PayloadType = websocket.BinaryFrame
		fn(&Conn{ReadWriteCloser: ws, URL: ws.Request().URL.String()})
	}
}
