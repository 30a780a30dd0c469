// Package transport opens byte streams to a panel by URL.
package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Conn is an opened byte stream.
type Conn struct {
	io.ReadWriteCloser
	// ReadTimeout is true if Read returns periodically with a timeout error.
	ReadTimeout bool
	// URL is the address the Conn is opened with.
	URL string
}

// OpenFunc opens a Conn for a parsed URL.
type OpenFunc func(u *url.URL) (*Conn, error)

var (
	schemes     = make(map[string]OpenFunc)
	schemesLock sync.RWMutex
)

// Register registers an OpenFunc for a URL scheme.
func Register(scheme string, fn OpenFunc) {
	schemesLock.Lock()
	schemes[scheme] = fn
	schemesLock.Unlock()
}

// Schemes lists the registered URL schemes.
func Schemes() []string {
	schemesLock.RLock()
	defer schemesLock.RUnlock()
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("serial", openSerial)
	Register("ws", openWebsocket)
	Register("wss", openWebsocket)
	Register("tcp", openTCP)
}

// Open opens a Conn. A URL without scheme is a serial device path.
func Open(rawURL string) (*Conn, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "serial://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid device URL %q: %w", rawURL, err)
	}
	schemesLock.RLock()
	fn := schemes[u.Scheme]
	schemesLock.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("unsupported device scheme %q, expect one of %s",
			u.Scheme, strings.Join(Schemes(), ", "))
	}
	conn, err := fn(u)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rawURL, err)
	}
	glog.V(1).Infof("opened %s", conn.URL)
	return conn, nil
}

// tcp://host:port, e.g. a ser2net raw port.
func openTCP(u *url.URL) (*Conn, error) {
	conn, err := net.Dial("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	return &Conn{ReadWriteCloser: conn, URL: u.String()}, nil
}
