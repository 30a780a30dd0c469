package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/serial"
)

// Serial defaults, matching the panel firmware.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 500 * time.Millisecond
)

// SerialConfigFromURL parses
//
//	serial:///dev/ttyACM0?baud=115200&databits=8&stopbits=1&parity=N&timeout=500ms
func SerialConfigFromURL(u *url.URL) (*serial.Config, error) {
	cfg := &serial.Config{
		Address:  u.Host + u.Path,
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  DefaultReadTimeout,
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("missing serial device")
	}
	q := u.Query()
	ints := []struct {
		key string
		val *int
	}{
		{"baud", &cfg.BaudRate},
		{"databits", &cfg.DataBits},
		{"stopbits", &cfg.StopBits},
	}
	for _, item := range ints {
		if s := q.Get(item.key); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid %s %q", item.key, s)
			}
			*item.val = n
		}
	}
	if s := q.Get("parity"); s != "" {
		switch p := strings.ToUpper(s); p {
		case "N", "E", "O":
			cfg.Parity = p
		default:
			return nil, fmt.Errorf("invalid parity %q", s)
		}
	}
	if s := q.Get("timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid timeout %q", s)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

func openSerial(u *url.URL) (*Conn, error) {
	cfg, err := SerialConfigFromURL(u)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{
		ReadWriteCloser: &serialPort{Port: port},
		ReadTimeout:     true,
		URL:             "serial://" + cfg.Address,
	}, nil
}

type serialPort struct {
	serial.Port
}

// Read translates serial.ErrTimeout to an error satisfying os.IsTimeout.
func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if err == serial.ErrTimeout {
		err = errReadTimeout
	}
	return n, err
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "serial: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errReadTimeout error = timeoutError{}
