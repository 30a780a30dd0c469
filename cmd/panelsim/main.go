package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/sim"
	"github.com/robotalks/panel.go/pkg/transport"
)

var (
	tcpAddr      = ":7010"
	wsAddr       string
	dialInterval time.Duration
)

func init() {
	flag.StringVar(&tcpAddr, "listen", tcpAddr, "TCP address serving simulated panels, empty to disable.")
	flag.StringVar(&wsAddr, "ws", wsAddr, "Address serving simulated panels over websocket.")
	flag.DurationVar(&dialInterval, "dial", dialInterval, "Interval of simulated dial turns, 0 disables.")
}

func serve(ctx context.Context, name string, conn *transport.Conn) {
	glog.Infof("%s: connected", name)
	p := sim.NewPanel(conn)
	p.OnChange = func(s sim.State) {
		glog.Infof("%s: brightness=%d volume=%d led=%s", name, s.Brightness, s.Volume, s.LED)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if dialInterval > 0 {
		go func() {
			ticker := time.NewTicker(dialInterval)
			defer ticker.Stop()
			delta := int8(1)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := p.Turn(delta); err != nil {
						return
					}
					delta = -delta
				}
			}
		}()
	}
	err := fx.RunWithContextCloser(ctx, conn, func() error {
		return p.Run(ctx)
	})
	glog.Infof("%s: disconnected: %v (%s)", name, err, p.Link.Stats())
}

func serveTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return err
	}
	glog.Infof("serving tcp://%s", ln.Addr())
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			c, err := ln.Accept()
			if err != nil {
				return err
			}
			go serve(ctx, c.RemoteAddr().String(), &transport.Conn{ReadWriteCloser: c})
		}
	})
}

func serveWebsocket(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", transport.Handler(func(conn *transport.Conn) {
		serve(ctx, conn.URL, conn)
	}))
	srv := &http.Server{Addr: wsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	glog.Infof("serving ws://%s", wsAddr)
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	runner := fx.NewRunner().HandleSignals()
	runner.StopAll = true
	if tcpAddr != "" {
		runner.Go(fx.NamedRun("tcp", fx.RunFunc(serveTCP)))
	}
	if wsAddr != "" {
		runner.Go(fx.NamedRun("ws", fx.RunFunc(serveWebsocket)))
	}
	if len(runner.Runners) == 0 {
		glog.Exit("nothing to serve")
	}
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
