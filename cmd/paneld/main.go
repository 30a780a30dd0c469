package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/robotalks/panel.go/pkg/bridge/mqtt"
	"github.com/robotalks/panel.go/pkg/env"
	fx "github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/link"
	"github.com/robotalks/panel.go/pkg/metrics"
	"github.com/robotalks/panel.go/pkg/protocol"
	"github.com/robotalks/panel.go/pkg/transport"
)

var forwardHeartbeats bool

func init() {
	env.SetupFlags()
	flag.BoolVar(&forwardHeartbeats, "forward-heartbeats", forwardHeartbeats, "Publish Heartbeat messages to MQTT.")
}

func watchdog(ctx context.Context, state link.State) {
	switch state {
	case link.StateSilent:
		glog.Warning("panel is silent, commands are not delivered")
	case link.StateAlive:
		glog.Info("panel is alive")
	}
}

func logReports(ctx context.Context, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.DeviceError:
		glog.Warningf("panel reported error %d", m.Code)
	case protocol.EmergencyOff:
		glog.Warning("emergency off")
	default:
		glog.V(2).Infof("RCV %s", msg)
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := env.NewConfig()
	if err != nil {
		glog.Exit(err)
	}

	tc, err := transport.Open(conf.DeviceURL)
	if err != nil {
		glog.Exitf("open %s: %v", conf.DeviceURL, err)
	}
	l := link.NewLink(tc)
	l.ReadTimeout = tc.ReadTimeout
	l.HeartbeatInterval = conf.HeartbeatInterval
	l.HeartbeatTimeout = conf.HeartbeatTimeout

	handlers := link.MessageHandlers{link.HandleMessageFunc(logReports)}
	notifiers := link.StateNotifiers{link.StateChangedFunc(watchdog)}
	runner := fx.NewRunner().HandleSignals()
	runner.StopAll = true

	if conf.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector(prometheus.Labels{"device": conf.DeviceID})
		reg.MustRegister(collector, collectors.NewGoCollector())
		l.Observer = collector
		runner.Go(fx.NamedRun("metrics", &metrics.Server{Addr: conf.MetricsAddr, Gatherer: reg}))
	}

	if conf.MQTTBrokerURL != "" {
		host, _ := os.Hostname()
		b, err := mqtt.NewBridge(conf.MQTTBrokerURL, mqtt.Meta{
			DeviceID:  conf.DeviceID,
			Device:    tc.URL,
			Host:      host,
			StartedAt: time.Now(),
		}, l)
		if err != nil {
			glog.Exit(err)
		}
		b.ForwardHeartbeats = forwardHeartbeats
		handlers = append(handlers, b)
		notifiers = append(notifiers, b)
		runner.Go(fx.NamedRun("mqtt", b))
	}

	l.Handler, l.Notifier = handlers, notifiers
	runner.Go(fx.NamedRun("link", fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, tc, func() error {
			return l.Run(ctx)
		})
	})))

	glog.Infof("panel %s on %s", conf.DeviceID, tc.URL)
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
	glog.Infof("stopped: %s", l.Stats())
}
