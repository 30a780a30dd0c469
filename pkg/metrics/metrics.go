// Package metrics exports link counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/panel.go/pkg/link"
	"github.com/robotalks/panel.go/pkg/protocol"
)

// Namespace prefixes all metric names.
const Namespace = "panel"

// Collector implements link.Observer and prometheus.Collector.
type Collector struct {
	frames       *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	alive        prometheus.Gauge
}

// NewCollector creates a Collector, labels are attached to all metrics.
func NewCollector(labels prometheus.Labels) *Collector {
	c := &Collector{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "frames_total",
			Help:        "Frames sent or received, by message type.",
			ConstLabels: labels,
		}, []string{"direction", "type"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "decode_errors_total",
			Help:        "Dropped inbound frames, by error kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "bytes_total",
			Help:        "Raw bytes on the transport.",
			ConstLabels: labels,
		}, []string{"direction"}),
		alive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "link_alive",
			Help:        "1 while heartbeats arrive from the panel.",
			ConstLabels: labels,
		}),
	}
	// expose all kinds with zero values.
	for _, kind := range protocol.Kinds {
		c.decodeErrors.WithLabelValues(kindLabel(kind))
	}
	return c
}

func kindLabel(kind protocol.ErrorKind) string {
	switch kind {
	case protocol.UnknownMessageType:
		return "unknown_type"
	case protocol.ChecksumMismatch:
		return "checksum"
	case protocol.FramingError:
		return "framing"
	case protocol.UnexpectedStart:
		return "unexpected_start"
	case protocol.BufferOverflow:
		return "overflow"
	}
	return "other"
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.frames.Describe(ch)
	c.decodeErrors.Describe(ch)
	c.bytes.Describe(ch)
	c.alive.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.frames.Collect(ch)
	c.decodeErrors.Collect(ch)
	c.bytes.Collect(ch)
	c.alive.Collect(ch)
}

// ObserveBytes implements link.Observer.
func (c *Collector) ObserveBytes(dir link.Direction, n int) {
	c.bytes.WithLabelValues(dir.String()).Add(float64(n))
}

// ObserveMessage implements link.Observer.
func (c *Collector) ObserveMessage(dir link.Direction, msg protocol.Message) {
	c.frames.WithLabelValues(dir.String(), protocol.TypeName(msg.Type())).Inc()
}

// ObserveDecodeError implements link.Observer.
func (c *Collector) ObserveDecodeError(kind protocol.ErrorKind) {
	c.decodeErrors.WithLabelValues(kindLabel(kind)).Inc()
}

// ObserveState implements link.Observer.
func (c *Collector) ObserveState(state link.State) {
	if state == link.StateAlive {
		c.alive.Set(1)
	} else {
		c.alive.Set(0)
	}
}

// Handler serves metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Server serves /metrics, implements Runnable.
type Server struct {
	Addr     string
	Gatherer prometheus.Gatherer
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(s.Gatherer))
	srv := &http.Server{Addr: s.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		glog.Infof("serving metrics on %s", s.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
