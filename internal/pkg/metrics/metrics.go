// Package metrics exports color filter reload metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/endorses/colorcat/internal/pkg/logger"
)

// Exporter serves reload and rule count metrics over HTTP
type Exporter struct {
	registry   *prometheus.Registry
	reloads    *prometheus.CounterVec
	rules      *prometheus.GaugeVec
	lastReload prometheus.Gauge

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewExporter creates an exporter with its own registry
func NewExporter() *Exporter {
	x := &Exporter{
		registry: prometheus.NewRegistry(),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colorcat_rule_reloads_total",
				Help: "Color rule reloads by result",
			},
			[]string{"result"},
		),
		rules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "colorcat_rules_loaded",
				Help: "Color rules currently in force",
			},
			[]string{"list"},
		),
		lastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colorcat_last_reload_success_timestamp_seconds",
			Help: "Unix time of the last successful reload",
		}),
	}
	x.registry.MustRegister(x.reloads, x.rules, x.lastReload)
	x.registry.MustRegister(prometheus.NewGoCollector())
	return x
}

// ObserveReload counts one reload attempt
func (x *Exporter) ObserveReload(err error) {
	if err != nil {
		x.reloads.WithLabelValues("error").Inc()
		return
	}
	x.reloads.WithLabelValues("ok").Inc()
	x.lastReload.SetToCurrentTime()
}

// SetRuleCounts records the size of the persistent list and the number of
// temporary slots in use
func (x *Exporter) SetRuleCounts(persistent, tmp int) {
	x.rules.WithLabelValues("persistent").Set(float64(persistent))
	x.rules.WithLabelValues("tmp").Set(float64(tmp))
}

// Handler serves /metrics and /health
func (x *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(x.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start listens on addr and serves in the background. Listen errors are
// returned immediately.
func (x *Exporter) Start(addr string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}
	x.listener = ln
	x.server = &http.Server{
		Handler:      x.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	x.done = make(chan struct{})

	server, done := x.server, x.done
	go func() {
		defer close(done)
		logger.Info("Starting metrics server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or "" when not running
func (x *Exporter) Addr() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.listener == nil {
		return ""
	}
	return x.listener.Addr().String()
}

// Stop shuts the server down and waits for it to exit
func (x *Exporter) Stop(ctx context.Context) error {
	x.mu.Lock()
	server, done := x.server, x.done
	x.server, x.listener, x.done = nil, nil, nil
	x.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	<-done
	return err
}
