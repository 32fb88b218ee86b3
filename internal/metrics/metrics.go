package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	livenessRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "selfheal",
			Subsystem: "liveness",
			Name:      "requests_total",
			Help:      "Number of liveness requests answered by this instance.",
		},
	)
	instanceReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "selfheal",
			Subsystem: "instance",
			Name:      "ready",
			Help:      "1 while the instance is ready to serve, 0 otherwise.",
		},
	)
	startupDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "selfheal",
			Subsystem: "instance",
			Name:      "startup_duration_seconds",
			Help:      "Time from process start until the listener was bound.",
		},
	)
	startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "selfheal",
			Subsystem: "instance",
			Name:      "start_time_seconds",
			Help:      "Unix time the instance was started.",
		},
	)
	instanceInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "selfheal",
			Subsystem: "instance",
			Name:      "info",
			Help:      "Identity of the running instance; always 1.",
		}, []string{"instance_id"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{livenessRequests, instanceReady, startupDuration, startTime, instanceInfo}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncLivenessRequest() {
	if regOK.Load() {
		livenessRequests.Inc()
	}
}

func SetInstance(id string, started time.Time) {
	if regOK.Load() {
		instanceInfo.Reset()
		instanceInfo.WithLabelValues(id).Set(1)
		startTime.Set(float64(started.UnixNano()) / 1e9)
	}
}

func SetReady(ready bool, startup time.Duration) {
	if !regOK.Load() {
		return
	}
	if ready {
		instanceReady.Set(1)
		startupDuration.Set(startup.Seconds())
		return
	}
	instanceReady.Set(0)
}
