package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spawnd"

func counter(sub, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help}, labels)
}

func total(sub, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help})
}

func gauge(sub, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help})
}

// Collectors live at package level and stay inert until Register succeeds.
var (
	regOK atomic.Bool

	processStarts   = counter("process", "starts_total", "Successful process starts.", "name")
	processStops    = counter("process", "stops_total", "Observed process exits.", "name")
	outputLines     = counter("process", "output_lines_total", "Captured stdout lines.", "name")
	configChanges   = counter("config", "changes_total", "Process fields changed by a config reload.", "name", "field")
	processExitCode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "process", Name: "exit_code",
		Help: "Exit code of the last observed exit.",
	}, []string{"name"})

	reloadErrors   = total("config", "reload_errors_total", "Aborted config reload passes.")
	historyDropped = total("history", "dropped_total", "History events dropped on a full queue.")

	running = gauge("", "processes_running", "Supervised processes currently running.")
	enabled = gauge("", "processes_enabled", "Supervised processes currently enabled.")
)

// Register adds the collectors to r. Collectors r already holds are skipped,
// and once a call succeeds later calls return nil immediately.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range []prometheus.Collector{
		processStarts, processStops, processExitCode, outputLines,
		configChanges, reloadErrors, historyDropped, running, enabled,
	} {
		err := r.Register(c)
		if errors.As(err, new(prometheus.AlreadyRegisteredError)) {
			continue
		}
		if err != nil {
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// The helpers below no-op until Register has succeeded.

func IncStart(name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(name).Inc()
	}
}

func ObserveStop(name string, exitCode int) {
	if regOK.Load() {
		processStops.WithLabelValues(name).Inc()
		processExitCode.WithLabelValues(name).Set(float64(exitCode))
	}
}

func AddOutputLines(name string, n int) {
	if regOK.Load() {
		outputLines.WithLabelValues(name).Add(float64(n))
	}
}

func IncConfigChange(name, field string) {
	if regOK.Load() {
		configChanges.WithLabelValues(name, field).Inc()
	}
}

func IncReloadError() {
	if regOK.Load() {
		reloadErrors.Inc()
	}
}

func IncHistoryDropped() {
	if regOK.Load() {
		historyDropped.Inc()
	}
}

func SetCounts(runningN, enabledN int) {
	if regOK.Load() {
		running.Set(float64(runningN))
		enabled.Set(float64(enabledN))
	}
}
