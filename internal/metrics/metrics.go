// Package metrics exposes Prometheus collectors for runs, remote calls and orchestrations.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "speedrun"

// Metrics holds all collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RunsCreated    prometheus.Counter
	RunsFinished   *prometheus.CounterVec
	StateChanges   *prometheus.CounterVec
	CheatReports   prometheus.Counter
	RemoteCalls    *prometheus.CounterVec
	Orchestrations *prometheus.CounterVec
	InFlight       prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
}

// New creates collectors on a fresh registry, so tests may create as many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_created_total",
			Help:      "Runs registered",
		}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Finish calls by leaderboard",
		}, []string{"board"}),
		StateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_changes_total",
			Help:      "Accepted lifecycle actions",
		}, []string{"action"}),
		CheatReports: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cheat_reports_total",
			Help:      "Cheat suspicion reports",
		}),
		RemoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hosting_calls_total",
			Help:      "Hosting API calls by operation and result",
		}, []string{"op", "result"}),
		Orchestrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrations_total",
			Help:      "Finished orchestrations by kind and result",
		}, []string{"kind", "result"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orchestrations_in_flight",
			Help:      "Orchestrations currently running",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRemoteCall counts one hosting API call.
func (m *Metrics) ObserveRemoteCall(op string, ok bool) {
	m.RemoteCalls.WithLabelValues(op, result(ok)).Inc()
}

// ObserveOrchestration counts one completed orchestration.
func (m *Metrics) ObserveOrchestration(kind string, ok bool) {
	m.Orchestrations.WithLabelValues(kind, result(ok)).Inc()
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(method string, code int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Board returns the leaderboard label for a run.
func Board(setSeed bool) string {
	if setSeed {
		return "set_seed"
	}

	return "random"
}

func result(ok bool) string {
	if ok {
		return "success"
	}

	return "error"
}
