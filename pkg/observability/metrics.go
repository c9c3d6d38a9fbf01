package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/pipette/pkg/broker"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors fed by a run.
type Metrics struct {
	Records        *prometheus.CounterVec
	Volume         *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	ActionErrors   *prometheus.CounterVec
	Runs           *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipette_records_total",
				Help: "Run log records published, by action kind",
			},
			[]string{"kind"},
		),
		Volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipette_volume_microliters_total",
				Help: "Liquid moved by aspirate and dispense records, in µL",
			},
			[]string{"kind"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipette_action_duration_seconds",
				Help:    "Duration of protocol actions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ActionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipette_action_errors_total",
				Help: "Failed protocol actions, by action kind and error kind",
			},
			[]string{"kind", "error"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipette_runs_total",
				Help: "Finished runs, by final status",
			},
			[]string{"status"},
		),
	}
	for _, c := range []prometheus.Collector{m.Records, m.Volume, m.ActionDuration, m.ActionErrors, m.Runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Subscriber counts every published record.
func (m *Metrics) Subscriber() broker.Subscriber {
	return func(rec domain.CommandRecord) {
		kind := string(rec.Kind)
		m.Records.WithLabelValues(kind).Inc()
		if rec.Params.Volume > 0 {
			m.Volume.WithLabelValues(kind).Add(rec.Params.Volume)
		}
	}
}

// Hooks times actions and counts failures.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActionEnd: func(_ context.Context, ev *domain.ActionEvent) {
			m.ActionDuration.WithLabelValues(ev.Kind).Observe(ev.Duration.Seconds())
			if ev.Err != nil {
				m.ActionErrors.WithLabelValues(ev.Kind, domain.ErrorKind(ev.Err)).Inc()
			}
		},
	}
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(status domain.RunStatus) {
	m.Runs.WithLabelValues(string(status)).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
