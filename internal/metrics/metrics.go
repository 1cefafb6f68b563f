// Package metrics exposes warm-up counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the warm-up collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Sends        *prometheus.CounterVec
	Replies      *prometheus.CounterVec
	Bounces      *prometheus.CounterVec
	Errors       *prometheus.CounterVec
	Pauses       *prometheus.CounterVec
	Stage        *prometheus.GaugeVec
	SendDuration prometheus.Histogram
	JobRuns      *prometheus.CounterVec
	EventsDrop   prometheus.Counter
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Sends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phoenix_sends_total",
			Help: "Warm-up emails delivered",
		}, []string{"inbox"}),
		Replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phoenix_replies_total",
			Help: "Replies sent to incoming warm-up mail",
		}, []string{"inbox"}),
		Bounces: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phoenix_bounces_total",
			Help: "Hard bounces",
		}, []string{"inbox"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phoenix_errors_total",
			Help: "Failed send, reply or fetch attempts by kind",
		}, []string{"inbox", "kind"}),
		Pauses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phoenix_auto_pauses_total",
			Help: "Inboxes paused automatically",
		}, []string{"reason"}),
		Stage: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "phoenix_inbox_stage",
			Help: "Current ramp stage per inbox",
		}, []string{"inbox"}),
		SendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "phoenix_smtp_send_duration_seconds",
			Help:    "Time spent on one SMTP delivery",
			Buckets: prometheus.DefBuckets,
		}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phoenix_job_runs_total",
			Help: "Scheduled job executions by result",
		}, []string{"job", "result"}),
		EventsDrop: f.NewCounter(prometheus.CounterOpts{
			Name: "phoenix_events_dropped_total",
			Help: "Dashboard events dropped because the queue was full",
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Sent(inbox string, d time.Duration) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(inbox).Inc()
	m.SendDuration.Observe(d.Seconds())
}

func (m *Metrics) Replied(inbox string) {
	if m == nil {
		return
	}
	m.Replies.WithLabelValues(inbox).Inc()
}

func (m *Metrics) Bounced(inbox string) {
	if m == nil {
		return
	}
	m.Bounces.WithLabelValues(inbox).Inc()
}

// Failed counts an error of the given kind (auth, soft, fetch, reply).
func (m *Metrics) Failed(inbox, kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(inbox, kind).Inc()
}

func (m *Metrics) Paused(reason string) {
	if m == nil {
		return
	}
	m.Pauses.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetStage(inbox string, stage int) {
	if m == nil {
		return
	}
	m.Stage.WithLabelValues(inbox).Set(float64(stage))
}

func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.EventsDrop.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
