package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's metrics on a private registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	Triggers        *prometheus.CounterVec // zone
	TriggerDuration prometheus.Histogram

	Notifications *prometheus.CounterVec // channel, result: sent|failed
	FetchErrors   *prometheus.CounterVec // source
	Arrivals      *prometheus.CounterVec // eta_source

	SchedulerChecks *prometheus.CounterVec // window, outcome

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_triggers_total",
			Help: "Commute agent runs by resolved zone.",
		}, []string{"zone"}),
		TriggerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "commute_trigger_duration_seconds",
			Help:    "Time to gather, format and send one commute summary.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_notifications_total",
			Help: "Notifications by channel and result.",
		}, []string{"channel", "result"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_fetch_errors_total",
			Help: "Upstream fetch failures by source.",
		}, []string{"source"}),
		Arrivals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_arrivals_total",
			Help: "Reconciled arrivals by ETA source.",
		}, []string{"eta_source"}),
		SchedulerChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commute_scheduler_checks_total",
			Help: "Scheduler window evaluations by window and outcome.",
		}, []string{"window", "outcome"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commute_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commute_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commute_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "commute_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Triggers, c.TriggerDuration,
		c.Notifications, c.FetchErrors, c.Arrivals,
		c.SchedulerChecks,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)
	return c
}

func (c *Collector) TriggerObserve(zone string, d time.Duration) {
	if c == nil {
		return
	}
	c.Triggers.WithLabelValues(zone).Inc()
	c.TriggerDuration.Observe(d.Seconds())
}

func (c *Collector) NotificationResult(channel string, err error) {
	if c == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.Notifications.WithLabelValues(channel, result).Inc()
}

func (c *Collector) FetchError(source string) {
	if c == nil {
		return
	}
	c.FetchErrors.WithLabelValues(source).Inc()
}

func (c *Collector) ArrivalsAdd(etaSource string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Arrivals.WithLabelValues(etaSource).Add(float64(n))
}

func (c *Collector) SchedulerCheck(window, outcome string) {
	if c == nil {
		return
	}
	c.SchedulerChecks.WithLabelValues(window, outcome).Inc()
}

func (c *Collector) NATSPublishedInc() {
	if c != nil {
		c.NATSPublished.Inc()
	}
}

func (c *Collector) NATSPublishErrInc() {
	if c != nil {
		c.NATSPublishErrs.Inc()
	}
}

func (c *Collector) PublishObserve(d time.Duration) {
	if c != nil {
		c.PublishDuration.Observe(d.Seconds())
	}
}

func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}
