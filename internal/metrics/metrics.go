// Package metrics exposes Prometheus counters for the bot. A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "couponbot"

// Recorder owns a private registry so tests can create as many as they like.
type Recorder struct {
	reg *prometheus.Registry

	rejections  *prometheus.CounterVec
	issued      prometheus.Counter
	renders     *prometheus.CounterVec
	renderTime  prometheus.Histogram
	sends       *prometheus.CounterVec
	handlers    *prometheus.CounterVec
	handlerTime *prometheus.HistogramVec
}

// New registers every collector, including Go runtime and process metrics.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_rejections_total",
			Help:      "Submitted names rejected by validation, by rule.",
		}, []string{"reason"}),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupons_issued_total",
			Help:      "Coupons delivered and recorded.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Coupon renders by status.",
		}, []string{"status"}),
		renderTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering a coupon image.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_sends_total",
			Help:      "Outbound Telegram jobs by action and status.",
		}, []string{"action", "status"}),
		handlers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_updates_total",
			Help:      "Handled updates by handler and status.",
		}, []string{"handler", "status"}),
		handlerTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Update handling latency by handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.rejections, r.issued, r.renders, r.renderTime,
		r.sends, r.handlers, r.handlerTime,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// TrackSessions exports the number of users currently in a dialogue.
func (r *Recorder) TrackSessions(active func() int) {
	if r == nil || active == nil {
		return
	}
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dialogue_sessions_active",
		Help:      "Users currently asked for their full name.",
	}, func() float64 { return float64(active()) }))
}

// NameRejected counts a validation rejection.
func (r *Recorder) NameRejected(reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(reason).Inc()
}

// RenderFinished records the outcome and latency of one render.
func (r *Recorder) RenderFinished(took time.Duration, err error) {
	if r == nil {
		return
	}
	r.renders.WithLabelValues(status(err)).Inc()
	r.renderTime.Observe(took.Seconds())
}

// CouponIssued counts a recorded issuance.
func (r *Recorder) CouponIssued() {
	if r == nil {
		return
	}
	r.issued.Inc()
}

// SendResult matches sender.Options.OnResult.
func (r *Recorder) SendResult(action string, err error) {
	if r == nil {
		return
	}
	r.sends.WithLabelValues(action, status(err)).Inc()
}

// HandlerDone matches router.Observer.
func (r *Recorder) HandlerDone(handler, st string, took time.Duration) {
	if r == nil {
		return
	}
	r.handlers.WithLabelValues(handler, st).Inc()
	r.handlerTime.WithLabelValues(handler).Observe(took.Seconds())
}

func status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}
