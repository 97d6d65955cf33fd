package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for the lead intake pipeline.
type IntakeMetrics struct {
	submissionsTotal *prometheus.CounterVec
	forwardTotal     *prometheus.CounterVec
	rateLimitedTotal prometheus.Counter
	captchaLatency   prometheus.Histogram
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadintake",
			Subsystem: "pipeline",
			Name:      "submissions_total",
			Help:      "Total inbound lead submissions by path and outcome",
		}, []string{"path", "outcome"}),
		forwardTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadintake",
			Subsystem: "crm",
			Name:      "forward_total",
			Help:      "Total outbound CRM forwards",
		}, []string{"status"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadintake",
			Subsystem: "pipeline",
			Name:      "rate_limited_total",
			Help:      "Submissions rejected by the sliding-window rate check",
		}),
		captchaLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadintake",
			Subsystem: "captcha",
			Name:      "verify_seconds",
			Help:      "Latency of CAPTCHA provider verification calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.forwardTotal, m.rateLimitedTotal, m.captchaLatency)
	return m
}

func (m *IntakeMetrics) ObserveSubmission(path, outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(path, outcome).Inc()
	if outcome == "rate_limited" {
		m.rateLimitedTotal.Inc()
	}
}

func (m *IntakeMetrics) ObserveForward(status string) {
	if m == nil {
		return
	}
	m.forwardTotal.WithLabelValues(status).Inc()
}

func (m *IntakeMetrics) ObserveCaptchaLatency(seconds float64) {
	if m == nil {
		return
	}
	m.captchaLatency.Observe(seconds)
}
