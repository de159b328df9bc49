package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds the application's collectors. A fresh registry per
// process (or per test) avoids duplicate-registration panics.
type Registry struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	OTPRequestsTotal           *prometheus.CounterVec
	OTPVerificationsTotal      *prometheus.CounterVec
	RegistrationsTotal         *prometheus.CounterVec
	InterestTransitionsTotal   *prometheus.CounterVec
	SweepDeletedTotal          *prometheus.CounterVec
	NewsArticlesSyncedTotal    prometheus.Counter
}

func New(serviceName string) *Registry {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": serviceName}

	r := &Registry{
		Registerer: reg,
		Gatherer:   reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests.",
				ConstLabels: constLabels,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Duration of HTTP requests.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "path"},
		),
		OTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "otp_requests_total",
				Help:        "OTP send requests by delivery result.",
				ConstLabels: constLabels,
			},
			[]string{"delivery"},
		),
		OTPVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "otp_verifications_total",
				Help:        "OTP verification attempts by result.",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "registrations_total",
				Help:        "Registration attempts by result.",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		InterestTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interest_transitions_total",
				Help:        "Interest state transitions by action and result.",
				ConstLabels: constLabels,
			},
			[]string{"action", "result"},
		),
		SweepDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sweep_deleted_total",
				Help:        "Expired rows purged by the janitor.",
				ConstLabels: constLabels,
			},
			[]string{"table"},
		),
		NewsArticlesSyncedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "news_articles_synced_total",
				Help:        "News articles written by the sync job.",
				ConstLabels: constLabels,
			},
		),
	}

	reg.MustRegister(
		r.HTTPRequestsTotal,
		r.HTTPRequestDurationSeconds,
		r.OTPRequestsTotal,
		r.OTPVerificationsTotal,
		r.RegistrationsTotal,
		r.InterestTransitionsTotal,
		r.SweepDeletedTotal,
		r.NewsArticlesSyncedTotal,
	)
	return r
}

// Result returns "ok" or "error" for counter labels
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
