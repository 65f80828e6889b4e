package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ArticlesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_generated_total",
			Help: "Total articles generated by the content scheduler",
		},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_failures_total",
			Help: "Total failed article generation attempts",
		},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drip_emails_sent_total",
			Help: "Total drip emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drip_email_failures_total",
			Help: "Total failed drip email sends",
		},
	)

	EmailsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drip_emails_cancelled_total",
			Help: "Total drip emails cancelled before send",
		},
	)
)

func Init() {
	prometheus.MustRegister(ArticlesGenerated)
	prometheus.MustRegister(GenerationFailures)
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(EmailsCancelled)
}
