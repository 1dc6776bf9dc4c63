package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	signupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_signups_total",
		Help: "Accounts created through credential signup.",
	})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Credential login attempts by result.",
	}, []string{"result"})

	emailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_emails_sent_total",
		Help: "Transactional emails by template and result.",
	}, []string{"template", "result"})
)

func recordEmail(template string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	emailsSentTotal.WithLabelValues(template, result).Inc()
}
