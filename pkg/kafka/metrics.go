package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_messages_published_total",
		Help: "Events written to kafka, by topic and event type.",
	}, []string{"topic", "event_type"})

	publishErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_publish_errors_total",
		Help: "Events that could not be written to kafka.",
	}, []string{"topic", "event_type"})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_producer_publish_duration_seconds",
		Help:    "Time spent in WriteMessages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)
