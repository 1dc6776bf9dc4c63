package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector exports pgxpool statistics.
type poolCollector struct {
	pool    *pgxpool.Pool
	service string

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	acquires *prometheus.Desc
	waits    *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool, service string) *poolCollector {
	labels := []string{"service"}
	return &poolCollector{
		pool:     pool,
		service:  service,
		acquired: prometheus.NewDesc("db_pool_acquired_connections", "Number of currently acquired connections", labels, nil),
		idle:     prometheus.NewDesc("db_pool_idle_connections", "Number of currently idle connections", labels, nil),
		total:    prometheus.NewDesc("db_pool_total_connections", "Total number of connections in the pool", labels, nil),
		max:      prometheus.NewDesc("db_pool_max_connections", "Maximum number of connections allowed", labels, nil),
		acquires: prometheus.NewDesc("db_pool_acquire_count_total", "Total number of connection acquires", labels, nil),
		waits:    prometheus.NewDesc("db_pool_empty_acquire_count_total", "Acquires that had to wait for a connection", labels, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
	ch <- c.waits
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()), c.service)
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.EmptyAcquireCount()), c.service)
}

// RegisterPoolMetrics registers pool statistics with the default registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(newPoolCollector(pool, service))
}
