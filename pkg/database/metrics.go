package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolStater is satisfied by *pgxpool.Pool.
type poolStater interface {
	Stat() *pgxpool.Stat
}

// PoolStatsCollector exports pgxpool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	pool  poolStater
	store string

	acquiredConns   *prometheus.Desc
	idleConns       *prometheus.Desc
	totalConns      *prometheus.Desc
	maxConns        *prometheus.Desc
	acquireCount    *prometheus.Desc
	acquireDuration *prometheus.Desc
	emptyAcquires   *prometheus.Desc
	canceledAcquire *prometheus.Desc
}

func poolDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc("storefront_db_pool_"+name, help, []string{"store"}, nil)
}

// NewPoolStatsCollector creates a collector for pool labelled with store.
func NewPoolStatsCollector(pool poolStater, store string) *PoolStatsCollector {
	return &PoolStatsCollector{
		pool:            pool,
		store:           store,
		acquiredConns:   poolDesc("acquired_connections", "Number of currently acquired connections"),
		idleConns:       poolDesc("idle_connections", "Number of currently idle connections"),
		totalConns:      poolDesc("total_connections", "Total number of connections in the pool"),
		maxConns:        poolDesc("max_connections", "Maximum number of connections allowed"),
		acquireCount:    poolDesc("acquire_count_total", "Total number of connection acquires"),
		acquireDuration: poolDesc("acquire_duration_seconds_total", "Total time spent acquiring connections"),
		emptyAcquires:   poolDesc("empty_acquire_count_total", "Acquires that had to wait for a connection"),
		canceledAcquire: poolDesc("canceled_acquire_count_total", "Acquires canceled by their context"),
	}
}

func (c *PoolStatsCollector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.acquiredConns, c.idleConns, c.totalConns, c.maxConns,
		c.acquireCount, c.acquireDuration, c.emptyAcquires, c.canceledAcquire,
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, c.store)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, c.store)
	}

	gauge(c.acquiredConns, float64(stat.AcquiredConns()))
	gauge(c.idleConns, float64(stat.IdleConns()))
	gauge(c.totalConns, float64(stat.TotalConns()))
	gauge(c.maxConns, float64(stat.MaxConns()))
	counter(c.acquireCount, float64(stat.AcquireCount()))
	counter(c.acquireDuration, stat.AcquireDuration().Seconds())
	counter(c.emptyAcquires, float64(stat.EmptyAcquireCount()))
	counter(c.canceledAcquire, float64(stat.CanceledAcquireCount()))
}

// RegisterPoolMetrics registers a collector for pool with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, store string) error {
	return reg.Register(NewPoolStatsCollector(pool, store))
}
