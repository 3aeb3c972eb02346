package app

import (
	"time"

	"github.com/calehh/frabric-app/tx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "frabric"

type appMetrics struct {
	height        prometheus.Gauge
	txs           *prometheus.CounterVec
	events        *prometheus.CounterVec
	blockTxs      prometheus.Histogram
	finalizeBlock prometheus.Histogram
}

func (m *appMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.height = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "height",
		Help:      "last committed block height",
	})
	m.txs = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "txs_total",
		Help:      "delivered transactions by type and result",
	}, []string{"type", "result"})
	m.events = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_total",
		Help:      "events emitted by delivered transactions",
	}, []string{"type"})
	m.blockTxs = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "block_txs",
		Help:      "transactions per finalized block",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
	m.finalizeBlock = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "finalize_block_seconds",
		Help:      "time spent executing a block",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
}

func (m *appMetrics) observeTx(t tx.TxType, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.txs.WithLabelValues(t.String(), result).Inc()
}

func (m *appMetrics) observeBlock(height uint64, txs int, start time.Time) {
	m.height.Set(float64(height))
	m.blockTxs.Observe(float64(txs))
	m.finalizeBlock.Observe(time.Since(start).Seconds())
}
