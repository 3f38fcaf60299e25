// Package metrics 暴露链上读写与聚合的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry 独立的 registry，不污染 prometheus.DefaultRegisterer
	Registry = prometheus.NewRegistry()

	// ChainCalls eth_call 次数，outcome: ok / error
	ChainCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "betdex",
			Name:      "chain_calls_total",
			Help:      "Total number of read-only contract calls",
		},
		[]string{"method", "outcome"},
	)

	// CacheLookups 读缓存命中情况，result: hit / miss
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "betdex",
			Name:      "read_cache_lookups_total",
			Help:      "Read-through cache lookups",
		},
		[]string{"result"},
	)

	// Transactions 交易结果，outcome: mined / reverted / rejected / failed
	Transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "betdex",
			Name:      "transactions_total",
			Help:      "Submitted transactions by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// AggregationSkipped 聚合时被跳过的条目
	AggregationSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "betdex",
			Name:      "aggregation_skipped_total",
			Help:      "Matches or factories skipped because a read failed",
		},
		[]string{"view", "stage"},
	)

	// AggregationDuration 单次视图聚合耗时
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "betdex",
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent building a betting view",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"view"},
	)
)

func init() {
	Registry.MustRegister(
		ChainCalls,
		CacheLookups,
		Transactions,
		AggregationSkipped,
		AggregationDuration,
		collectors.NewGoCollector(),
	)
}

// Handler /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
