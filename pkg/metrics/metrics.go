// Package metrics 提供 Prometheus helper，包含常用 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/copytrading/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 数据库查询计数
	DBQueriesTotal prometheus.Counter
	// 数据库查询耗时
	DBQueryDuration prometheus.Histogram

	// Redis 操作计数
	RedisOpsTotal prometheus.Counter

	// 业务指标
	BacktestsTotal     prometheus.Counter
	BacktestsFailed    prometheus.Counter
	BacktestsRunning   prometheus.Gauge
	BacktestDuration   prometheus.Histogram
	SimulatedTrades    prometheus.Counter
	FailedTrades       prometheus.Counter
	SkippedTradeEvents prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "db_queries_total",
			Help:      "Total database queries",
		}),
		DBQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		RedisOpsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "redis_ops_total",
			Help:      "Total Redis operations",
		}),

		BacktestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "backtests_total",
			Help:      "Total backtest runs started",
		}),
		BacktestsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "backtests_failed_total",
			Help:      "Total backtest runs that ended in error",
		}),
		BacktestsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "backtests_running",
			Help:      "Number of backtests currently replaying",
		}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "backtest_duration_seconds",
			Help:      "Wall time per backtest replay",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		SimulatedTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "simulated_trades_total",
			Help:      "Total simulated follower trades executed across backtests",
		}),
		FailedTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "failed_trades_total",
			Help:      "Total simulated trades rejected or closed at a loss",
		}),
		SkippedTradeEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "skipped_trade_events_total",
			Help:      "Leader executions skipped for sizing or funding reasons",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.RedisOpsTotal,
		m.BacktestsTotal,
		m.BacktestsFailed,
		m.BacktestsRunning,
		m.BacktestDuration,
		m.SimulatedTrades,
		m.FailedTrades,
		m.SkippedTradeEvents,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
