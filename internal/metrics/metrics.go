package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewCycleRegistry 单次轮询使用的 Registry，不含 Go/进程采集器，
// 写出的 textfile 可与 statusd 自身的指标合并
func NewCycleRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// HandlerWithTextfile 在 reg 之外合并 textfile 中的指标（poller 最近一轮写出的结果）
func HandlerWithTextfile(reg *prometheus.Registry, path string) http.Handler {
	g := prometheus.Gatherers{reg, TextfileGatherer(path)}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{Registry: reg})
}

// WriteTextfile 单次运行结束后把指标写入文件，供 node_exporter textfile collector 采集
func WriteTextfile(reg *prometheus.Registry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return prometheus.WriteToTextfile(path, reg)
}

// TextfileGatherer 读取 WriteTextfile 写出的文件；文件不存在时返回空
func TextfileGatherer(path string) prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()

		parser := expfmt.NewTextParser(model.UTF8Validation)
		byName, err := parser.TextToMetricFamilies(f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		mfs := make([]*dto.MetricFamily, 0, len(names))
		for _, name := range names {
			mfs = append(mfs, byName[name])
		}
		return mfs, nil
	})
}

// 拉取结果标签
const (
	FetchOK       = "ok"
	FetchAPIError = "api_error"
	FetchFailed   = "failed"
)

// AppMetrics 轮询业务指标
type AppMetrics struct {
	FetchTotal          *prometheus.CounterVec // labels: result=ok|api_error|failed
	FetchDuration       prometheus.Histogram
	HistoryRowsAppended prometheus.Counter
	HistoryRowsKept     prometheus.Gauge
	HistoryRowsDropped  prometheus.Counter
	StepErrors          *prometheus.CounterVec // labels: step
	LastRunTimestamp    prometheus.Gauge
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_fetch_total",
			Help: "Device port-list fetches by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poller_fetch_duration_seconds",
			Help:    "Duration of a single device port-list fetch.",
			Buckets: prometheus.DefBuckets,
		}),
		HistoryRowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_history_rows_appended_total",
			Help: "History rows appended to the log.",
		}),
		HistoryRowsKept: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_history_rows_kept",
			Help: "History rows retained by the last compaction.",
		}),
		HistoryRowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_history_rows_dropped_total",
			Help: "History rows discarded by compaction (expired or malformed).",
		}),
		StepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_step_errors_total",
			Help: "Failed cycle steps by step name.",
		}, []string{"step"}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_last_run_timestamp_seconds",
			Help: "Unix time of the last completed cycle.",
		}),
	}
	reg.MustRegister(m.FetchTotal, m.FetchDuration, m.HistoryRowsAppended, m.HistoryRowsKept,
		m.HistoryRowsDropped, m.StepErrors, m.LastRunTimestamp)
	return m
}
