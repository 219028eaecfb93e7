package poller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/port-poller/internal/config"
	"github.com/taoyao-code/port-poller/internal/coremodel"
	"github.com/taoyao-code/port-poller/internal/deviceapi"
	"github.com/taoyao-code/port-poller/internal/history"
	"github.com/taoyao-code/port-poller/internal/metrics"
	"github.com/taoyao-code/port-poller/internal/snapshot"
)

// Fetcher 拉取单台设备端口列表
type Fetcher interface {
	FetchPortList(ctx context.Context, deviceID int64) (*deviceapi.PortListResponse, error)
}

// StatusPublisher 状态文档的额外出口（如 Redis），失败不影响文件输出
type StatusPublisher interface {
	PublishStatus(ctx context.Context, doc coremodel.StatusDocument) error
}

// HistoryMirror 历史行的额外存储（如 PostgreSQL），与 CSV 使用相同的保留窗口
type HistoryMirror interface {
	InsertRows(ctx context.Context, rows []coremodel.HistoryRow) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Option 可选依赖
type Option func(*Poller)

// WithClock 替换时间来源
func WithClock(c Clock) Option { return func(p *Poller) { p.clock = c } }

// WithPacer 替换设备间暂停策略
func WithPacer(pc Pacer) Option { return func(p *Poller) { p.pacer = pc } }

// WithMetrics 启用业务指标
func WithMetrics(m *metrics.AppMetrics) Option { return func(p *Poller) { p.metrics = m } }

// WithStatusPublisher 额外发布状态文档
func WithStatusPublisher(s StatusPublisher) Option { return func(p *Poller) { p.publisher = s } }

// WithHistoryMirror 额外写入历史镜像
func WithHistoryMirror(h HistoryMirror) Option { return func(p *Poller) { p.mirror = h } }

// Poller 单次轮询编排：拉取 → 归一化 → 写状态文件 → 追加历史 → 压缩历史
type Poller struct {
	devices    []coremodel.Device
	fetcher    Fetcher
	statusPath string
	history    *history.Log
	tsOffset   time.Duration

	clock     Clock
	pacer     Pacer
	metrics   *metrics.AppMetrics
	publisher StatusPublisher
	mirror    HistoryMirror
	logger    *zap.Logger
}

// New 根据配置创建 Poller
func New(cfg *cfgpkg.Config, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		devices:    coremodel.NewDevices(cfg.Devices.IDs, cfg.Devices.NamePrefix),
		fetcher:    fetcher,
		statusPath: cfg.Output.StatusPath(),
		history:    history.NewLog(cfg.Output.HistoryPath(), cfg.History.Retention()),
		tsOffset:   cfg.History.TimestampOffset,
		clock:      SystemClock{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pacer == nil {
		p.pacer = NewRatePacer(cfg.Poll.Pause)
	}
	return p
}

// DeviceOutcome 单台设备本次结果
type DeviceOutcome struct {
	DeviceID int64
	Name     string
	Result   string // ok | api_error | failed
	Ports    int    // 来自响应数据的端口数
	Error    string
}

// Report 单次运行结果；各步骤的错误互不影响
type Report struct {
	RunID        string
	StartedAt    time.Time
	Devices      []DeviceOutcome
	Document     coremodel.StatusDocument
	RowsAppended int
	Compaction   history.CompactResult

	StatusErr  error
	PublishErr error
	AppendErr  error
	MirrorErr  error
	CompactErr error
}

// Err 汇总所有步骤错误
func (r Report) Err() error {
	return errors.Join(r.StatusErr, r.PublishErr, r.AppendErr, r.MirrorErr, r.CompactErr)
}

// RunOnce 执行一轮完整轮询。单台设备或单个步骤失败只记录日志，不中断后续步骤。
func (p *Poller) RunOnce(ctx context.Context) Report {
	now := p.clock.Now()
	updatedAt := coremodel.FormatTimestamp(now)
	historyTS := coremodel.FormatTimestamp(now.Add(p.tsOffset))

	rep := Report{
		RunID:     uuid.NewString(),
		StartedAt: now,
		Devices:   make([]DeviceOutcome, 0, len(p.devices)),
		Document:  make(coremodel.StatusDocument, 0, len(p.devices)),
	}
	log := p.logger.With(zap.String("run_id", rep.RunID))
	log.Info("starting data fetch",
		zap.String("timestamp", updatedAt),
		zap.Int("devices", len(p.devices)))

	var rows []coremodel.HistoryRow
	for _, dev := range p.devices {
		res, outcome := p.pollDevice(ctx, log, dev, updatedAt)
		rep.Document = append(rep.Document, res.Snapshot)
		rep.Devices = append(rep.Devices, outcome)
		rows = append(rows, history.BuildRows(res, historyTS)...)

		if err := p.pacer.Wait(ctx); err != nil {
			log.Warn("pause between devices interrupted", zap.Error(err))
		}
	}

	// 1. 状态文件
	if err := snapshot.WriteDocument(p.statusPath, rep.Document); err != nil {
		rep.StatusErr = err
		p.stepError("status")
		log.Error("error saving status document", zap.String("path", p.statusPath), zap.Error(err))
	} else {
		log.Info("updated status document", zap.String("path", p.statusPath))
	}
	if p.publisher != nil {
		if err := p.publisher.PublishStatus(ctx, rep.Document); err != nil {
			rep.PublishErr = err
			p.stepError("publish")
			log.Error("error publishing status document", zap.Error(err))
		}
	}

	// 2. 追加历史
	if err := p.history.Append(rows); err != nil {
		rep.AppendErr = err
		p.stepError("append")
		log.Error("error appending history", zap.String("path", p.history.Path()), zap.Error(err))
	} else {
		rep.RowsAppended = len(rows)
		if p.metrics != nil {
			p.metrics.HistoryRowsAppended.Add(float64(len(rows)))
		}
		log.Info("appended history records", zap.Int("records", len(rows)))
	}
	if p.mirror != nil {
		if err := p.mirror.InsertRows(ctx, rows); err != nil {
			rep.MirrorErr = err
			p.stepError("mirror")
			log.Error("error mirroring history rows", zap.Error(err))
		}
	}

	// 3. 清理过期历史
	p.compact(ctx, log, now, &rep)

	if p.metrics != nil {
		p.metrics.LastRunTimestamp.Set(float64(now.Unix()))
	}
	return rep
}

func (p *Poller) pollDevice(ctx context.Context, log *zap.Logger, dev coremodel.Device, updatedAt string) (snapshot.Result, DeviceOutcome) {
	start := time.Now()
	resp, err := p.fetcher.FetchPortList(ctx, dev.ID)
	if p.metrics != nil {
		p.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}

	res := snapshot.Normalize(dev, resp, err, updatedAt)
	outcome := DeviceOutcome{
		DeviceID: dev.ID,
		Name:     dev.Name,
		Result:   metrics.FetchOK,
		Ports:    res.Populated,
		Error:    res.Snapshot.Error,
	}

	switch {
	case res.FetchFailed():
		outcome.Result = metrics.FetchFailed
		log.Warn("request failed", zap.Int64("device_id", dev.ID), zap.Error(err))
	case !resp.OK():
		outcome.Result = metrics.FetchAPIError
		log.Warn("api error",
			zap.Int64("device_id", dev.ID),
			zap.String("msg", resp.Message()),
			zap.Int("ports", res.Populated))
	}
	if p.metrics != nil {
		p.metrics.FetchTotal.WithLabelValues(outcome.Result).Inc()
	}
	return res, outcome
}

func (p *Poller) compact(ctx context.Context, log *zap.Logger, now time.Time, rep *Report) {
	days := int(p.history.Retention() / (24 * time.Hour))

	res, err := p.history.Compact(now)
	rep.Compaction = res
	switch {
	case err != nil:
		rep.CompactErr = err
		p.stepError("compact")
		log.Error("error cleaning history", zap.String("path", p.history.Path()), zap.Error(err))
	case res.Skipped:
		log.Debug("history compaction skipped", zap.String("path", p.history.Path()))
	default:
		if p.metrics != nil {
			p.metrics.HistoryRowsKept.Set(float64(res.Kept))
			p.metrics.HistoryRowsDropped.Add(float64(res.Dropped))
		}
		log.Info("cleaned history",
			zap.Int("kept", res.Kept),
			zap.Int("dropped", res.Dropped),
			zap.Int("days", days))
	}

	if p.mirror != nil {
		deleted, err := p.mirror.DeleteBefore(ctx, now.Add(-p.history.Retention()))
		if err != nil {
			rep.MirrorErr = errors.Join(rep.MirrorErr, err)
			p.stepError("mirror")
			log.Error("error cleaning mirrored history", zap.Error(err))
		} else if deleted > 0 {
			log.Info("cleaned mirrored history", zap.Int64("deleted", deleted))
		}
	}
}

func (p *Poller) stepError(step string) {
	if p.metrics != nil {
		p.metrics.StepErrors.WithLabelValues(step).Inc()
	}
}
