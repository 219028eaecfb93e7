package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/taoyao-code/port-poller/internal/coremodel"
	"github.com/taoyao-code/port-poller/internal/fsutil"
	"github.com/taoyao-code/port-poller/internal/snapshot"
)

// Log 追加写入的历史 CSV 文件，按保留窗口定期压缩。
// 假定同一时刻只有一个进程写入。
type Log struct {
	path      string
	retention time.Duration
}

// NewLog 创建历史文件句柄
func NewLog(path string, retention time.Duration) *Log {
	return &Log{path: path, retention: retention}
}

// Path 文件路径
func (l *Log) Path() string { return l.path }

// Retention 保留窗口
func (l *Log) Retention() time.Duration { return l.retention }

// BuildRows 为一台设备生成历史行，只覆盖来自响应数据的端口，
// 无论端口是否在线或充电。
func BuildRows(res snapshot.Result, timestamp string) []coremodel.HistoryRow {
	if res.Populated == 0 {
		return nil
	}
	rows := make([]coremodel.HistoryRow, 0, res.Populated)
	for _, p := range res.Snapshot.Ports[:res.Populated] {
		rows = append(rows, coremodel.HistoryRow{
			Timestamp:    timestamp,
			DeviceID:     res.Snapshot.ID,
			Port:         p.PortNumber,
			Current:      p.Current,
			Voltage:      p.Voltage,
			Power:        p.Power,
			ChargeStatus: p.Status,
		})
	}
	return rows
}

// Append 追加写入；文件不存在或为空时先写表头
func (l *Log) Append(rows []coremodel.HistoryRow) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat history: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		_ = w.Write(coremodel.HistoryHeader)
	}
	for _, r := range rows {
		_ = w.Write(r.Record())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write history: %w", err)
	}
	return f.Close()
}

// CompactResult 压缩结果
type CompactResult struct {
	Kept    int
	Dropped int
	// Skipped 文件不存在或没有数据行，未改写
	Skipped bool
}

// Compact 只保留时间戳严格晚于 now - retention 的行。
// 表头保留；列数不足、时间无法解析、CSV 格式错误的行直接丢弃。
func (l *Log) Compact(now time.Time) (CompactResult, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return CompactResult{Skipped: true}, nil
	}
	if err != nil {
		return CompactResult{}, fmt.Errorf("open history: %w", err)
	}

	cutoff := now.Add(-l.retention)
	header, kept, dropped, err := filterRecords(f, cutoff, now.Location())
	_ = f.Close()
	if err != nil {
		return CompactResult{}, err
	}
	if header == nil || (len(kept) == 0 && dropped == 0) {
		return CompactResult{Skipped: true}, nil
	}

	err = fsutil.WriteAtomic(l.path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		_ = cw.Write(header)
		_ = cw.WriteAll(kept)
		return cw.Error()
	})
	if err != nil {
		return CompactResult{}, fmt.Errorf("rewrite history: %w", err)
	}
	return CompactResult{Kept: len(kept), Dropped: dropped}, nil
}

func filterRecords(r io.Reader, cutoff time.Time, loc *time.Location) (header []string, kept [][]string, dropped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for {
		rec, readErr := cr.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			var perr *csv.ParseError
			if errors.As(readErr, &perr) {
				if header != nil {
					dropped++
				}
				continue
			}
			return nil, nil, 0, fmt.Errorf("read history: %w", readErr)
		}
		if header == nil {
			header = rec
			continue
		}
		if keepRecord(rec, cutoff, loc) {
			kept = append(kept, rec)
		} else {
			dropped++
		}
	}
	return header, kept, dropped, nil
}

func keepRecord(rec []string, cutoff time.Time, loc *time.Location) bool {
	if len(rec) < len(coremodel.HistoryHeader) {
		return false
	}
	ts, err := time.ParseInLocation(coremodel.TimestampLayout, rec[0], loc)
	if err != nil {
		return false
	}
	return ts.After(cutoff)
}
