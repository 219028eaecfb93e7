package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/port-poller/internal/coremodel"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS port_history (
    ts            TIMESTAMP        NOT NULL,
    device_id     BIGINT           NOT NULL,
    port          SMALLINT         NOT NULL,
    current       DOUBLE PRECISION NOT NULL,
    voltage       DOUBLE PRECISION NOT NULL,
    power         DOUBLE PRECISION NOT NULL,
    charge_status INTEGER          NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_port_history_ts ON port_history (ts);`

// HistoryRepo 历史行的 PostgreSQL 镜像。
// ts 列为无时区时间戳，与 CSV 中的字符串一致（含偏移）。
type HistoryRepo struct {
	Pool *pgxpool.Pool
}

// EnsureSchema 建表（幂等）
func (r *HistoryRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, historySchema)
	return err
}

// InsertRows 用 COPY 批量写入
func (r *HistoryRepo) InsertRows(ctx context.Context, rows []coremodel.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	src := make([][]any, 0, len(rows))
	for _, row := range rows {
		ts, err := row.Time(time.UTC)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", row.Timestamp, err)
		}
		src = append(src, []any{ts, row.DeviceID, int16(row.Port), row.Current, row.Voltage, row.Power, int32(row.ChargeStatus)})
	}
	_, err := r.Pool.CopyFrom(ctx,
		pgx.Identifier{"port_history"},
		[]string{"ts", "device_id", "port", "current", "voltage", "power", "charge_status"},
		pgx.CopyFromRows(src))
	return err
}

// DeleteBefore 删除 ts <= cutoff 的行，与 CSV 压缩的严格大于规则一致
func (r *HistoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	// cutoff 按墙上时间比较，去掉时区信息
	wall := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), cutoff.Hour(), cutoff.Minute(), cutoff.Second(), cutoff.Nanosecond(), time.UTC)
	tag, err := r.Pool.Exec(ctx, `DELETE FROM port_history WHERE ts <= $1`, wall)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
