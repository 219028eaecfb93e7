package poller

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Clock 时间来源，测试中可替换
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Pacer 每台设备处理完后调用，控制对平台的访问节奏
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer 每次 Wait 从调用时刻起完整等待 interval，
// 与上一台设备的请求耗时无关；ctx 取消时提前返回。
type RatePacer struct {
	limit rate.Limit
}

// NewRatePacer interval <= 0 时返回不等待的 Pacer
func NewRatePacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return NoPause{}
	}
	return &RatePacer{limit: rate.Every(interval)}
}

// Wait 新建的 limiter 令牌先被取走，下一个令牌恰好在 interval 之后可用
func (p *RatePacer) Wait(ctx context.Context) error {
	l := rate.NewLimiter(p.limit, 1)
	l.Allow()
	return l.Wait(ctx)
}

// NoPause 不等待
type NoPause struct{}

func (NoPause) Wait(context.Context) error { return nil }
