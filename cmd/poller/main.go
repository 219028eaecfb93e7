package main

import (
	"context"

	"github.com/taoyao-code/port-poller/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/port-poller/internal/config"
	"github.com/taoyao-code/port-poller/internal/logging"

	"go.uber.org/zap"
)

// 单次运行：拉取所有设备、写状态文件、追加并清理历史后退出。
// 由外部调度（cron / systemd timer）周期性触发。
func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 执行一轮；部分失败不影响退出码
	bootstrap.RunOnce(context.Background(), cfg, logger)
}
