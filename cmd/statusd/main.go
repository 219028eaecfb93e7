package main

import (
	"os"

	"github.com/taoyao-code/port-poller/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/port-poller/internal/config"
	"github.com/taoyao-code/port-poller/internal/logging"

	"go.uber.org/zap"
)

func main() {
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := bootstrap.Serve(cfg, logger); err != nil {
		logger.Error("statusd exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
