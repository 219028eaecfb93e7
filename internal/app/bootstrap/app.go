package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/port-poller/internal/config"
	"github.com/taoyao-code/port-poller/internal/deviceapi"
	"github.com/taoyao-code/port-poller/internal/httpserver"
	"github.com/taoyao-code/port-poller/internal/metrics"
	"github.com/taoyao-code/port-poller/internal/poller"
	pgstorage "github.com/taoyao-code/port-poller/internal/storage/pg"
	redisstorage "github.com/taoyao-code/port-poller/internal/storage/redis"
)

// RunOnce 执行一轮轮询。
// 单台设备或单个输出失败只记录日志；返回的 Report 由调用方决定是否输出。
func RunOnce(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) poller.Report {
	reg := metrics.NewCycleRegistry()
	appm := metrics.NewAppMetrics(reg)

	opts := []poller.Option{poller.WithMetrics(appm)}

	// 可选：Redis 状态发布
	if cfg.Redis.Enabled {
		client, err := redisstorage.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, status publish disabled", zap.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			opts = append(opts, poller.WithStatusPublisher(
				redisstorage.NewStatusPublisher(client.Client, cfg.Redis.StatusKey, cfg.Redis.Channel)))
			log.Info("redis status publisher enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// 可选：PostgreSQL 历史镜像
	if cfg.Database.Enabled {
		pool, err := pgstorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Warn("database unavailable, history mirror disabled", zap.Error(err))
		} else {
			defer pool.Close()
			repo := &pgstorage.HistoryRepo{Pool: pool}
			if err := repo.EnsureSchema(ctx); err != nil {
				log.Warn("history schema init failed, history mirror disabled", zap.Error(err))
			} else {
				opts = append(opts, poller.WithHistoryMirror(repo))
				log.Info("postgres history mirror enabled")
			}
		}
	}

	client := deviceapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout, log)
	rep := poller.New(cfg, client, log, opts...).RunOnce(ctx)

	if cfg.Metrics.Enable && cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(reg, cfg.Metrics.Textfile); err != nil {
			log.Warn("write metrics textfile failed", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	log.Info("cycle finished",
		zap.String("run_id", rep.RunID),
		zap.Int("devices", len(rep.Devices)),
		zap.Int("rows_appended", rep.RowsAppended),
		zap.NamedError("errors", rep.Err()))
	return rep
}

// Serve 启动 statusd，阻塞到收到退出信号
func Serve(cfg *cfgpkg.Config, log *zap.Logger) error {
	var metricsHandler http.Handler
	if cfg.Metrics.Enable {
		if cfg.Metrics.Textfile != "" {
			metricsHandler = metrics.HandlerWithTextfile(metrics.NewRegistry(), cfg.Metrics.Textfile)
		} else {
			metricsHandler = metrics.Handler(metrics.NewRegistry())
		}
	}
	srv := httpserver.New(cfg.HTTP, cfg.Output.StatusPath(), cfg.Metrics.Path, metricsHandler)

	// 可选：状态文件缺失时从 Redis 读取最近发布的文档
	if cfg.Redis.Enabled {
		client, err := redisstorage.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, status fallback disabled", zap.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			srv.SetFallback(redisstorage.NewStatusPublisher(client.Client, cfg.Redis.StatusKey, cfg.Redis.Channel))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("statusd listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("status_file", cfg.Output.StatusPath()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
