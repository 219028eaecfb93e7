package httpserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	cfgpkg "github.com/taoyao-code/port-poller/internal/config"
	"github.com/taoyao-code/port-poller/internal/coremodel"
	"github.com/taoyao-code/port-poller/internal/snapshot"
)

// StatusSource 状态文件之外的状态文档来源（如 Redis）
type StatusSource interface {
	LatestStatus(ctx context.Context) (coremodel.StatusDocument, error)
}

// Server 状态文档的只读 HTTP 出口
type Server struct {
	srv        *http.Server
	statusPath string
	staleAfter time.Duration
	now        func() time.Time
	fallback   StatusSource
}

// New 创建并配置 Gin + HTTP Server，注册状态、健康检查与指标路由
func New(cfg cfgpkg.HTTPConfig, statusPath string, metricsPath string, metricsHandler http.Handler) *Server {
	s := &Server{
		statusPath: statusPath,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", s.handleReady)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/status/:device_id", s.handleDevice)

	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// SetFallback 状态文件不存在时改从 src 读取
func (s *Server) SetFallback(src StatusSource) {
	s.fallback = src
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// 状态文件存在且在 staleAfter 内更新过才算就绪
func (s *Server) handleReady(c *gin.Context) {
	info, err := os.Stat(s.statusPath)
	if err != nil {
		c.String(http.StatusServiceUnavailable, "not-ready")
		return
	}
	if s.staleAfter > 0 && s.now().Sub(info.ModTime()) > s.staleAfter {
		c.String(http.StatusServiceUnavailable, "stale")
		return
	}
	c.String(http.StatusOK, "ready")
}

func (s *Server) handleStatus(c *gin.Context) {
	doc, ok := s.loadDocument(c)
	if !ok {
		return
	}
	writeJSON(c, doc)
}

func (s *Server) handleDevice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("device_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device_id"})
		return
	}
	doc, ok := s.loadDocument(c)
	if !ok {
		return
	}
	for _, snap := range doc {
		if snap.ID == id {
			writeJSON(c, snap)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
}

func (s *Server) loadDocument(c *gin.Context) (coremodel.StatusDocument, bool) {
	doc, err := snapshot.ReadDocument(s.statusPath)
	if errors.Is(err, os.ErrNotExist) && s.fallback != nil {
		doc, err = s.fallback.LatestStatus(c.Request.Context())
		if err == nil {
			return doc, true
		}
		err = os.ErrNotExist
	}
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "status not available"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return doc, true
}

// writeJSON 不转义非 ASCII 与 HTML 字符，与状态文件保持一致
func writeJSON(c *gin.Context, v any) {
	c.PureJSON(http.StatusOK, v)
}
