package shadowhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"polyshadow/internal/logger"

	"github.com/gin-gonic/gin"
)

var httpLog = logger.With("http")

// Server 提供 /api/shadow HTTP 服务（tick 接入、结算推送、对比报告）。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 shadow HTTP 服务依赖。
type ServerConfig struct {
	Addr    string
	Service Service
	// EpochLength 用于在请求未带 epoch 时推导当前 epoch。
	EpochLength time.Duration
	Now         func() time.Time
	// Performance 与 Snapshots 可选；为 nil 时对应接口返回 404。
	Performance PerformanceSource
	Snapshots   SnapshotSource
}

// NewServer 构建 shadow HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("shadow http server requires a service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg).Register(router.Group("/api/shadow"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		httpLog.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Handler 暴露底层 gin engine，便于测试。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	httpLog.Infof("shadow http listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
