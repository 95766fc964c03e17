package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"polyshadow/internal/config"
	"polyshadow/internal/logger"
	"polyshadow/internal/resolver"
	"polyshadow/internal/scheduler"
	"polyshadow/internal/shadow"
	"polyshadow/internal/store/gormstore"
	"polyshadow/internal/store/snapshots"
	shadowhttp "polyshadow/internal/transport/http/shadow"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：日志库、快照库、影子策略编排器、结算循环与 HTTP 服务。
type App struct {
	cfg          *config.Config
	configPath   string
	now          func() time.Time
	journal      *gormstore.GormStore
	snapshots    *snapshots.Store
	orchestrator *shadow.Orchestrator
	resolver     *resolver.Resolver
	http         *shadowhttp.Server
	Summary      *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewAppBuilder(cfg, opts...).Build(context.Background())
}

// Run 启动 HTTP 服务与结算循环，直到 ctx 取消；退出时关闭存储。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.orchestrator == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.configPath != "" {
		if err := config.Watch(a.configPath, func(c *config.Config) {
			logger.SetLevel(c.App.LogLevel)
		}); err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("shadow http server error: %w", err)
		}
		return nil
	})
	if a.resolver != nil {
		group.Go(func() error {
			if err := a.resolver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("resolver error: %w", err)
			}
			return nil
		})
	}
	if a.snapshots != nil && a.cfg.Snapshots.Retention() > 0 {
		group.Go(func() error {
			sched := scheduler.NewAlignedScheduler(ctx, time.Hour, 0)
			sched.Name = "snapshot-prune"
			sched.RunImmediately = true
			sched.Start(func() { a.pruneSnapshots(ctx) })
			return nil
		})
	}
	return group.Wait()
}

// pruneSnapshots 删除超过保留期的快照；失败只记录日志。
func (a *App) pruneSnapshots(ctx context.Context) {
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	before := now().Add(-a.cfg.Snapshots.Retention()).Unix()
	n, err := a.snapshots.Prune(ctx, before)
	if err != nil {
		logger.Warnf("snapshot prune failed: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("pruned %d snapshots older than %s", n, time.Unix(before, 0).UTC().Format(time.RFC3339))
	}
}

// Close 关闭日志库与快照库，可重复调用。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.snapshots != nil {
		errs = append(errs, a.snapshots.Close())
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	return errors.Join(errs...)
}

// Orchestrator exposes the shadow orchestrator (for embedding and tests).
func (a *App) Orchestrator() *shadow.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orchestrator
}
