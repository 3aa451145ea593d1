package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"placement-portal/internal/api"
	"placement-portal/internal/chat"
	"placement-portal/internal/config"
	"placement-portal/internal/effects"
	"placement-portal/internal/notifier"
	"placement-portal/internal/placement"
	"placement-portal/internal/scheduler"
	"placement-portal/internal/storage"

	"golang.org/x/sync/errgroup"
)

// httpServer 抽象 *http.Server，便于测试替换。
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// sweeper 抽象截止时间清理任务。
type sweeper interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context) ([]string, error)
}

// appDeps 是组装好的运行时依赖。
type appDeps struct {
	service *placement.Service
	sweeper sweeper
}

type depsBuilder func(config.AppConfig) (appDeps, func(), error)

func main() {
	sweepOnce := flag.Bool("sweep-once", false, "close expired drives once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("load config error: %v", err)
		return
	}

	if *sweepOnce {
		closed, err := runOnceManual(context.Background(), cfg, buildDeps)
		if err != nil {
			log.Printf("sweep error: %v", err)
			os.Exit(1)
		}
		log.Printf("closed %d expired drives", len(closed))
		return
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		log.Printf("init error: %v", err)
		return
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewHandler(deps.service, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}

	log.Printf("listening on %s", cfg.Server.Addr)
	if err := runServer(ctx, srv, deps.sweeper, timeout); err != nil {
		log.Printf("server error: %v", err)
	}
}

// buildDeps 打开数据库并组装服务，返回的 cleanup 负责关闭连接。
func buildDeps(cfg config.AppConfig) (appDeps, func(), error) {
	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return appDeps{}, func() {}, fmt.Errorf("init store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}

	deliveries := []notifier.Delivery{notifier.NewLogDelivery(nil)}
	if email := buildEmailDelivery(cfg.Notifications.Email, store); email != nil {
		deliveries = append(deliveries, email)
	}
	fanout := notifier.NewFanout(store, cfg.Notifications, nil, deliveries...)
	groups := chat.New(store, nil)
	runner := effects.NewRunner(cfg.Effects, nil)
	svc := placement.New(store, fanout, groups, runner, nil)

	return appDeps{
		service: svc,
		sweeper: scheduler.NewSweeper(store, cfg.Sweeper, nil),
	}, cleanup, nil
}

func buildEmailDelivery(cfg notifier.EmailConfig, dir notifier.EmailDirectory) notifier.Delivery {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		log.Printf("email delivery disabled: missing host/port/from")
		return nil
	}
	return notifier.NewEmailDelivery(cfg, dir, nil)
}

// runServer 并行运行 HTTP 服务与清理任务，ctx 取消后优雅关闭。
func runServer(ctx context.Context, srv httpServer, sw sweeper, shutdownTimeout time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	if sw != nil {
		g.Go(func() error {
			if err := sw.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("sweeper stopped: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// runOnceManual 组装依赖并执行一次清理，用于运维手动触发。
func runOnceManual(ctx context.Context, cfg config.AppConfig, build depsBuilder) ([]string, error) {
	deps, cleanup, err := build(cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	if deps.sweeper == nil {
		return nil, errors.New("sweeper not configured")
	}
	closed, err := deps.sweeper.RunOnce(ctx)
	if err != nil {
		return nil, err
	}
	if len(closed) > 0 {
		log.Printf("closed drives: %s", strings.Join(closed, ","))
	}
	return closed, nil
}
