package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config 用于截止时间清理的调度配置。
type Config struct {
	Interval string `yaml:"interval" json:"interval"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// Store 抽象存储接口，便于测试替换。
type Store interface {
	CloseExpiredDrives(ctx context.Context, now time.Time) ([]string, error)
}

// Sweeper 周期性关闭已过截止时间的 active drive，使公司可以开启下一轮招聘。
type Sweeper struct {
	store     Store
	interval  time.Duration
	timeout   time.Duration
	running   atomic.Bool
	logger    *log.Logger
	newTicker func(time.Duration) ticker
	now       func() time.Time
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewSweeper 创建 Sweeper，解析配置的间隔与超时。
func NewSweeper(s Store, cfg Config, logger *log.Logger) *Sweeper {
	interval := parseDuration(cfg.Interval, 15*time.Minute)
	timeout := parseDuration(cfg.Timeout, 30*time.Second)
	if logger == nil {
		logger = log.New(os.Stdout, "[sweeper] ", log.LstdFlags)
	}
	return &Sweeper{
		store:     s,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		newTicker: defaultTicker,
		now:       time.Now,
	}
}

// Start 启动清理循环，直到上下文取消；单次失败只记录日志。
func (s *Sweeper) Start(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("sweeper missing store")
	}

	g, ctx := errgroup.WithContext(ctx)
	tick := s.newTicker(s.interval)
	ch := tick.C()

	g.Go(func() error {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				if _, err := s.runOnce(ctx); err != nil {
					s.logger.Printf("sweep expired drives: %v", err)
				}
			drain:
				for {
					select {
					case <-ch:
						continue
					default:
						break drain
					}
				}
			}
		}
	})

	return g.Wait()
}

// RunOnce 对外暴露单次清理接口，返回被关闭的 drive ID。
func (s *Sweeper) RunOnce(ctx context.Context) ([]string, error) {
	return s.runOnce(ctx)
}

func (s *Sweeper) runOnce(ctx context.Context) ([]string, error) {
	if s.running.Swap(true) {
		return nil, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	closed, err := s.store.CloseExpiredDrives(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("close expired drives: %w", err)
	}
	if len(closed) > 0 {
		s.logger.Printf("closed %d expired drives: %s", len(closed), strings.Join(closed, ","))
	}
	return closed, nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }
