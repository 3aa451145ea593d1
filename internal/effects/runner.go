package effects

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"placement-portal/internal/apperr"

	"golang.org/x/sync/errgroup"
)

// Config 控制副作用任务的并发与超时。
type Config struct {
	Timeout     string `yaml:"timeout" json:"timeout"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
}

// Runner 在主操作提交后执行尽力而为的副作用任务。
// 任务失败或 panic 只记录日志，不影响调用方结果。
type Runner struct {
	timeout time.Duration
	limit   int
	logger  *log.Logger
}

// NewRunner 创建 Runner，未提供 logger 时输出到标准输出。
func NewRunner(cfg Config, logger *log.Logger) *Runner {
	timeout := 10 * time.Second
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = 4
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[effects] ", log.LstdFlags)
	}
	return &Runner{timeout: timeout, limit: limit, logger: logger}
}

// Task 是一个具名副作用。
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Batch 是一次请求内的一组副作用，Wait 之前不会遗留未完成的任务。
type Batch struct {
	runner *Runner
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// Start 开始一组副作用；任务上下文与请求取消解耦，只受 Runner 超时约束。
func (r *Runner) Start(parent context.Context) *Batch {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.timeout)
	g := &errgroup.Group{}
	g.SetLimit(r.limit)
	return &Batch{runner: r, group: g, ctx: ctx, cancel: cancel}
}

// Go 调度一个任务，错误被记录后吞掉。
func (b *Batch) Go(task Task) {
	b.group.Go(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
			if err != nil {
				b.runner.logger.Printf("side effect %s: %v", task.Name, apperr.SideEffect(task.Name, err))
			}
		}()
		return task.Run(b.ctx)
	})
}

// Wait 等待全部任务结束，任务错误已在执行时记录。
func (b *Batch) Wait() {
	_ = b.group.Wait()
	b.cancel()
}

// Run 启动并等待一组任务。
func (r *Runner) Run(parent context.Context, tasks ...Task) {
	b := r.Start(parent)
	for _, t := range tasks {
		b.Go(t)
	}
	b.Wait()
}
