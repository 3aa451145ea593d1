package notifier

import (
	"context"
	"log"
	"os"

	"placement-portal/internal/model"
)

// LogDelivery 仅打印通知，适合开发阶段使用。
type LogDelivery struct {
	logger *log.Logger
}

// NewLogDelivery 创建日志投递渠道，未提供 logger 时默认输出到标准输出。
func NewLogDelivery(logger *log.Logger) *LogDelivery {
	if logger == nil {
		logger = log.New(os.Stdout, "[notify] ", log.LstdFlags)
	}
	return &LogDelivery{logger: logger}
}

// Deliver 逐条打印通知。
func (d LogDelivery) Deliver(ctx context.Context, items []model.Notification) error {
	for _, n := range items {
		d.logger.Printf("notification %s -> %s [%s]: %s", n.Event, n.UserID, n.Priority, n.Title)
	}
	return nil
}
