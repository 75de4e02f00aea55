package service

import (
	"context"
	"time"

	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/events"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/model"

	"github.com/sirupsen/logrus"
)

// Notifier 发布作业完成事件；发布失败只上报，不回滚已提交的数据
type Notifier struct {
	publisher interfaces.Publisher
	cfg       config.EventsConfig
	logger    *logrus.Logger
}

func NewNotifier(publisher interfaces.Publisher, cfg config.EventsConfig, logger *logrus.Logger) *Notifier {
	return &Notifier{publisher: publisher, cfg: cfg, logger: logger}
}

// Completed 发布完成事件；busName 为空时使用配置中的事件总线
func (n *Notifier) Completed(ctx context.Context, detailType, busName string, detail model.CompletionDetail, now time.Time) error {
	if busName == "" {
		busName = n.cfg.EventBusName
	}
	env, err := events.NewEnvelope(n.cfg.Source, detailType, busName, detail, now)
	if err != nil {
		return err
	}
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(n.cfg.Timeout)*time.Second)
		defer cancel()
	}
	if err := n.publisher.Publish(ctx, env); err != nil {
		return err
	}
	n.logger.WithFields(logrus.Fields{
		"run_id":      detail.RunID,
		"event_id":    env.ID,
		"detail_type": detailType,
		"status":      detail.Status,
	}).Info("完成事件已发布")
	return nil
}
