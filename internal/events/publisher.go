// Package events 发布作业完成事件：kafka、RabbitMQ topic exchange 或仅写日志。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewEnvelope 构造事件信封
func NewEnvelope(source, detailType, busName string, detail any, now time.Time) (model.Envelope, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return model.Envelope{}, fmt.Errorf("序列化事件detail失败: %w", err)
	}
	return model.Envelope{
		ID:           uuid.New().String(),
		Source:       source,
		DetailType:   detailType,
		Detail:       raw,
		EventBusName: busName,
		Time:         now,
	}, nil
}

// New 按配置创建发布器
func New(cfg config.EventsConfig, logger *logrus.Logger) (interfaces.Publisher, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "kafka":
		if len(cfg.Brokers) == 0 || cfg.Topic == "" {
			return nil, fmt.Errorf("kafka发布器需要配置brokers与topic")
		}
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic, time.Duration(cfg.Timeout)*time.Second, logger), nil
	case "amqp", "rabbitmq":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	default:
		return nil, fmt.Errorf("不支持的事件后端: %s", cfg.Backend)
	}
}

// LogPublisher 只写日志（本地运行与测试）
type LogPublisher struct {
	logger *logrus.Logger
}

func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, env model.Envelope) error {
	p.logger.WithFields(logrus.Fields{
		"event_id":       env.ID,
		"source":         env.Source,
		"detail_type":    env.DetailType,
		"event_bus_name": env.EventBusName,
		"detail":         string(env.Detail),
	}).Info("完成事件")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
