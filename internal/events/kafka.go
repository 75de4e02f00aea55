package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ConsorcioSync/internal/model"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// messageWriter kafka.Writer 的最小子集
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 以 run_id 作为消息key，保证同一次运行的事件有序
type KafkaPublisher struct {
	writer messageWriter
	logger *logrus.Logger
}

func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration, logger *logrus.Logger) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           timeout,
			ReadTimeout:            timeout,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, env model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	var detail struct {
		RunID string `json:"run_id"`
	}
	if len(env.Detail) > 0 {
		if err := json.Unmarshal(env.Detail, &detail); err != nil {
			p.logger.WithError(err).WithField("event_id", env.ID).Debug("解析事件detail失败，使用事件ID作为消息key")
		}
	}
	key := detail.RunID
	if key == "" {
		key = env.ID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  env.Time,
		Headers: []kafka.Header{
			{Key: "detail_type", Value: []byte(env.DetailType)},
			{Key: "source", Value: []byte(env.Source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka发布事件失败: %w", err)
	}
	p.logger.WithFields(logrus.Fields{"event_id": env.ID, "detail_type": env.DetailType}).Info("完成事件已发布到kafka")
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
