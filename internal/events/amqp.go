package events

import (
	"context"
	"encoding/json"
	"fmt"

	"ConsorcioSync/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQPPublisher 发布到 topic exchange，routing key 为 detail_type
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *logrus.Logger
}

func NewAMQPPublisher(url, exchange string, logger *logrus.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		return nil, fmt.Errorf("amqp发布器需要配置exchange")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("打开RabbitMQ channel失败: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("声明exchange %s失败: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, env model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, env.DetailType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.Time,
		Type:         env.DetailType,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("RabbitMQ发布事件失败: %w", err)
	}
	p.logger.WithFields(logrus.Fields{"event_id": env.ID, "detail_type": env.DetailType}).Info("完成事件已发布到RabbitMQ")
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.logger.WithError(err).Warn("关闭RabbitMQ channel失败")
	}
	return p.conn.Close()
}
