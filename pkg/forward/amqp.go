package forward

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	relayerrors "github.com/tokmz/relay/pkg/errors"
)

// AMQPConfig AMQP 发布配置
type AMQPConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	Exchange   string `mapstructure:"exchange" yaml:"exchange"`
	RoutingKey string `mapstructure:"routing_key" yaml:"routing_key"`
}

// amqpChannel AMQPPublisher 依赖的最小接口
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher 发布到 AMQP 交换机
type AMQPPublisher struct {
	conn       *amqp.Connection
	ch         amqpChannel
	exchange   string
	routingKey string
}

// DialAMQP 建立连接、打开通道并声明 topic 交换机
func DialAMQP(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" || cfg.Exchange == "" {
		return nil, relayerrors.ErrInvalidConfig.WithMessage("forward: amqp url and exchange are required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("forward: amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("forward: amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("forward: amqp declare exchange: %w", err)
	}

	return &AMQPPublisher{
		conn:       conn,
		ch:         ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, rec Record) error {
	return p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    rec.Key,
		Timestamp:    rec.Timestamp,
		Body:         rec.Payload,
	})
}

func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
