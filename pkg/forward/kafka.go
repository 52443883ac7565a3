package forward

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	relayerrors "github.com/tokmz/relay/pkg/errors"
)

// KafkaConfig Kafka 发布配置
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers" yaml:"brokers"`
	Topic    string   `mapstructure:"topic" yaml:"topic"`
	ClientID string   `mapstructure:"client_id" yaml:"client_id"`
}

// KafkaPublisher 同步生产者，以连接 ID 为消息键保证单连接有序
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher 使用已有生产者
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// DialKafka 创建同步生产者
func DialKafka(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, relayerrors.ErrInvalidConfig.WithMessage("forward: kafka brokers and topic are required")
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("forward: kafka producer: %w", err)
	}
	return NewKafkaPublisher(producer, cfg.Topic), nil
}

// Publish sarama 同步发送不接受 ctx，超时由生产者配置控制
func (p *KafkaPublisher) Publish(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(rec.Key),
		Value:     sarama.ByteEncoder(rec.Payload),
		Timestamp: rec.Timestamp,
	})
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
