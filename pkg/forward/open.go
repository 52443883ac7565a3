package forward

import (
	"context"
	"fmt"
	"time"

	relayerrors "github.com/tokmz/relay/pkg/errors"
)

// 后端类型
const (
	BackendNone  = ""
	BackendRedis = "redis"
	BackendKafka = "kafka"
	BackendAMQP  = "amqp"
	BackendNATS  = "nats"
)

// Config 转发配置
type Config struct {
	Backend        string        `mapstructure:"backend" yaml:"backend"`
	QueueSize      int           `mapstructure:"queue_size" yaml:"queue_size"`
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
	AMQP  AMQPConfig  `mapstructure:"amqp" yaml:"amqp"`
	NATS  NATSConfig  `mapstructure:"nats" yaml:"nats"`
}

// Open 按配置创建 Publisher，Backend 为空时返回 nil
func Open(ctx context.Context, cfg Config) (Publisher, error) {
	var (
		pub Publisher
		err error
	)
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendRedis:
		pub, err = DialRedis(ctx, cfg.Redis)
	case BackendKafka:
		pub, err = DialKafka(cfg.Kafka)
	case BackendAMQP:
		pub, err = DialAMQP(cfg.AMQP)
	case BackendNATS:
		pub, err = DialNATS(cfg.NATS)
	default:
		return nil, relayerrors.ErrInvalidConfig.WithMessage(fmt.Sprintf("forward: unknown backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, err
	}
	return pub, nil
}
