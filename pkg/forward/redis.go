package forward

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	relayerrors "github.com/tokmz/relay/pkg/errors"
)

// RedisMode Redis 模式
type RedisMode string

const (
	RedisStandalone RedisMode = "standalone"
	RedisCluster    RedisMode = "cluster"
	RedisSentinel   RedisMode = "sentinel"
)

// RedisConfig Redis 发布配置
type RedisConfig struct {
	Mode         RedisMode     `mapstructure:"mode" yaml:"mode"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`   // 单机地址
	Addrs        []string      `mapstructure:"addrs" yaml:"addrs"` // 集群/哨兵地址
	MasterName   string        `mapstructure:"master_name" yaml:"master_name"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	Channel      string        `mapstructure:"channel" yaml:"channel"` // 发布频道
}

// redisClient RedisPublisher 依赖的最小接口
type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher 通过 Redis PUBLISH 转发
type RedisPublisher struct {
	client  redisClient
	channel string
}

// NewRedisPublisher 使用已有客户端
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// DialRedis 按模式创建客户端并检查连通性
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Channel == "" {
		return nil, relayerrors.ErrInvalidConfig.WithMessage("forward: redis channel is required")
	}

	var client redis.UniversalClient
	switch cfg.Mode {
	case RedisStandalone, "":
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	case RedisCluster:
		if len(cfg.Addrs) == 0 {
			return nil, relayerrors.ErrInvalidConfig.WithMessage("forward: redis cluster mode requires addrs")
		}
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Username:     cfg.Username,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	case RedisSentinel:
		if len(cfg.Addrs) == 0 || cfg.MasterName == "" {
			return nil, relayerrors.ErrInvalidConfig.WithMessage("forward: redis sentinel mode requires addrs and master name")
		}
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.Addrs,
			Username:      cfg.Username,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
			DialTimeout:   cfg.DialTimeout,
			WriteTimeout:  cfg.WriteTimeout,
		})
	default:
		return nil, relayerrors.ErrInvalidConfig.WithMessage(fmt.Sprintf("forward: unsupported redis mode: %s", cfg.Mode))
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("forward: redis ping: %w", err)
	}
	return NewRedisPublisher(client, cfg.Channel), nil
}

func (p *RedisPublisher) Publish(ctx context.Context, rec Record) error {
	return p.client.Publish(ctx, p.channel, rec.Payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
