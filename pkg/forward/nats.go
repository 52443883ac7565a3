package forward

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	relayerrors "github.com/tokmz/relay/pkg/errors"
)

// NATSConfig NATS 发布配置
type NATSConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// HeaderConnectionID NATS 消息头中的连接 ID
const HeaderConnectionID = "Relay-Connection-Id"

// natsConn NATSPublisher 依赖的最小接口
type natsConn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NATSPublisher 发布到 NATS 主题
type NATSPublisher struct {
	conn    natsConn
	subject string
}

// DialNATS 连接 NATS，断线自动重连
func DialNATS(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" || cfg.Subject == "" {
		return nil, relayerrors.ErrInvalidConfig.WithMessage("forward: nats url and subject are required")
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("relay-forwarder"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("forward: nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, subject: cfg.Subject}, nil
}

// Publish 核心 NATS 发布为异步，ctx 仅用于提前放弃
func (p *NATSPublisher) Publish(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(p.subject)
	msg.Header.Set(HeaderConnectionID, rec.Key)
	msg.Data = rec.Payload
	return p.conn.PublishMsg(msg)
}

// Close 排空未发送的消息后关闭连接
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
