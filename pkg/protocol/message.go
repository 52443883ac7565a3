// Package protocol 按判别符（数组首元素）将已通过校验的消息分发给处理器。
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tokmz/relay/pkg/gate"
)

// Message 已通过校验的入站消息
type Message struct {
	ConnectionID string
	Type         string            // 判别符
	Elements     []json.RawMessage // 判别符之后的元素
	Raw          string
	ReceivedAt   time.Time
}

// Parse 解析已通过校验的消息文本
func Parse(connectionID, raw string, receivedAt time.Time) (*Message, error) {
	elems, err := gate.Elements(raw)
	if err != nil {
		return nil, err
	}

	var kind string
	if err := json.Unmarshal(elems[0], &kind); err != nil {
		return nil, fmt.Errorf("%w: %v", gate.ErrNotEnvelope, err)
	}

	return &Message{
		ConnectionID: connectionID,
		Type:         kind,
		Elements:     elems[1:],
		Raw:          raw,
		ReceivedAt:   receivedAt,
	}, nil
}

// Decode 将第 i 个参数（不含判别符）解码到 v
func (m *Message) Decode(i int, v any) error {
	if i < 0 || i >= len(m.Elements) {
		return fmt.Errorf("%w: %s has %d arguments, want index %d", ErrMissingArgument, m.Type, len(m.Elements), i)
	}
	if err := json.Unmarshal(m.Elements[i], v); err != nil {
		return fmt.Errorf("%s argument %d: %w", m.Type, i, err)
	}
	return nil
}
