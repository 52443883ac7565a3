package ws

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

// FrameType 控制帧类型
type FrameType string

const (
	// FrameConnected 连接建立后下发，携带连接 ID
	FrameConnected FrameType = "CONNECTED"
	// FrameError 入站帧被拒绝时下发
	FrameError FrameType = "ERROR"
)

// CodeInvalidFormat 入站帧格式错误码
const CodeInvalidFormat = "INVALID_FORMAT"

// 关闭码
const (
	CloseCapacity = websocket.CloseTryAgainLater     // 1013
	CloseTimeout  = websocket.CloseNormalClosure     // 1000
	CloseShutdown = websocket.CloseGoingAway         // 1001
	CloseInternal = websocket.CloseInternalServerErr // 1011
)

// 关闭原因
const (
	closeReasonCapacity = "Maximum connections reached"
	closeReasonShutdown = "Server shutting down"
	closeReasonInternal = "Internal error"
)

// maxEchoSize ERROR 帧回显原始数据的上限
const maxEchoSize = 1024

// ControlFrame 服务端下发的控制帧
type ControlFrame struct {
	Type    FrameType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// ConnectedPayload CONNECTED 帧负载
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// ErrorPayload ERROR 帧负载
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewConnectedFrame 创建 CONNECTED 帧
func NewConnectedFrame(connectionID string) ControlFrame {
	return ControlFrame{
		Type:    FrameConnected,
		Payload: ConnectedPayload{ConnectionID: connectionID},
	}
}

// NewErrorFrame 创建 ERROR 帧，message 超长时截断
func NewErrorFrame(reason, message, code string) ControlFrame {
	if len(message) > maxEchoSize {
		message = message[:maxEchoSize]
	}
	return ControlFrame{
		Type: FrameError,
		Payload: ErrorPayload{
			Error:   reason,
			Message: message,
			Code:    code,
		},
	}
}

// Encode 序列化为文本帧
func (f ControlFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// encodeMessage 广播消息序列化，字符串和字节切片原样发送
func encodeMessage(msg any) ([]byte, error) {
	switch v := msg.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
