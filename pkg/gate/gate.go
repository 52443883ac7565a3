// Package gate 校验并分类入站帧。
//
// 合法帧必须是 JSON 数组，且第一个元素为字符串（帧类型）。
// 校验通过时原样返回文本，不重新序列化，下游签名/哈希校验依赖原始字节。
package gate

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Reason 拒绝原因
type Reason string

const (
	ReasonNotString     Reason = "not a string"
	ReasonTooLarge      Reason = "exceeds maximum size"
	ReasonInvalidJSON   Reason = "not valid JSON"
	ReasonNotArray      Reason = "not a JSON array"
	ReasonEmptyArray    Reason = "empty array"
	ReasonHeadNotString Reason = "first element not a string"
	ReasonNone          Reason = ""
)

// Result 校验结果
type Result struct {
	Accepted bool
	Reason   Reason
	Payload  string
}

func reject(r Reason) Result {
	return Result{Reason: r}
}

// Validate 按顺序校验：类型、大小、JSON 语法、数组结构、非空、首元素为字符串
func Validate(raw any, maxSize int) Result {
	text, ok := raw.(string)
	if !ok {
		return reject(ReasonNotString)
	}
	if len(text) > maxSize {
		return reject(ReasonTooLarge)
	}
	if !json.Valid([]byte(text)) {
		return reject(ReasonInvalidJSON)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	tok, err := dec.Token()
	if err != nil {
		return reject(ReasonInvalidJSON)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return reject(ReasonNotArray)
	}

	tok, err = dec.Token()
	if err != nil {
		return reject(ReasonInvalidJSON)
	}
	if delim, ok := tok.(json.Delim); ok && delim == ']' {
		return reject(ReasonEmptyArray)
	}
	if _, ok := tok.(string); !ok {
		return reject(ReasonHeadNotString)
	}

	return Result{Accepted: true, Payload: text}
}

// ErrNotEnvelope 不是合法信封
var ErrNotEnvelope = errors.New("gate: payload is not a valid envelope")

// Discriminator 返回已通过校验的帧的类型（第一个元素）
func Discriminator(payload string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
		return "", ErrNotEnvelope
	}
	tok, err := dec.Token()
	if err != nil {
		return "", ErrNotEnvelope
	}
	head, ok := tok.(string)
	if !ok {
		return "", ErrNotEnvelope
	}
	return head, nil
}

// Elements 将信封拆分为原始元素（包含类型元素）
func Elements(payload string) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &elems); err != nil {
		return nil, ErrNotEnvelope
	}
	if len(elems) == 0 {
		return nil, ErrNotEnvelope
	}
	return elems, nil
}
