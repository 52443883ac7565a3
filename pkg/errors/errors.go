package errors

import "errors"

// Kind 错误分类
type Kind string

const (
	// KindCapacity 连接数达到上限，拒绝注册
	KindCapacity Kind = "capacity"
	// KindValidation 入站帧格式或大小非法
	KindValidation Kind = "validation"
	// KindTransport 单个连接的收发失败
	KindTransport Kind = "transport"
	// KindStartup 监听启动失败
	KindStartup Kind = "startup"
	// KindConfig 配置错误
	KindConfig Kind = "config"
)

type Error struct {
	Kind    Kind   `json:"-"`       // 错误分类
	Code    string `json:"code"`    // 稳定错误码（对外可见）
	Message string `json:"message"` // 错误信息
	Err     error  `json:"-"`       // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建新的错误
func New(kind Kind, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WithError 添加原始错误（返回新实例，不修改原错误）
func (e *Error) WithError(err error) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// WithMessage 替换错误信息（返回新实例，不修改原错误）
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// Is 检查错误是否为指定类型
// 当 target 也是 *Error 时，比较 Code 是否相同
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Err, target)
}

// KindOf 返回错误链中第一个 *Error 的分类，没有则返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As 转换为指定类型的错误
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 检查错误是否为指定类型
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// Join 合并多个错误
func Join(errs ...error) error {
	return errors.Join(errs...)
}
