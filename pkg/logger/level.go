package logger

import "go.uber.org/zap/zapcore"

// Level 日志级别，与 zapcore.Level 取值一致
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	DPanicLevel
	PanicLevel
	FatalLevel
)

func (l Level) String() string {
	return l.toZapLevel().String()
}

func (l Level) toZapLevel() zapcore.Level {
	return zapcore.Level(l)
}

func fromZapLevel(level zapcore.Level) Level {
	return Level(level)
}

// ParseLevel 解析级别名称（debug/info/warn/error/...，大小写不敏感），空串为 info
func ParseLevel(s string) (Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return InfoLevel, err
	}
	return fromZapLevel(l), nil
}
