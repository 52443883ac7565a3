package tracing

import (
	"time"

	relayerrors "github.com/tokmz/relay/pkg/errors"
)

// 导出器类型
const (
	ExporterOTLPHTTP = "otlp"      // OTLP over HTTP
	ExporterOTLPGRPC = "otlp-grpc" // OTLP over gRPC
	ExporterStdout   = "stdout"
	ExporterNoop     = "noop"
)

// Config 链路追踪配置
type Config struct {
	// 服务名称（必填）
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// 服务版本
	ServiceVersion string `mapstructure:"service_version" yaml:"service_version"`

	// 环境（dev/staging/prod）
	Environment string `mapstructure:"environment" yaml:"environment"`

	// 导出器类型（otlp/otlp-grpc/stdout/noop）
	ExporterType string `mapstructure:"exporter" yaml:"exporter"`

	// 导出器端点（如 OTLP Collector 地址）
	ExporterEndpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// 导出器请求头（用于认证）
	ExporterHeaders map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`

	// 是否使用非 TLS 连接
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// 采样率（0.0-1.0）
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`

	// 采样类型（always/never/ratio/parent_based）
	SamplingType string `mapstructure:"sampling_type" yaml:"sampling_type"`

	// 是否启用
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// 资源属性（自定义标签）
	ResourceAttributes map[string]string `mapstructure:"resource_attributes" yaml:"resource_attributes,omitempty"`

	// 批处理配置
	BatchTimeout       time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size" yaml:"max_export_batch_size"`
	MaxQueueSize       int           `mapstructure:"max_queue_size" yaml:"max_queue_size"`
}

// DefaultConfig 返回默认配置（默认关闭）
func DefaultConfig() *Config {
	return &Config{
		ServiceName:        "relay",
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		ExporterType:       ExporterNoop,
		SamplingRate:       1.0,
		SamplingType:       "parent_based",
		ResourceAttributes: make(map[string]string),
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return relayerrors.ErrInvalidConfig.WithMessage("tracing: service name is required")
	}

	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return relayerrors.ErrInvalidConfig.WithMessage("tracing: sampling rate must be between 0.0 and 1.0")
	}

	switch c.ExporterType {
	case ExporterOTLPHTTP, ExporterOTLPGRPC, ExporterStdout, ExporterNoop:
	default:
		return relayerrors.ErrInvalidConfig.WithMessage("tracing: invalid exporter type: " + c.ExporterType)
	}

	return nil
}
