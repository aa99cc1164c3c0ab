// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// Enabled 为 false 时评审缓存退化为进程内缓存，且不写演化快照
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`

	// 各阶段使用的 provider，留空时使用 DefaultProvider
	DesignProvider string `yaml:"design_provider" mapstructure:"design_provider"`
	CodeProvider   string `yaml:"code_provider" mapstructure:"code_provider"`
	VisionProvider string `yaml:"vision_provider" mapstructure:"vision_provider"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ResolveProvider 解析阶段 provider 名称，未配置时回退到默认 provider
func (c LLMConfig) ResolveProvider(name string) string {
	if name != "" {
		return name
	}
	return c.DefaultProvider
}

// GenerationConfig 动画生成引擎配置
type GenerationConfig struct {
	// FPS 默认帧率（8/24/50）
	FPS int `yaml:"fps" mapstructure:"fps"`
	// Workers 采样阶段并发上限
	Workers int `yaml:"workers" mapstructure:"workers"`
	// ProbeFrame 候选过滤使用的探测帧，-1 表示中间帧
	ProbeFrame int `yaml:"probe_frame" mapstructure:"probe_frame"`
	// CritiqueFrames 每个视角渲染的代表帧数量
	CritiqueFrames int `yaml:"critique_frames" mapstructure:"critique_frames"`

	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" mapstructure:"synthesis_timeout"`
	CritiqueTimeout  time.Duration `yaml:"critique_timeout" mapstructure:"critique_timeout"`
	CritiqueCacheTTL time.Duration `yaml:"critique_cache_ttl" mapstructure:"critique_cache_ttl"`
	SnapshotTTL      time.Duration `yaml:"snapshot_ttl" mapstructure:"snapshot_ttl"`

	Sandbox SandboxConfig `yaml:"sandbox" mapstructure:"sandbox"`
	Render  RenderConfig  `yaml:"render" mapstructure:"render"`

	// DemoScenePoints 未提供场景时生成的演示球体点数
	DemoScenePoints int `yaml:"demo_scene_points" mapstructure:"demo_scene_points"`
}

// SandboxConfig 沙箱限制
type SandboxConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxStatements int           `yaml:"max_statements" mapstructure:"max_statements"`
	MaxNodes      int           `yaml:"max_nodes" mapstructure:"max_nodes"`
	MaxDepth      int           `yaml:"max_depth" mapstructure:"max_depth"`
	MaxSourceLen  int           `yaml:"max_source_len" mapstructure:"max_source_len"`
}

// RenderConfig 预览渲染配置
type RenderConfig struct {
	Width     int     `yaml:"width" mapstructure:"width"`
	Height    int     `yaml:"height" mapstructure:"height"`
	PointSize int     `yaml:"point_size" mapstructure:"point_size"`
	Zoom      float64 `yaml:"zoom" mapstructure:"zoom"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig 生成类接口限流配置（依赖 Redis）
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int           `yaml:"limit" mapstructure:"limit"`
	Window  time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// Validate 校验加载后的配置
func (c *Config) Validate() error {
	if c.Server.HTTP.Port <= 0 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("server.http.port out of range: %d", c.Server.HTTP.Port)
	}
	switch c.Generation.FPS {
	case 8, 24, 50:
	default:
		return fmt.Errorf("generation.fps must be 8, 24 or 50, got %d", c.Generation.FPS)
	}
	if c.Generation.Workers < 1 {
		return fmt.Errorf("generation.workers must be >= 1, got %d", c.Generation.Workers)
	}
	if r := c.Observability.Tracing.SampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.tracing.sample_rate must be within [0, 1], got %v", r)
	}
	if rl := c.Security.RateLimit; rl.Enabled && (rl.Limit <= 0 || rl.Window <= 0) {
		return fmt.Errorf("security.rate_limit needs positive limit and window when enabled")
	}
	for _, name := range []string{c.LLM.DesignProvider, c.LLM.CodeProvider, c.LLM.VisionProvider} {
		if name == "" {
			continue
		}
		if _, ok := c.LLM.Providers[name]; !ok {
			return fmt.Errorf("llm stage provider %q is not defined under llm.providers", name)
		}
	}
	return nil
}
