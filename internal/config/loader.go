// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load 从 configs 目录加载配置
// 优先级从低到高：内置默认值、config.yaml、config.{APP_ENV}.yaml、环境变量
func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom 从指定目录加载配置
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	// 环境配置覆盖基础配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 环境变量最后覆盖，generation.fps 对应 GENERATION_FPS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (env=%s): %w", env, err)
	}
	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// 执行环境变量替换
	expanded := expandEnv(string(content))

	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，防止后续 ReadInConfig 报错
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

var envPlaceholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPlaceholder.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		// 保留原样以便识别未定义的变量
		return match
	})
}

// defaults 配置文件与环境变量都未给出时的取值
var defaults = map[string]any{
	"app.name":    "splat-anim-ai",
	"app.version": "v0.0.0",
	"app.env":     "development",

	"server.http.host":         "0.0.0.0",
	"server.http.port":         8080,
	"server.http.read_timeout": "30s",
	// 生成请求会同步等待整个采样与改进流程
	"server.http.write_timeout": "15m",
	"server.http.idle_timeout":  "120s",

	"cache.redis.enabled":        false,
	"cache.redis.host":           "localhost",
	"cache.redis.port":           6379,
	"cache.redis.db":             0,
	"cache.redis.pool_size":      20,
	"cache.redis.min_idle_conns": 2,
	"cache.redis.dial_timeout":   "5s",
	"cache.redis.read_timeout":   "3s",
	"cache.redis.write_timeout":  "3s",
	"cache.redis.key_prefix":     "splat_anim",

	"llm.default_provider": "openai",

	"generation.fps":                    24,
	"generation.workers":                4,
	"generation.probe_frame":            -1,
	"generation.critique_frames":        3,
	"generation.synthesis_timeout":      "3m",
	"generation.critique_timeout":       "3m",
	"generation.critique_cache_ttl":     "24h",
	"generation.snapshot_ttl":           "168h",
	"generation.sandbox.timeout":        "2s",
	"generation.sandbox.max_statements": 64,
	"generation.sandbox.max_nodes":      2048,
	"generation.sandbox.max_depth":      48,
	"generation.sandbox.max_source_len": 8192,
	"generation.render.width":           256,
	"generation.render.height":          256,
	"generation.render.point_size":      2,
	"generation.render.zoom":            1.0,
	"generation.demo_scene_points":      2000,

	"observability.logging.level":       "info",
	"observability.logging.format":      "json",
	"observability.tracing.enabled":     false,
	"observability.tracing.endpoint":    "localhost:4317",
	"observability.tracing.sample_rate": 1.0,
	"observability.metrics.enabled":     true,
	"observability.metrics.path":        "/metrics",

	"security.rate_limit.enabled": false,
	"security.rate_limit.limit":   30,
	"security.rate_limit.window":  "1m",
}

func setDefaults(v *viper.Viper) {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}
