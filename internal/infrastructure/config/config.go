package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AppName is the canonical application name
const AppName = "smilecare"

// Config 应用配置
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	DomainQuery DomainQueryConfig `mapstructure:"domain_query" yaml:"domain_query"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`
	Chat        ChatConfig        `mapstructure:"chat" yaml:"chat"`
	Redis       RedisConfig       `mapstructure:"redis" yaml:"redis"`

	// Source 实际读取的配置文件, 用于热加载
	Source string `mapstructure:"-" yaml:"-"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Mode string `mapstructure:"mode" yaml:"mode"` // debug, release
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // sqlite, postgres, memory
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LLMConfig 推理服务配置
type LLMConfig struct {
	Type            string        `mapstructure:"type" yaml:"type"` // gemini, openai
	Model           string        `mapstructure:"model" yaml:"model"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`                   // 单次调用超时, 不重试
	BreakerFailures int           `mapstructure:"breaker_failures" yaml:"breaker_failures"` // 连续失败 N 次后熔断
	BreakerRecovery time.Duration `mapstructure:"breaker_recovery" yaml:"breaker_recovery"` // 熔断后多久尝试恢复
}

// DomainQueryConfig 领域查询服务配置, base_url 为空时使用内置演示数据
type DomainQueryConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AuthConfig JWT 配置
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

// ChatConfig 对话编排配置
type ChatConfig struct {
	HistoryLimit     int    `mapstructure:"history_limit" yaml:"history_limit"`           // 发送给模型的历史消息上限
	MaxFunctionCalls int    `mapstructure:"max_function_calls" yaml:"max_function_calls"` // 单轮函数调用上限
	TitleMaxRunes    int    `mapstructure:"title_max_runes" yaml:"title_max_runes"`
	ListLimit        int    `mapstructure:"list_limit" yaml:"list_limit"`
	PreviewRunes     int    `mapstructure:"preview_runes" yaml:"preview_runes"` // 拒绝日志中的预览长度
	ClinicName       string `mapstructure:"clinic_name" yaml:"clinic_name"`
}

// RedisConfig Redis 配置 (会话轮次锁)
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DB          int           `mapstructure:"db" yaml:"db"`
	TurnLockTTL time.Duration `mapstructure:"turn_lock_ttl" yaml:"turn_lock_ttl"`
}

// HomeDir returns the user's configuration home: ~/.smilecare
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Load 加载配置
//
// 优先级 (低 → 高): 默认值 → ~/.smilecare/config.yaml → ./config/config.yaml 或
// ./config.yaml → 环境变量 (SMILECARE_ 前缀)。configFile 非空时替代本地层。
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Layer 1: 全局配置
	v.AddConfigPath(HomeDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}
	source := v.ConfigFileUsed()

	// Layer 2: 项目本地配置, 只取第一个找到的
	candidates := []string{filepath.Join("./config", "config.yaml"), "config.yaml"}
	if configFile != "" {
		candidates = []string{configFile}
	}
	for _, localPath := range candidates {
		if _, err := os.Stat(localPath); err != nil {
			if configFile != "" {
				return nil, fmt.Errorf("config file %s: %w", configFile, err)
			}
			continue
		}
		local := viper.New()
		local.SetConfigFile(localPath)
		if err := local.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
		}
		if err := v.MergeConfigMap(local.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", localPath, err)
		}
		source = localPath
		break
	}

	// 环境变量覆盖, 如 SMILECARE_LLM_API_KEY
	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "smilecare.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.type", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.breaker_failures", 5)
	v.SetDefault("llm.breaker_recovery", "30s")

	v.SetDefault("domain_query.base_url", "")
	v.SetDefault("domain_query.api_key", "")
	v.SetDefault("domain_query.timeout", "10s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", AppName)

	v.SetDefault("chat.history_limit", 20)
	v.SetDefault("chat.max_function_calls", 5)
	v.SetDefault("chat.title_max_runes", 50)
	v.SetDefault("chat.list_limit", 20)
	v.SetDefault("chat.preview_runes", 100)
	v.SetDefault("chat.clinic_name", "SmileCare Dental Clinic")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.turn_lock_ttl", "60s")
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	switch c.LLM.Type {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported llm type: %s", c.LLM.Type)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.Chat.HistoryLimit <= 0 || c.Chat.MaxFunctionCalls <= 0 {
		return fmt.Errorf("chat.history_limit and chat.max_function_calls must be positive")
	}
	if c.Chat.ListLimit <= 0 || c.Chat.ListLimit > 50 {
		return fmt.Errorf("chat.list_limit must be between 1 and 50")
	}
	return nil
}

// Redacted 返回隐藏密钥后的副本
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.DomainQuery.APIKey = mask(c.DomainQuery.APIKey)
	c.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	c.Redis.Password = mask(c.Redis.Password)
	return c
}

// YAML 渲染有效配置 (密钥已隐藏)
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

// Watch 监听配置文件变化, 变更后重新加载并回调
//
// 只有日志级别这类可热更新的字段会被调用方应用, 其余字段需要重启。
func Watch(cfg *Config, logger *zap.Logger, onChange func(*Config)) {
	if cfg.Source == "" {
		return
	}
	v := viper.New()
	v.SetConfigFile(cfg.Source)
	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Config watch disabled", zap.String("file", cfg.Source), zap.Error(err))
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := Load(cfg.Source)
		if err != nil {
			logger.Warn("Config reload failed, keeping previous", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("Config reloaded", zap.String("file", e.Name))
		onChange(next)
	})
	v.WatchConfig()
}
