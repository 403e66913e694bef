package config

import (
	"fmt"
	"strings"
	"time"

	"projectflow/pkg/config"
)

// OutboxConfig outbox dispatcher 配置
type OutboxConfig struct {
	MaxRetries int `yaml:"max_retries"`
	IntervalMS int `yaml:"interval_ms"`
}

// Interval 扫描间隔，默认 1 秒
func (c OutboxConfig) Interval() time.Duration {
	if c.IntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// NotifierConfig notifier 进程配置
type NotifierConfig struct {
	Queue       string `yaml:"queue"`
	HealthPort  string `yaml:"health_port"`
	DedupTTLSec int    `yaml:"dedup_ttl_seconds"`
}

func (c NotifierConfig) DedupTTL() time.Duration {
	if c.DedupTTLSec <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.DedupTTLSec) * time.Second
}

type Config struct {
	DB       config.DBConfig     `yaml:"db"`
	MQ       config.MQConfig     `yaml:"mq"`
	Redis    config.RedisConfig  `yaml:"redis"`
	JWT      config.JWTConfig    `yaml:"jwt"`
	Server   config.ServerConfig `yaml:"server"`
	AI       config.AIConfig     `yaml:"ai"`
	Log      config.LogConfig    `yaml:"log"`
	Outbox   OutboxConfig        `yaml:"outbox"`
	Notifier NotifierConfig      `yaml:"notifier"`
}

// Load 读取 CONFIG_DIR 下 base.yaml 与 CONFIG_ENV 对应文件，再用环境变量覆盖
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	dir := config.GetEnv("CONFIG_DIR", "config")
	return LoadFrom(env, dir)
}

func LoadFrom(env, dir string) (*Config, error) {
	var cfg Config
	if err := config.Load(env, dir, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideAIFromEnv(&cfg.AI)

	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Notifier.Queue == "" {
		cfg.Notifier.Queue = "notification.created.q"
	}
	if cfg.Notifier.HealthPort == "" {
		cfg.Notifier.HealthPort = ":8085"
	}
	if cfg.Outbox.MaxRetries <= 0 {
		cfg.Outbox.MaxRetries = 5
	}
	// 未替换的占位符视为未配置
	if cfg.JWT.Secret == "" || strings.Contains(cfg.JWT.Secret, "${") {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	return &cfg, nil
}
