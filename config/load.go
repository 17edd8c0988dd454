package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"switch-pricer/graph"
	"switch-pricer/infrastructure/logger"
	"switch-pricer/metrics"
	"switch-pricer/pricing"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string         `yaml:"env"`
	Log         logger.Config  `yaml:"log"`
	Metrics     metrics.Config `yaml:"metrics"`
	Pricing     PricingConfig  `yaml:"pricing"`
	Instruments []graph.Spec   `yaml:"instruments"`
}

// PricingConfig 定价引擎参数
type PricingConfig struct {
	CacheMode string `yaml:"cacheMode"` // metric | path | off
}

// Default 返回参考拓扑（3YR/5YR/7YR 及三个价差）与默认日志、指标配置。
func Default() AppConfig {
	return AppConfig{
		Env:         "dev",
		Log:         logger.DefaultConfig(),
		Metrics:     metrics.DefaultConfig(),
		Pricing:     PricingConfig{CacheMode: string(pricing.CacheByPath)},
		Instruments: graph.Reference(),
	}
}

// Load reads YAML config from path on top of Default() and applies validation.
// A config that lists instruments replaces the reference topology entirely.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, Validate(cfg)
}

// ApplyEnv 用环境变量覆盖日志级别、指标地址与缓存模式。
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv("PRICER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PRICER_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("PRICER_CACHE_MODE"); v != "" {
		cfg.Pricing.CacheMode = v
	}
}

// Validate ensures required fields are present and the topology is consistent.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := pricing.ParseCacheMode(cfg.Pricing.CacheMode); err != nil {
		return fmt.Errorf("pricing.cacheMode: %w", err)
	}
	if len(cfg.Instruments) == 0 {
		return errors.New("instruments config is required")
	}
	if _, err := graph.Build(cfg.Instruments); err != nil {
		return fmt.Errorf("instruments: %w", err)
	}
	return nil
}

// CacheMode 解析后的缓存模式
func (c AppConfig) CacheMode() pricing.CacheMode {
	m, err := pricing.ParseCacheMode(c.Pricing.CacheMode)
	if err != nil {
		return pricing.CacheByPath
	}
	return m
}

// BuildGraph 按配置注册全部合约并校验引用关系。
func (c AppConfig) BuildGraph() (*graph.Graph, error) {
	return graph.Build(c.Instruments)
}
