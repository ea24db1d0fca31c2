package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load 从 YAML 文件读取并解析配置，并做基础校验与默认值补齐。
// 参数：
// - path: 配置文件路径
// 返回：
// - Config: 合并默认值后的配置
// - error: 读取/解析/校验失败原因
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal yaml: %w", err)
	}
	ApplyEnv(&cfg, os.Getenv)
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv 用环境变量覆盖部分配置项（SGLX_HOST/SGLX_PORT/SGLX_SAVE_PATH/SGLX_LOG_LEVEL）。
// 参数：
// - cfg: 待覆盖配置
// - getenv: 环境变量读取函数（测试中可替换）
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv("SGLX_HOST")); v != "" {
		cfg.Agent.Host = v
	}
	if v := strings.TrimSpace(getenv("SGLX_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Agent.Port = p
		}
	}
	if v := strings.TrimSpace(getenv("SGLX_SAVE_PATH")); v != "" {
		cfg.Recording.SavePath = v
	}
	if v := strings.TrimSpace(getenv("SGLX_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate 校验配置字段合法性，并补齐可推导的缺省值。
// 参数：
// - cfg: 待校验配置
// 返回：
// - error: 校验失败原因
func Validate(cfg *Config) error {
	if cfg.Agent.Port <= 0 || cfg.Agent.Port > 65535 {
		return fmt.Errorf("invalid agent.port: %d", cfg.Agent.Port)
	}
	switch strings.ToLower(cfg.Agent.Network) {
	case "", "tcp":
		cfg.Agent.Network = "tcp"
	case "srt":
		cfg.Agent.Network = "srt"
	default:
		return fmt.Errorf("invalid agent.network: %q", cfg.Agent.Network)
	}
	if cfg.Agent.PollInterval < 0 {
		return fmt.Errorf("invalid agent.poll_interval: %s", cfg.Agent.PollInterval)
	}
	if cfg.Agent.ReadTimeout <= 0 {
		return fmt.Errorf("invalid agent.read_timeout: %s", cfg.Agent.ReadTimeout)
	}
	if cfg.Agent.AcceptPoll <= 0 {
		return fmt.Errorf("invalid agent.accept_poll: %s", cfg.Agent.AcceptPoll)
	}
	if strings.TrimSpace(cfg.Recording.SavePath) == "" {
		return fmt.Errorf("recording.save_path is required")
	}
	if cfg.Recording.MinFreeSpace < 0 {
		return fmt.Errorf("invalid recording.min_free_space: %d", cfg.Recording.MinFreeSpace)
	}
	switch strings.ToLower(cfg.Compression.Codec) {
	case "", "zstd":
		cfg.Compression.Codec = "zstd"
	case "lz4":
		cfg.Compression.Codec = "lz4"
	default:
		return fmt.Errorf("invalid compression.codec: %q", cfg.Compression.Codec)
	}
	if cfg.Hardware.Driver == "" {
		cfg.Hardware.Driver = "sim"
	}
	if cfg.Hardware.Driver != "sim" {
		return fmt.Errorf("unsupported hardware.driver: %q", cfg.Hardware.Driver)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "console"
	}
	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output=file")
	}
	return nil
}
