package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestByteSizeUnmarshal 验证 ByteSize 支持从 YAML 文本解析（如 100MB、50GB）。
func TestByteSizeUnmarshal(t *testing.T) {
	var cfg struct {
		Size ByteSize `yaml:"size"`
		Disk ByteSize `yaml:"disk"`
	}
	if err := yaml.Unmarshal([]byte("size: 100MB\ndisk: 50GB\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Size.Int64() != 100*1024*1024 {
		t.Fatalf("got=%d", cfg.Size.Int64())
	}
	if cfg.Disk.Int64() != 50*1024*1024*1024 {
		t.Fatalf("got=%d", cfg.Disk.Int64())
	}
	if err := yaml.Unmarshal([]byte("size: lots\n"), &cfg); err == nil {
		t.Fatalf("expected error")
	}
}

// TestLoadMergesDefaults 验证配置文件只覆盖显式给出的字段，其余沿用默认值。
func TestLoadMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	raw := "agent:\n  port: 8882\n  poll_interval: 250ms\nrecording:\n  save_path: /data/sglx\n  min_free_space: 10GB\ncopy:\n  direct: false\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.Port != 8882 || cfg.Agent.PollInterval != 250*time.Millisecond {
		t.Fatalf("agent=%+v", cfg.Agent)
	}
	if cfg.Agent.ReadTimeout != 100*time.Millisecond || cfg.Agent.Network != "tcp" {
		t.Fatalf("defaults lost: %+v", cfg.Agent)
	}
	if cfg.Recording.SavePath != "/data/sglx" || cfg.Recording.MinFreeSpace.Int64() != 10*1024*1024*1024 {
		t.Fatalf("recording=%+v", cfg.Recording)
	}
	if cfg.Copy.Direct || cfg.Copy.SubFolder != "ephys" {
		t.Fatalf("copy=%+v", cfg.Copy)
	}
}

// TestValidateRejectsBadValues 覆盖端口、网络类型、压缩算法等非法取值。
func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"port":    func(c *Config) { c.Agent.Port = 0 },
		"network": func(c *Config) { c.Agent.Network = "udp" },
		"codec":   func(c *Config) { c.Compression.Codec = "brotli" },
		"save":    func(c *Config) { c.Recording.SavePath = " " },
		"driver":  func(c *Config) { c.Hardware.Driver = "nidaq" },
		"logfile": func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := Validate(&cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	cfg := DefaultConfig()
	cfg.Agent.Network = "SRT"
	if err := Validate(&cfg); err != nil || cfg.Agent.Network != "srt" {
		t.Fatalf("network normalise: %v %q", err, cfg.Agent.Network)
	}
}

// TestApplyEnv 验证环境变量覆盖规则（非法端口保持原值）。
func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SGLX_HOST":      "127.0.0.1",
		"SGLX_PORT":      "9000",
		"SGLX_SAVE_PATH": "/mnt/rec",
	}
	cfg := DefaultConfig()
	ApplyEnv(&cfg, func(k string) string { return env[k] })
	if cfg.Agent.Host != "127.0.0.1" || cfg.Agent.Port != 9000 || cfg.Recording.SavePath != "/mnt/rec" {
		t.Fatalf("cfg=%+v", cfg)
	}
	env["SGLX_PORT"] = "abc"
	ApplyEnv(&cfg, func(k string) string { return env[k] })
	if cfg.Agent.Port != 9000 {
		t.Fatalf("port=%d", cfg.Agent.Port)
	}
}

// TestByteSizeUnits 验证十进制写法按 1024 进位、IEC 写法与小数、以及日志输出格式。
func TestByteSizeUnits(t *testing.T) {
	cases := map[string]int64{
		"1024":   1024,
		"1024B":  1024,
		"4KB":    4 << 10,
		"1.5GiB": 3 << 29,
		"2 tb":   2 << 40,
	}
	for in, want := range cases {
		got, err := parseByteSize(in)
		if err != nil || got != want {
			t.Fatalf("%q: got=%d err=%v want=%d", in, got, err, want)
		}
	}
	if s := ByteSize(50 << 30).String(); s != "50 GiB" {
		t.Fatalf("string=%q", s)
	}
}
