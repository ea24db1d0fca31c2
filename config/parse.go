package config

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize 是配置中的容量阈值，YAML 中写作 "50GB"、"100MB"、"1.5TiB" 或纯数字。
// KB/MB/GB/TB 按 1024 进位，与 KiB/MiB/GiB/TiB 等价。
type ByteSize int64

// Int64 返回字节数。
func (b ByteSize) Int64() int64 { return int64(b) }

// String 以 IEC 单位输出（日志用）。
func (b ByteSize) String() string { return humanize.IBytes(uint64(max(0, b))) }

// UnmarshalYAML 解析容量文本；空值视为 0。
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || strings.TrimSpace(value.Value) == "" {
		*b = 0
		return nil
	}
	n, err := parseByteSize(value.Value)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if m := decimalUnit.FindStringSubmatchIndex(s); m != nil {
		s = s[:m[2]] + "i" + s[m[2]:]
	}
	n, err := humanize.ParseBytes(s)
	if err != nil || n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return int64(n), nil
}

// decimalUnit 匹配不带 i 的 K/M/G/T/P 单位（如 "50GB"），改写为 IEC 单位再交给 humanize。
var decimalUnit = regexp.MustCompile(`(?i)[0-9.]\s*[kmgtp](b)$`)

// DefaultConfig 返回一份可用的默认配置（用于未提供配置文件或作为缺省值合并）。
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Host:         "0.0.0.0",
			Port:         8800,
			Network:      "tcp",
			PollInterval: 1 * time.Second,
			ReadTimeout:  100 * time.Millisecond,
			AcceptPoll:   100 * time.Millisecond,
			AutoRemote:   false,
		},
		Recording: RecordingConfig{
			SavePath:      "D:/SGL_DATA",
			MinFreeSpace:  ByteSize(50 * 1024 * 1024 * 1024),
			FailOnLowDisk: false,
		},
		Copy: CopyConfig{
			Direct:            true,
			Colocated:         true,
			SubFolder:         "ephys",
			KeepFailed:        false,
			CopyAfterCompress: false,
		},
		Compression: CompressionConfig{
			Codec: "zstd",
			Level: 3,
		},
		Hardware: HardwareConfig{
			Driver: "sim",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "console",
			FilePath: "logs/sglx-agent.log",
			MaxSize:  ByteSize(100 * 1024 * 1024),
			MaxAge:   7,
			Compress: true,
		},
	}
}
