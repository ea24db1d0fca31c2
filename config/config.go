package config

import "time"

type Config struct {
	Agent       AgentConfig       `yaml:"agent"`
	Recording   RecordingConfig   `yaml:"recording"`
	Copy        CopyConfig        `yaml:"copy"`
	Compression CompressionConfig `yaml:"compression"`
	Hardware    HardwareConfig    `yaml:"hardware"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type AgentConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Network      string        `yaml:"network"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	AcceptPoll   time.Duration `yaml:"accept_poll"`
	AutoRemote   bool          `yaml:"auto_remote"`
}

type RecordingConfig struct {
	SavePath      string   `yaml:"save_path"`
	MinFreeSpace  ByteSize `yaml:"min_free_space"`
	FailOnLowDisk bool     `yaml:"fail_on_low_disk"`
}

type CopyConfig struct {
	Direct            bool   `yaml:"direct"`
	Colocated         bool   `yaml:"colocated"`
	SubFolder         string `yaml:"subfolder"`
	KeepFailed        bool   `yaml:"keep_failed"`
	CopyAfterCompress bool   `yaml:"copy_after_compress"`
	QueueFile         string `yaml:"queue_file"`
}

type CompressionConfig struct {
	Codec string `yaml:"codec"`
	Level int    `yaml:"level"`
}

type HardwareConfig struct {
	Driver string `yaml:"driver"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level    string   `yaml:"level"`
	Format   string   `yaml:"format"`
	Output   string   `yaml:"output"`
	FilePath string   `yaml:"file_path"`
	MaxSize  ByteSize `yaml:"max_size"`
	MaxAge   int      `yaml:"max_age"`
	Compress bool     `yaml:"compress"`
}
