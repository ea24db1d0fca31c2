package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"sglx-remote/config"
	"sglx-remote/fsops"
	"sglx-remote/hardware"
	sglog "sglx-remote/log"
	"sglx-remote/metrics"
	"sglx-remote/remote"
	"sglx-remote/session"
	"sglx-remote/transport"
)

const Version = "0.3"

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("sglx-agent", pflag.ContinueOnError)
	flagSet.SetOutput(os.Stdout)
	configPath := flagSet.String("config_path", defaultConfigPath, "配置文件路径（YAML）。如果是目录，则默认读取该目录下的 config.yaml")
	envFile := flagSet.String("env_file", ".env", "可选的环境变量文件，存在时在读取配置前加载")
	remoteFlag := flagSet.Bool("remote", false, "启动后直接进入远程模式（无交互控制台）")
	versionFlag := flagSet.Bool("version", false, "输出版本并退出")
	flagSet.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "sglx-agent %s\n\n", Version)
		_, _ = fmt.Fprintln(os.Stdout, "用法：")
		_, _ = fmt.Fprintln(os.Stdout, "  sglx-agent [--config_path <path>] [--env_file <path>] [--remote] [--version] [--help]")
		_, _ = fmt.Fprintln(os.Stdout, "\n参数：")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *versionFlag {
		_, _ = fmt.Fprintln(os.Stdout, Version)
		return nil
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := loadConfig(resolveConfigPath(*configPath), flagSet.Changed("config_path"))
	if err != nil {
		return err
	}
	if err := sglog.Init(cfg.Logging); err != nil {
		return err
	}

	driver, err := hardware.New(cfg.Hardware.Driver)
	if err != nil {
		return err
	}
	comp, err := fsops.NewCompressor(cfg.Compression.Codec, cfg.Compression.Level)
	if err != nil {
		return err
	}
	machine := session.New(driver, session.OptionsFromConfig(cfg), comp, session.NewStore(cfg.Copy.QueueFile))
	machine.AddObserver(session.LogObserver{})

	headless := *remoteFlag || cfg.Agent.AutoRemote
	srv := transport.NewServer(cfg.Agent.Network, cfg.Agent.Host, cfg.Agent.Port, cfg.Agent.AcceptPoll)
	disp := remote.New(srv, machine, dispatchOptions(cfg.Agent, headless))

	sglog.With(map[string]any{
		"version":   Version,
		"addr":      fmt.Sprintf("%s:%d", cfg.Agent.Host, cfg.Agent.Port),
		"network":   cfg.Agent.Network,
		"save_path": cfg.Recording.SavePath,
		"driver":    cfg.Hardware.Driver,
		"codec":     comp.Codec() + "(" + comp.Ext() + ")",
		"status":    "starting",
	}).Info("agent 启动")

	ctx, cancel := signalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Listen) })

	if headless {
		if err := disp.EnterRemoteMode(gctx); err != nil {
			sglog.With(map[string]any{"status": "remote_error"}).WithError(err).Error("进入远程模式失败")
		}
	} else {
		if cfg.Logging.Output == "file" {
			remove := sglog.AddSink(logrus.InfoLevel, func(level logrus.Level, msg string) {
				_, _ = fmt.Fprintf(os.Stdout, "[%s] %s\n", level, msg)
			})
			defer remove()
		}
		con := newConsole(machine, disp, os.Stdout, cancel)
		go con.run(gctx, os.Stdin)
	}

	g.Go(func() error {
		<-gctx.Done()
		disp.ExitRemoteMode()
		srv.Close()
		if err := machine.Close(); err != nil {
			sglog.With(map[string]any{"status": "close_error"}).WithError(err).Warn("停止采集失败")
		}
		return nil
	})

	if err = g.Wait(); err != nil {
		sglog.L().WithError(err).Error("agent 异常退出")
		return err
	}
	sglog.With(map[string]any{"status": "stopped"}).Info("agent 已退出")
	return nil
}

// dispatchOptions 构造远程分发参数。
// 无控制台时没有其它途径重新进入远程模式，客户端离开后总是重新等待接入。
func dispatchOptions(cfg config.AgentConfig, headless bool) remote.Options {
	opts := remote.OptionsFromConfig(cfg)
	if headless {
		opts.AutoRemote = true
	}
	return opts
}

// loadConfig 读取配置文件；未显式指定且默认文件不存在时使用内置默认值。
func loadConfig(path string, explicit bool) (config.Config, error) {
	if _, err := os.Stat(path); err != nil && !explicit {
		cfg := config.DefaultConfig()
		config.ApplyEnv(&cfg, os.Getenv)
		if err := config.Validate(&cfg); err != nil {
			return config.Config{}, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

func resolveConfigPath(p string) string {
	if p == "" {
		return defaultConfigPath
	}
	st, err := os.Stat(p)
	if err != nil {
		return p
	}
	if st.IsDir() {
		return filepath.Join(p, "config.yaml")
	}
	return p
}

// signalContext 创建一个可被 SIGINT/SIGTERM 取消的 Context。
// 返回：
// - ctx: 监听信号并在收到信号时取消的上下文
// - cancel: 主动取消函数
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
