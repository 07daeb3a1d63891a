// =============================================================================
// MysteryShopper 主入口
// =============================================================================
// 命令行与服务入口，包含单次旅程、HTTP 服务、数据库迁移与健康检查
//
// 使用方法:
//
//	mysteryshopper run https://example.com --goal "Sign up"   # 运行一次旅程
//	mysteryshopper run https://example.com --output json      # 输出 JSON 报告
//	mysteryshopper serve                                      # 启动服务
//	mysteryshopper serve --config config.yaml                 # 指定配置文件
//	mysteryshopper migrate up                                 # 运行数据库迁移
//	mysteryshopper version                                    # 显示版本信息
//	mysteryshopper health                                     # 健康检查
// =============================================================================

// @title MysteryShopper API
// @version 1.0.0
// @description AI mystery shopper: a vision model walks a website towards a goal and scores its UX.

// @contact.name MysteryShopper Team
// @contact.url https://github.com/BaSui01/mysteryshopper

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/quick"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := a.rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// app holds the streams and test hooks shared by all commands.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	envFiles   []string

	// quickOpts are appended when building the journey controller.
	quickOpts []quick.Option
	// logger overrides the configured logger.
	logger *zap.Logger
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mysteryshopper",
		Short:         "AI mystery shopper for websites",
		Long:          "A vision model browses a website towards a goal, scoring the UX of every page it sees.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (YAML)")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "Dotenv files to load before the environment")

	root.AddCommand(
		a.runCommand(),
		a.serveCommand(),
		a.migrateCommand(),
		a.versionCommand(),
		a.healthCommand(),
	)
	return root
}

// loadConfig 加载配置：默认值 → YAML → .env → 环境变量
func (a *app) loadConfig() (*config.Config, error) {
	loader := config.NewLoader().
		WithDotEnv(a.envFiles...).
		WithValidator(func(c *config.Config) error { return c.Validate() })
	if a.configPath != "" {
		loader = loader.WithConfigPath(a.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (a *app) newLogger(cfg config.LogConfig) *zap.Logger {
	if a.logger != nil {
		return a.logger
	}
	return initLogger(cfg)
}

// =============================================================================
// 📋 版本和健康检查
// =============================================================================

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "MysteryShopper %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "  Git Commit: %s\n", GitCommit)
		},
	}
}

func (a *app) healthCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(addr + "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check failed: status %d", resp.StatusCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "Server address")
	return cmd
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
