// Lambda 入口：每次调用同步运行一次旅程并返回报告
//
// 配置与 CLI 相同（SHOPPER_ 环境变量）；截图默认保存在内存中，
// 浏览器通常通过 SHOPPER_BROWSER_REMOTE_URL 连接远程 Chrome。
package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/internal/transport/lambdatransport"
	"github.com/BaSui01/mysteryshopper/quick"
)

func main() {
	cfg, err := config.NewLoader().
		WithValidator(func(c *config.Config) error { return c.Validate() }).
		Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Lambda 只有 /tmp 可写，截图不落盘
	cfg.Artifacts.InMemory = true

	ctrl, err := quick.New(quick.WithConfig(cfg), quick.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create journey controller", zap.Error(err))
	}

	h := lambdatransport.NewHandler(ctrl, lambdatransport.Defaults{
		Goal:     cfg.Journey.DefaultGoal,
		MaxSteps: cfg.Journey.MaxSteps,
	}, logger)
	lambda.Start(h.Run)
}
