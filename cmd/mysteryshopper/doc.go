// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 MysteryShopper 命令行与服务端程序入口。

# 概述

cmd/mysteryshopper 基于 cobra 组织子命令：run 在本地运行一次旅程并
输出报告，serve 启动 HTTP API（后台旅程、WebSocket 进度、截图下载），
migrate 管理 SQL 旅程存储的表结构，另有 version 与 health。配置按
默认值 → YAML → .env → SHOPPER_ 环境变量的顺序加载。

# 核心类型

  - Server        : 组装存储、报告缓存、旅程执行器与 HTTP/Metrics 双端口
  - Middleware    : HTTP 中间件函数签名 func(http.Handler) http.Handler
  - Authenticator : API Key 与 JWT 认证的统一抽象

# 主要能力

  - run：spinner 进度、human/json/yaml/summary/dot 报告、--fail-if 门禁
  - 退出码：0 成功，1 错误，2 门禁未通过，3 旅程中止
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    Metrics、RequestLogger、CORS、RateLimiter、Auth
  - 优雅关闭：信号 → 关闭 HTTP → 取消运行中旅程并落库 → 关闭存储与缓存
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
