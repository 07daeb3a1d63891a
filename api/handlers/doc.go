// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 MysteryShopper HTTP API 的请求处理器实现。

# 概述

handlers 包实现旅程启动、查询、取消、报告导出、进度推送与截图读取等
HTTP 端点，以及统一的响应/错误处理。所有 Handler 均遵循标准 net/http
接口，路由使用 Go 1.22 的方法与路径模式，并通过 Swagger 注解生成 API 文档。

# 核心类型

  - JourneyHandler   : 旅程启动/列表/详情/取消、报告与摘要、websocket 进度流
  - ScreenshotHandler: 截图读取（image/png，支持 ETag）与按旅程列出
  - HealthHandler    : 服务健康检查（/health, /healthz, /ready, /version）
  - Response         : 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        : 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   : 包装 http.ResponseWriter 以捕获状态码，支持 Hijack 以便 websocket 升级

# 主要能力

  - 统一响应格式：WriteSuccess / WriteCreated / WriteError / WriteAnyError
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType、QueryInt
  - ErrorCode → HTTP 状态码自动映射（JOURNEY_BUSY → 429，PAGE_UNREACHABLE → 422 等）
  - 报告导出：json / yaml / summary / dot，可选 Redis 缓存（ReportCache）
  - 进度推送：基于 coder/websocket，结束时发送 completed 事件并正常关闭
*/
package handlers
