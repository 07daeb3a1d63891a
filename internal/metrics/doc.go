// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、Oracle、旅程与存储四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，实现 journey.Metrics，并通过
    OracleObserver 为 VisionOracle 提供调用回调。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - Oracle 指标：按 provider/kind 统计调用次数与耗时，以及降级次数。
  - 旅程指标：运行中旅程数、完成旅程数（status/reason）、步数、
    每步耗时、转化分数分布、点击策略命中、被并发上限拒绝的旅程。
  - 存储指标：按 backend/operation 统计持久化操作与耗时。
*/
package metrics
