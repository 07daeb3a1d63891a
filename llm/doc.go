// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package llm 定义视觉大模型 Provider 的统一契约。

# 概述

mysteryshopper 只需要一种模型能力：给定一张截图和一段提示词，
返回结构化 JSON 文本。llm 包为此定义 VisionProvider 接口、请求/响应
类型与统一错误码，具体厂商实现位于 llm/providers 子包。

# 核心类型

  - VisionProvider: 视觉生成接口（Name + GenerateVision）
  - VisionRequest : 提示词 + 内联图片 + 输出约束
  - VisionResponse: 模型文本输出与用量
  - Error         : 带 HTTPStatus / Retryable 的统一错误
*/
package llm
