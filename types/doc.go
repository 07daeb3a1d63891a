// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 mysteryshopper 的全局共享错误类型。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、api 等上层模块
提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码与 Retryable 标记
  - IsRetryable / GetErrorCode / AsError: 错误工具链
*/
package types
