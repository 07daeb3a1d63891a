// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的渲染报告缓存。

# 概述

已结束的旅程不会再变化，因此按旅程 ID 与导出格式缓存渲染结果是安全的。
Manager 封装 go-redis 客户端，负责连接验证、后台健康检查与优雅关闭。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete 基础操作，
    以及 GetReport/SetReport/InvalidateJourney 报告级操作。
  - Config：缓存配置，包含地址、Key 前缀、默认 TTL、连接池与健康检查间隔。

# 错误语义

未命中返回 ErrCacheMiss，可通过 IsCacheMiss 判断。
*/
package cache
