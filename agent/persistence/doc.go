// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供已完成旅程（journey.Journey）的持久化存储抽象及多后端实现。

# 概述

旅程运行结束后由 runner 写入 Store，HTTP 接口与报告导出从 Store 读取，
服务重启后历史旅程仍可查询。所有后端以旅程的 JSON 文档为准，
另外保存状态、开始时间等列用于过滤与排序。

# 核心接口

  - Store: Save / Get / List / Delete，以及 Ping 健康检查与 Close。
  - Filter: 按状态过滤并分页，结果按开始时间倒序。

# 后端实现

  - Memory: 内存实现，适合开发与测试，重启后数据丢失。
  - SQL: 基于 GORM 的实现，支持 postgres、mysql、sqlite，
    表结构由 internal/migration 管理。
  - Redis: 基于 Redis 的实现，利用 Sorted Set 索引与 Pipeline 批量操作，
    支持 TTL 自动过期。
  - Mongo: 基于 MongoDB 官方驱动 v2 的实现。

# 使用方式

	store, err := persistence.New(ctx, cfg.Store, logger)
	store = persistence.Instrument(store, cfg.Store.Type, collector)
*/
package persistence
