// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责按配置打开 GORM 数据库，并管理连接池、健康检查与事务重试。

# 概述

Open 根据 config.DatabaseConfig.Driver 选择方言（postgres、mysql、sqlite），
随后由 PoolManager 统一设置连接池参数。旅程的 SQL 持久化
（agent/persistence.SQLStore）通过 PoolManager 访问数据库。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close() 与事务方法。
  - PoolConfig：连接池配置，可由 PoolConfigFrom 从数据库配置导出。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 方言选择：sqlite 使用纯 Go 的 glebarez/sqlite，无需 CGO。
  - 健康检查：后台定时 PingContext 探活，Close 时停止。
  - 事务管理：WithTransactionRetry 对死锁、序列化失败、
    SQLite 忙等可重试错误做指数退避重试。
*/
package database
