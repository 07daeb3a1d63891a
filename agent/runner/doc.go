// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package runner 在服务进程内异步执行旅程。

Manager 用加权信号量限制同时运行的旅程数，超出上限的请求立即以
JOURNEY_BUSY 拒绝而不排队。运行中的旅程保留最近一次进度，并向订阅者
非阻塞地广播；结束后的旅程写入 persistence.Store，之后的查询走存储。
*/
package runner
