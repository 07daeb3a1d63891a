// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package lambdatransport 将 API Gateway HTTP 事件适配为一次同步旅程。

请求体为 {"url","goal","max_steps","format"}，format 也可通过 query
参数传入。Handler 在调用内运行完整旅程，并按所选格式（json、yaml、
summary、dot）返回报告；旅程 ID 与状态放在响应头 x-journey-* 中。
客户端错误返回 400，其余错误统一返回 500 且不暴露内部细节。
*/
package lambdatransport
