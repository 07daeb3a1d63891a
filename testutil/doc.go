// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 MysteryShopper 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现相似的
测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertEventuallyTrue
  - 异步辅助: WaitFor / WaitForChannel / CollectProgress
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: MockNavigator（浏览器会话）、MockOracle（决策与评分）、
    MockVisionProvider（模型原始文本），均支持 Builder 模式与错误注入
  - testutil/fixtures: 旅程记录工厂（FinishedJourney、AbortedJourney、Step）
    与模型原始响应样例（DecisionJSON、AnalysisJSON、Fenced）

# 使用示例

	ctx := testutil.TestContextWithTimeout(t, 5*time.Second)
	p := mocks.NewMockVisionProvider().WithResponses(fixtures.Fenced(fixtures.AnalysisJSON(80)))
*/
package testutil
