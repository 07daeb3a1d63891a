// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 browser 为旅程控制器提供单会话的无头浏览器操作能力。

# 概述

browser 只暴露旅程所需的少量原子操作：加载页面、截取视口、
按可见文本点击、滚动、读取当前 URL、关闭会话。每个操作都有
独立超时，失败以错误返回，由调用方决定致命、跳过或忽略。

# 核心接口

  - Navigator：单会话浏览器抽象（Load / Screenshot / Click /
    Scroll / CurrentURL / Close）
  - NavigatorFactory：按旅程创建 Navigator
  - Locator：纯数据的元素定位策略，由 FirstMatch 按顺序尝试，
    第一个成功即返回，全部失败则聚合为 LocatorError

# 加载策略

Load 先以 "commit" 级别导航（导航提交即返回）并等待稳定时间，
失败后回退到等待 load 事件的完整导航。两者都失败时返回
ErrPageUnreachable。

# 内置实现

ChromeDPNavigator 基于 chromedp 驱动 Headless Chrome，支持代理、
自定义 UserAgent、远程 CDP 地址与额外启动参数。
*/
package browser
