// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 artifacts 负责旅程截图的持久化、检索与过期清理。

# 概述

每一步的截图在送交 Oracle 之前先落盘，得到一个稳定的 Artifact 引用。
同一步中的 decide 与 score 调用共享该引用，报告与 HTTP 接口也通过
它定位原始图像。

# 核心接口

  - Store：截图存储抽象，定义 Save / Load / GetMetadata / Delete / List
  - Artifact：截图元数据，包含 ID、所属旅程、步骤名、校验和、大小、
    页面 URL 与过期时间

# 内置实现

FileStore 基于 afero.Fs 实现 Store。生产环境使用 OS 文件系统，
测试与无盘部署使用 afero.NewMemMapFs()。每张截图先写入临时文件
再原子重命名，并维护全局 index.json 索引。

Manager 负责生成 ULID、计算 SHA-256 校验和并按 TTL 清理过期截图。
*/
package artifacts
