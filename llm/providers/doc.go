// Package providers 提供视觉模型 Provider 的共享 HTTP 工具：
// 通用配置、错误映射与错误消息解析。具体厂商实现见 gemini、openai 子包。
package providers
