// Package openai 实现 OpenAI 兼容 Chat Completions 接口的视觉 Provider，
// 截图以 data URI 形式作为 image_url 内容块发送。
package openai
