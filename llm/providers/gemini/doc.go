// Package gemini 实现 Google Gemini generateContent 接口的视觉 Provider。
package gemini
