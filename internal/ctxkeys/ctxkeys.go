// Package ctxkeys 定义跨包共享的 context 键。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	requestIDKey contextKey = "request_id"
	journeyIDKey contextKey = "journey_id"
	principalKey contextKey = "principal"
)

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceIDKey)
}

// WithRequestID 设置 HTTP 请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID 获取 HTTP 请求 ID
func RequestID(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// WithJourneyID 设置当前旅程 ID
func WithJourneyID(ctx context.Context, journeyID string) context.Context {
	return context.WithValue(ctx, journeyIDKey, journeyID)
}

// JourneyID 获取当前旅程 ID
func JourneyID(ctx context.Context) (string, bool) {
	return stringValue(ctx, journeyIDKey)
}

// WithPrincipal 设置已认证的调用方（API Key 名称或 JWT subject）
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// Principal 获取已认证的调用方
func Principal(ctx context.Context) (string, bool) {
	return stringValue(ctx, principalKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
