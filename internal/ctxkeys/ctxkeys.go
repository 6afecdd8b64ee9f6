package ctxkeys

// TraceIDKey context 中的链路追踪ID键
type TraceIDKey struct{}
