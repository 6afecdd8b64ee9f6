package model

type RecordID string
type TabID int64
type SubID string

// EventKind 捕获到的原始错误信号类型
type EventKind string

const (
	KindRuntimeError     EventKind = "runtime_error"
	KindPromiseRejection EventKind = "promise_rejection"
	KindConsoleError     EventKind = "console_error"
	KindConsoleWarn      EventKind = "console_warn"
	KindNetworkError     EventKind = "network_error"
	KindFetchException   EventKind = "fetch_exception"
)

// Category 规则分类结果类别
type Category string

const (
	CategoryCORS      Category = "CORS"
	CategoryCSP       Category = "CSP"
	CategoryMIME      Category = "MIME_TYPE"
	CategoryNetwork   Category = "NETWORK"
	CategoryJSRuntime Category = "JS_RUNTIME"
	CategoryReact     Category = "FRAMEWORK_REACT"
	CategoryAngular   Category = "FRAMEWORK_ANGULAR"
	CategoryBuildTool Category = "BUILD_TOOL"
	CategoryUnknown   Category = "UNKNOWN"
)

// RawErrorEvent 捕获到的、尚未分析的原始错误事件
type RawErrorEvent struct {
	Kind      EventKind `json:"kind"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Line      int       `json:"line,omitempty"`
	Column    int       `json:"column,omitempty"`
	Stack     string    `json:"stack,omitempty"`
	Timestamp int64     `json:"timestamp"`
	TabID     TabID     `json:"tabId,omitempty"`
}

// Classification 分类器输出：类别、成因与修复提示
type Classification struct {
	Category Category `json:"category"`
	Cause    string   `json:"cause"`
	Hints    []string `json:"hints"`
}

// AnalysisRecord 一次错误的最终分析结果，入库并广播给订阅方
type AnalysisRecord struct {
	ID             RecordID      `json:"id"`
	Timestamp      int64         `json:"ts"`
	Raw            RawErrorEvent `json:"raw"`
	Classification string        `json:"classification"`
	Suggestion     string        `json:"suggestion"`
	Reasoning      string        `json:"reasoning"`
	Retryable      bool          `json:"retryable,omitempty"`
	TabID          TabID         `json:"tabId,omitempty"`
}

// EventAnalysisResult 广播事件类型：分析结果创建或替换
const EventAnalysisResult = "analysis_result"

// Event 向订阅方广播的事件
type Event struct {
	Type   string         `json:"type"`
	Record AnalysisRecord `json:"record"`
}

// StoreStats 存储运行统计
type StoreStats struct {
	Total   int64 `json:"total"`
	Evicted int64 `json:"evicted"`
}
