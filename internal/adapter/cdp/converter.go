package cdp

import (
	"fmt"
	"strings"

	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/runtime"

	"confixr/pkg/model"
)

// exceptionEvent 将未捕获异常转换为 RawErrorEvent。
// "Uncaught (in promise)" 形态的异常归类为未处理的 Promise 拒绝。
func exceptionEvent(ev *runtime.ExceptionThrownReply, tab model.TabID) model.RawErrorEvent {
	d := ev.ExceptionDetails

	msg := d.Text
	if d.Exception != nil && d.Exception.Description != nil {
		if msg == "" {
			msg = *d.Exception.Description
		} else {
			msg = strings.TrimSpace(msg + " " + *d.Exception.Description)
		}
	}

	kind := model.KindRuntimeError
	if strings.Contains(strings.ToLower(msg), "in promise") {
		kind = model.KindPromiseRejection
	}

	source := ""
	if d.URL != nil {
		source = *d.URL
	}

	return model.RawErrorEvent{
		Kind:      kind,
		Message:   msg,
		Source:    source,
		Line:      d.LineNumber,
		Column:    d.ColumnNumber,
		Stack:     stackText(d.StackTrace),
		Timestamp: int64(ev.Timestamp),
		TabID:     tab,
	}
}

// consoleEvent 将 console.error / console.warn 调用转换为 RawErrorEvent，
// 其余控制台级别忽略。参数按原样字符串化后以空格拼接。
func consoleEvent(ev *runtime.ConsoleAPICalledReply, tab model.TabID) (model.RawErrorEvent, bool) {
	var kind model.EventKind
	switch ev.Type {
	case "error":
		kind = model.KindConsoleError
	case "warning":
		kind = model.KindConsoleWarn
	default:
		return model.RawErrorEvent{}, false
	}

	parts := make([]string, 0, len(ev.Args))
	for i := range ev.Args {
		parts = append(parts, remoteObjectText(ev.Args[i]))
	}

	return model.RawErrorEvent{
		Kind:      kind,
		Message:   strings.Join(parts, " "),
		Stack:     stackText(ev.StackTrace),
		Timestamp: int64(ev.Timestamp),
		TabID:     tab,
	}, true
}

// loadingFailedEvent 将网络加载失败转换为 RawErrorEvent。
// Fetch/XHR 请求的失败对应页面内的 fetch 异常，其余资源按网络错误处理。
func loadingFailedEvent(ev *network.LoadingFailedReply, url string, tab model.TabID) model.RawErrorEvent {
	kind := model.KindNetworkError
	if ev.Type == network.ResourceTypeFetch || ev.Type == network.ResourceTypeXHR {
		kind = model.KindFetchException
	}
	return model.RawErrorEvent{
		Kind:    kind,
		Message: ev.ErrorText,
		Source:  url,
		TabID:   tab,
	}
}

// responseEvent 将状态码 >= 400 的响应转换为 RawErrorEvent，其余忽略
func responseEvent(ev *network.ResponseReceivedReply, tab model.TabID) (model.RawErrorEvent, bool) {
	if ev.Response.Status < 400 {
		return model.RawErrorEvent{}, false
	}
	return model.RawErrorEvent{
		Kind:    model.KindNetworkError,
		Message: fmt.Sprintf("HTTP %d", ev.Response.Status),
		Source:  ev.Response.URL,
		TabID:   tab,
	}, true
}

func stackText(st *runtime.StackTrace) string {
	if st == nil {
		return ""
	}
	var b strings.Builder
	if st.Description != nil && *st.Description != "" {
		b.WriteString(*st.Description)
		b.WriteString("\n")
	}
	for i := range st.CallFrames {
		f := st.CallFrames[i]
		fn := f.FunctionName
		if fn == "" {
			fn = "<anonymous>"
		}
		fmt.Fprintf(&b, "    at %s (%s:%d:%d)\n", fn, f.URL, f.LineNumber, f.ColumnNumber)
	}
	return strings.TrimRight(b.String(), "\n")
}

func remoteObjectText(o runtime.RemoteObject) string {
	if o.Description != nil && *o.Description != "" {
		return *o.Description
	}
	if len(o.Value) > 0 {
		return strings.Trim(string(o.Value), `"`)
	}
	return o.Type
}
