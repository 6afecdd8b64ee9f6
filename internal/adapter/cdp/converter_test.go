package cdp

import (
	"testing"

	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confixr/pkg/model"
)

func strptr(s string) *string { return &s }

func TestExceptionEvent(t *testing.T) {
	url := "https://example.com/app.js"
	ev := &runtime.ExceptionThrownReply{
		Timestamp: 1700000000000,
		ExceptionDetails: runtime.ExceptionDetails{
			Text:         "Uncaught",
			LineNumber:   12,
			ColumnNumber: 3,
			URL:          &url,
			Exception: &runtime.RemoteObject{
				Type:        "object",
				Description: strptr("TypeError: x is not a function"),
			},
		},
	}

	raw := exceptionEvent(ev, 1)
	assert.Equal(t, model.KindRuntimeError, raw.Kind)
	assert.Equal(t, "Uncaught TypeError: x is not a function", raw.Message)
	assert.Equal(t, url, raw.Source)
	assert.Equal(t, 12, raw.Line)
	assert.Equal(t, 3, raw.Column)
	assert.Equal(t, model.TabID(1), raw.TabID)
	assert.Equal(t, int64(1700000000000), raw.Timestamp)
}

func TestExceptionEventPromiseRejection(t *testing.T) {
	ev := &runtime.ExceptionThrownReply{
		ExceptionDetails: runtime.ExceptionDetails{
			Text: "Uncaught (in promise) Error: boom",
		},
	}
	raw := exceptionEvent(ev, 1)
	assert.Equal(t, model.KindPromiseRejection, raw.Kind)
}

func TestConsoleEvent(t *testing.T) {
	ev := &runtime.ConsoleAPICalledReply{
		Type: "error",
		Args: []runtime.RemoteObject{
			{Type: "string", Value: []byte(`"request failed:"`)},
			{Type: "object", Description: strptr("Error: timeout")},
		},
	}

	raw, ok := consoleEvent(ev, 2)
	require.True(t, ok)
	assert.Equal(t, model.KindConsoleError, raw.Kind)
	assert.Equal(t, "request failed: Error: timeout", raw.Message)
	assert.Equal(t, model.TabID(2), raw.TabID)
}

func TestConsoleEventWarn(t *testing.T) {
	ev := &runtime.ConsoleAPICalledReply{Type: "warning"}
	raw, ok := consoleEvent(ev, 1)
	require.True(t, ok)
	assert.Equal(t, model.KindConsoleWarn, raw.Kind)
}

func TestConsoleEventIgnoresOtherLevels(t *testing.T) {
	ev := &runtime.ConsoleAPICalledReply{Type: "log"}
	_, ok := consoleEvent(ev, 1)
	assert.False(t, ok)
}

func TestLoadingFailedEvent(t *testing.T) {
	ev := &network.LoadingFailedReply{
		Type:      network.ResourceTypeFetch,
		ErrorText: "net::ERR_NAME_NOT_RESOLVED",
	}
	raw := loadingFailedEvent(ev, "https://api.example.com/v1", 1)
	assert.Equal(t, model.KindFetchException, raw.Kind)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", raw.Message)
	assert.Equal(t, "https://api.example.com/v1", raw.Source)

	ev.Type = network.ResourceTypeImage
	raw = loadingFailedEvent(ev, "", 1)
	assert.Equal(t, model.KindNetworkError, raw.Kind)
}

func TestResponseEvent(t *testing.T) {
	ev := &network.ResponseReceivedReply{
		Response: network.Response{URL: "https://example.com/api", Status: 503},
	}
	raw, ok := responseEvent(ev, 1)
	require.True(t, ok)
	assert.Equal(t, model.KindNetworkError, raw.Kind)
	assert.Equal(t, "HTTP 503", raw.Message)
	assert.Equal(t, "https://example.com/api", raw.Source)

	ev.Response.Status = 200
	_, ok = responseEvent(ev, 1)
	assert.False(t, ok)
}

func TestStackText(t *testing.T) {
	st := &runtime.StackTrace{
		CallFrames: []runtime.CallFrame{
			{FunctionName: "handleClick", URL: "https://example.com/app.js", LineNumber: 10, ColumnNumber: 5},
			{FunctionName: "", URL: "https://example.com/app.js", LineNumber: 20, ColumnNumber: 1},
		},
	}
	text := stackText(st)
	assert.Contains(t, text, "at handleClick (https://example.com/app.js:10:5)")
	assert.Contains(t, text, "at <anonymous>")

	assert.Empty(t, stackText(nil))
}
