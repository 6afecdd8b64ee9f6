package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confixr/internal/store"
	"confixr/pkg/model"
)

type stubAnalyzer struct {
	mu         sync.Mutex
	suggestion string
	calls      int
}

func (s *stubAnalyzer) Analyze(_ context.Context, raw model.RawErrorEvent) model.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return model.AnalysisRecord{
		Raw:            raw,
		Classification: "JS_RUNTIME",
		Suggestion:     s.suggestion,
		Reasoning:      "stub",
	}
}

func (s *stubAnalyzer) setSuggestion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestion = v
}

func newTestPipeline(t *testing.T, capacity int) (*Pipeline, *stubAnalyzer) {
	t.Helper()
	stub := &stubAnalyzer{suggestion: "first"}
	p := New(Config{
		Store:    store.New(capacity),
		Analyzer: stub,
	})
	p.Start()
	t.Cleanup(p.Close)
	return p, stub
}

func recvEvent(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("等待广播超时")
		return model.Event{}
	}
}

func TestIngestAnalyzeBroadcast(t *testing.T) {
	p, _ := newTestPipeline(t, 10)
	subID, events := p.Subscribe()
	defer p.Unsubscribe(subID)

	p.Ingest(model.RawErrorEvent{
		Kind:    model.KindConsoleError,
		Message: "TypeError: Cannot read properties of undefined (reading 'foo')",
		TabID:   7,
	})

	ev := recvEvent(t, events)
	assert.Equal(t, model.EventAnalysisResult, ev.Type)
	assert.NotEmpty(t, ev.Record.ID)
	assert.Equal(t, model.TabID(7), ev.Record.TabID)
	assert.Equal(t, "JS_RUNTIME", ev.Record.Classification)
	assert.NotZero(t, ev.Record.Timestamp)

	list := p.List(nil)
	require.Len(t, list, 1)
	assert.Equal(t, ev.Record.ID, list[0].ID)
}

func TestIngestDefaultsMessage(t *testing.T) {
	p, _ := newTestPipeline(t, 10)
	subID, events := p.Subscribe()
	defer p.Unsubscribe(subID)

	p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError})

	ev := recvEvent(t, events)
	assert.Equal(t, "(no message)", ev.Record.Raw.Message)
	assert.NotZero(t, ev.Record.Raw.Timestamp)
}

func TestRetryReplacesInPlace(t *testing.T) {
	p, stub := newTestPipeline(t, 10)
	subID, events := p.Subscribe()
	defer p.Unsubscribe(subID)

	p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "boom"})
	first := recvEvent(t, events)
	assert.Equal(t, "first", first.Record.Suggestion)

	stub.setSuggestion("second")
	require.NoError(t, p.Retry(first.Record.ID))

	second := recvEvent(t, events)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, "second", second.Record.Suggestion)

	// 重试必须原位替换，不得产生重复记录
	list := p.List(nil)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Suggestion)
}

func TestRetryUnknownID(t *testing.T) {
	p, _ := newTestPipeline(t, 10)
	assert.Error(t, p.Retry("no-such-id"))
}

func TestUniqueIDsUnderRapidIngest(t *testing.T) {
	p, _ := newTestPipeline(t, 100)

	const n = 20
	for i := 0; i < n; i++ {
		p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "boom"})
	}

	require.Eventually(t, func() bool { return p.st.Len() == n }, 2*time.Second, 10*time.Millisecond)

	seen := make(map[model.RecordID]bool)
	for _, r := range p.List(nil) {
		assert.False(t, seen[r.ID], "记录ID不得重复")
		seen[r.ID] = true
	}
}

func TestListFilterByTab(t *testing.T) {
	p, _ := newTestPipeline(t, 10)
	subID, events := p.Subscribe()
	defer p.Unsubscribe(subID)

	p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "a", TabID: 1})
	p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "b", TabID: 2})
	recvEvent(t, events)
	recvEvent(t, events)

	tab := model.TabID(2)
	list := p.List(&tab)
	require.Len(t, list, 1)
	assert.Equal(t, model.TabID(2), list[0].Raw.TabID)
}

func TestClear(t *testing.T) {
	p, _ := newTestPipeline(t, 10)
	subID, events := p.Subscribe()
	defer p.Unsubscribe(subID)

	p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "boom"})
	recvEvent(t, events)

	require.NoError(t, p.Clear())
	assert.Empty(t, p.List(nil))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p, _ := newTestPipeline(t, 10)
	subID, events := p.Subscribe()
	p.Unsubscribe(subID)

	_, ok := <-events
	assert.False(t, ok, "注销后通道应当关闭")

	// 没有订阅方时广播静默失败，摄入照常进行
	p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "boom"})
	assert.Eventually(t, func() bool { return len(p.List(nil)) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseDrainsQueue(t *testing.T) {
	stub := &stubAnalyzer{suggestion: "x"}
	p := New(Config{Store: store.New(100), Analyzer: stub})
	p.Start()

	for i := 0; i < 10; i++ {
		p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "boom"})
	}
	p.Close()

	assert.Equal(t, 10, p.st.Len())

	// 关闭后的摄入被静默丢弃
	p.Ingest(model.RawErrorEvent{Kind: model.KindConsoleError, Message: "late"})
	assert.Equal(t, 10, p.st.Len())
}
