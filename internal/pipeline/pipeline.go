package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"confixr/internal/ctxkeys"
	"confixr/internal/logger"
	"confixr/internal/reason"
	"confixr/internal/store"
	"confixr/pkg/model"
)

// noMessage 原始事件缺失 message 时的占位文本
const noMessage = "(no message)"

// DefaultQueueSize 默认摄入队列长度
const DefaultQueueSize = 64

type job struct {
	raw model.RawErrorEvent
	id  model.RecordID // 非空表示重试，复用已有ID原位替换
}

// Config 流水线配置
type Config struct {
	Store     *store.Store
	Persister *store.Persister // 可为 nil，纯内存运行
	Analyzer  reason.Analyzer
	QueueSize int
	Logger    logger.Logger
}

// Pipeline 分析流水线：接收原始错误事件，分配ID，调用分析策略，
// 写入存储并向订阅方广播。全部存储变更由单个 worker 串行执行。
type Pipeline struct {
	st       *store.Store
	persist  *store.Persister
	analyzer reason.Analyzer
	log      logger.Logger

	in chan job
	wg sync.WaitGroup

	stateMu sync.Mutex
	started bool
	closed  bool

	subMu sync.RWMutex
	subs  map[model.SubID]chan model.Event
}

// New 创建流水线
func New(cfg Config) *Pipeline {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Pipeline{
		st:       cfg.Store,
		persist:  cfg.Persister,
		analyzer: cfg.Analyzer,
		log:      l,
		in:       make(chan job, size),
		subs:     make(map[model.SubID]chan model.Event),
	}
}

// Start 启动 worker
func (p *Pipeline) Start() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.run()
}

// Close 停止接收新事件，排空队列后退出。
// 已开始的分析会执行完毕并落盘，不做取消。
func (p *Pipeline) Close() {
	p.stateMu.Lock()
	if p.closed || !p.started {
		p.closed = true
		p.stateMu.Unlock()
		return
	}
	p.closed = true
	close(p.in)
	p.stateMu.Unlock()
	p.wg.Wait()
}

// Ingest 摄入一条原始错误事件，非阻塞：队列满时丢弃并记日志
func (p *Pipeline) Ingest(raw model.RawErrorEvent) {
	if raw.Message == "" {
		raw.Message = noMessage
	}
	if raw.Timestamp == 0 {
		raw.Timestamp = time.Now().UnixMilli()
	}

	p.stateMu.Lock()
	if p.closed {
		p.stateMu.Unlock()
		return
	}
	select {
	case p.in <- job{raw: raw}:
	default:
		p.log.Warn("摄入队列已满，丢弃事件", "kind", raw.Kind, "message", raw.Message)
	}
	p.stateMu.Unlock()
}

// Retry 对已有记录按原始事件重新分析，复用相同ID原位替换
func (p *Pipeline) Retry(id model.RecordID) error {
	rec, ok := p.st.Get(id)
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}

	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.closed {
		return fmt.Errorf("pipeline closed")
	}
	select {
	case p.in <- job{raw: rec.Raw, id: rec.ID}:
		return nil
	default:
		return fmt.Errorf("ingest queue full")
	}
}

// List 返回存储快照，tab 非空时按标签页过滤
func (p *Pipeline) List(tab *model.TabID) []model.AnalysisRecord {
	if tab != nil {
		return p.st.ListTab(*tab)
	}
	return p.st.List()
}

// Clear 清空存储并落盘空快照
func (p *Pipeline) Clear() error {
	p.st.Clear()
	return p.persistSnapshot()
}

// Stats 存储运行统计
func (p *Pipeline) Stats() model.StoreStats {
	return p.st.Stats()
}

// Subscribe 注册订阅方，返回订阅ID与事件通道
func (p *Pipeline) Subscribe() (model.SubID, <-chan model.Event) {
	id := model.SubID(uuid.NewString())
	ch := make(chan model.Event, 16)
	p.subMu.Lock()
	p.subs[id] = ch
	p.subMu.Unlock()
	p.log.Debug("新增订阅", "subID", string(id))
	return id, ch
}

// Unsubscribe 注销订阅方并关闭其通道
func (p *Pipeline) Unsubscribe(id model.SubID) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for j := range p.in {
		p.process(j)
	}
}

func (p *Pipeline) process(j job) {
	id := j.id
	if id == "" {
		id = model.RecordID(uuid.NewString())
	}
	ctx := context.WithValue(context.Background(), ctxkeys.TraceIDKey{}, string(id))

	start := time.Now()
	rec := p.analyzer.Analyze(ctx, j.raw)
	rec.ID = id
	rec.TabID = j.raw.TabID
	rec.Timestamp = time.Now().UnixMilli()

	replaced := p.st.Upsert(rec)
	if err := p.persistSnapshotCtx(ctx); err != nil {
		// 持久化失败只影响本次落盘，内存态与广播继续
		p.log.Error("快照落盘失败", "error", err, "recordID", string(id))
	}

	p.broadcast(model.Event{Type: model.EventAnalysisResult, Record: rec})
	p.log.Debug("错误事件处理完成",
		"recordID", string(id),
		"kind", j.raw.Kind,
		"classification", rec.Classification,
		"replaced", replaced,
		"duration", time.Since(start),
	)
}

func (p *Pipeline) broadcast(ev model.Event) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for id, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.log.Debug("订阅通道已满，跳过广播", "subID", string(id))
		}
	}
}

func (p *Pipeline) persistSnapshot() error {
	return p.persistSnapshotCtx(context.Background())
}

func (p *Pipeline) persistSnapshotCtx(ctx context.Context) error {
	if p.persist == nil {
		return nil
	}
	return p.persist.Save(ctx, p.st.List())
}
