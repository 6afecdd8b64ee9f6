package cdp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/rpcc"

	"confixr/internal/logger"
	"confixr/pkg/model"
)

// Sink 摄入边界：观察到的原始错误事件都经由它进入流水线
type Sink interface {
	Ingest(raw model.RawErrorEvent)
}

// Observer 基于 Chrome DevTools Protocol 的宿主环境摄入适配器。
// 附加到一个页面目标后监听 Runtime/Network 事件流，
// 将异常、控制台错误和网络失败转换为 RawErrorEvent 转发给 Sink。
type Observer struct {
	sink Sink
	log  logger.Logger
	tab  model.TabID

	ctx    context.Context
	cancel context.CancelFunc
	conn   *rpcc.Conn
	client *cdp.Client

	mu   sync.Mutex
	urls map[network.RequestID]string
}

// New 创建观察器
func New(sink Sink, tab model.TabID, l logger.Logger) *Observer {
	if l == nil {
		l = logger.NewNop()
	}
	return &Observer{
		sink: sink,
		log:  l,
		tab:  tab,
		urls: make(map[network.RequestID]string),
	}
}

// Attach 连接 DevTools 端点并附加目标，target 为空时选择第一个页面目标
func (o *Observer) Attach(devtoolsURL, target string) error {
	ctx, cancel := context.WithCancel(context.Background())
	o.ctx = ctx
	o.cancel = cancel

	dt := devtool.New(devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if target != "" && string(targets[i].ID) == target {
			sel = targets[i]
			break
		}
		if target == "" && targets[i].Type == devtool.Page {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		cancel()
		return fmt.Errorf("no target")
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		return fmt.Errorf("dial target: %w", err)
	}
	o.conn = conn
	o.client = cdp.NewClient(conn)
	o.log.Info("已附加页面目标", "target", string(sel.ID), "url", sel.URL, "tabID", int64(o.tab))
	return nil
}

// Enable 开启事件域并启动消费协程
func (o *Observer) Enable() error {
	if o.client == nil {
		return fmt.Errorf("not attached")
	}
	if err := o.client.Runtime.Enable(o.ctx); err != nil {
		return fmt.Errorf("enable runtime domain: %w", err)
	}
	if err := o.client.Network.Enable(o.ctx, nil); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}
	go o.consumeExceptions()
	go o.consumeConsole()
	go o.consumeRequests()
	go o.consumeLoadingFailed()
	go o.consumeResponses()
	return nil
}

// Detach 断开目标连接，消费协程随之退出
func (o *Observer) Detach() error {
	if o.cancel != nil {
		o.cancel()
	}
	if o.conn != nil {
		return o.conn.Close()
	}
	return nil
}

func (o *Observer) consumeExceptions() {
	stream, err := o.client.Runtime.ExceptionThrown(o.ctx)
	if err != nil {
		o.log.Warn("订阅异常事件失败", "error", err)
		return
	}
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			return
		}
		o.sink.Ingest(exceptionEvent(ev, o.tab))
	}
}

func (o *Observer) consumeConsole() {
	stream, err := o.client.Runtime.ConsoleAPICalled(o.ctx)
	if err != nil {
		o.log.Warn("订阅控制台事件失败", "error", err)
		return
	}
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			return
		}
		if raw, ok := consoleEvent(ev, o.tab); ok {
			o.sink.Ingest(raw)
		}
	}
}

// consumeRequests 记录 requestID 到 URL 的映射，供失败事件回查
func (o *Observer) consumeRequests() {
	stream, err := o.client.Network.RequestWillBeSent(o.ctx)
	if err != nil {
		o.log.Warn("订阅请求事件失败", "error", err)
		return
	}
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			return
		}
		o.mu.Lock()
		if len(o.urls) > 4096 {
			o.urls = make(map[network.RequestID]string)
		}
		o.urls[ev.RequestID] = ev.Request.URL
		o.mu.Unlock()
	}
}

func (o *Observer) consumeLoadingFailed() {
	stream, err := o.client.Network.LoadingFailed(o.ctx)
	if err != nil {
		o.log.Warn("订阅加载失败事件失败", "error", err)
		return
	}
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			return
		}
		o.sink.Ingest(loadingFailedEvent(ev, o.lookupURL(ev.RequestID), o.tab))
	}
}

func (o *Observer) consumeResponses() {
	stream, err := o.client.Network.ResponseReceived(o.ctx)
	if err != nil {
		o.log.Warn("订阅响应事件失败", "error", err)
		return
	}
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			return
		}
		if raw, ok := responseEvent(ev, o.tab); ok {
			o.sink.Ingest(raw)
		}
	}
}

func (o *Observer) lookupURL(id network.RequestID) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.urls[id]
}
