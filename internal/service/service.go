package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	cdpadapter "confixr/internal/adapter/cdp"
	"confixr/internal/config"
	"confixr/internal/logger"
	"confixr/internal/pipeline"
	"confixr/internal/reason"
	"confixr/internal/store"
	"confixr/pkg/model"
)

// Service 组装配置、存储、分析策略、流水线与摄入适配器
type Service struct {
	cfg *config.Config
	log logger.Logger

	mu      sync.Mutex
	st      *store.Store
	persist *store.Persister
	pipe    *pipeline.Pipeline
	obs     *cdpadapter.Observer
	nextTab model.TabID
	started bool
}

// New 创建服务
func New(cfg *config.Config, l logger.Logger) *Service {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{cfg: cfg, log: l}
}

// Start 打开持久化存储、恢复快照并启动流水线。
// sqlite 打开失败时降级为纯内存运行，进程不退出。
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.st = store.New(s.cfg.Store.Capacity)

	persist, err := store.OpenPersister(s.cfg.Sqlite.Dsn, s.cfg.Sqlite.Prefix, s.log)
	if err != nil {
		s.log.Error("打开持久化存储失败，降级为内存模式", "error", err)
	} else {
		s.persist = persist
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		records, err := persist.Load(ctx)
		cancel()
		if err != nil {
			s.log.Error("恢复快照失败", "error", err)
		} else if len(records) > 0 {
			s.st.Replace(records)
			s.log.Info("已恢复历史记录", "count", len(records))
		}
	}

	s.pipe = pipeline.New(pipeline.Config{
		Store:     s.st,
		Persister: s.persist,
		Analyzer:  s.buildAnalyzer(),
		QueueSize: s.cfg.Ingest.QueueSize,
		Logger:    s.log,
	})
	s.pipe.Start()
	s.started = true
	s.log.Info("分析服务已启动", "capacity", s.cfg.Store.Capacity)
	return nil
}

// buildAnalyzer 依据配置选择分析策略：
// 未配置 API key 时使用纯规则；否则远端分析失败时回退到规则。
func (s *Service) buildAnalyzer() reason.Analyzer {
	ruleBased := reason.NewRuleAnalyzer()
	if s.cfg.Gemini.APIKey == "" {
		s.log.Info("未配置 Gemini API key，使用规则分析策略")
		return ruleBased
	}
	gemini := reason.NewGemini(reason.GeminiConfig{
		Endpoint: s.cfg.Gemini.Endpoint,
		Model:    s.cfg.Gemini.Model,
		APIKey:   s.cfg.Gemini.APIKey,
		Timeout:  time.Duration(s.cfg.Gemini.TimeoutMS) * time.Millisecond,
	}, s.log)
	return reason.NewFallback(gemini, ruleBased)
}

// Stop 分离目标并停止流水线，排空后关闭存储
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	if s.obs != nil {
		if err := s.obs.Detach(); err != nil {
			s.log.Warn("分离目标失败", "error", err)
		}
		s.obs = nil
	}
	s.pipe.Close()
	if s.persist != nil {
		if err := s.persist.Close(); err != nil {
			s.log.Warn("关闭存储失败", "error", err)
		}
	}
	s.started = false
	s.log.Info("分析服务已停止")
	return nil
}

// Attach 附加到 DevTools 目标并开始观察错误事件
func (s *Service) Attach(devtoolsURL, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("service not started")
	}
	if s.obs != nil {
		return fmt.Errorf("already attached")
	}
	s.nextTab++
	obs := cdpadapter.New(s.pipe, s.nextTab, s.log)
	if err := obs.Attach(devtoolsURL, target); err != nil {
		return err
	}
	if err := obs.Enable(); err != nil {
		_ = obs.Detach()
		return err
	}
	s.obs = obs
	return nil
}

// Detach 分离当前目标
func (s *Service) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.obs == nil {
		return nil
	}
	err := s.obs.Detach()
	s.obs = nil
	return err
}

// Ingest 直接摄入一条原始错误事件（供非 CDP 边界使用）
func (s *Service) Ingest(raw model.RawErrorEvent) {
	s.pipe.Ingest(raw)
}

// List 查询当前分析记录，tab 非空时按标签页过滤
func (s *Service) List(tab *model.TabID) []model.AnalysisRecord {
	return s.pipe.List(tab)
}

// Subscribe 订阅分析结果广播
func (s *Service) Subscribe() (model.SubID, <-chan model.Event) {
	return s.pipe.Subscribe()
}

// Unsubscribe 注销订阅
func (s *Service) Unsubscribe(id model.SubID) {
	s.pipe.Unsubscribe(id)
}

// Clear 清空全部记录
func (s *Service) Clear() error {
	return s.pipe.Clear()
}

// Retry 对指定记录重新分析
func (s *Service) Retry(id model.RecordID) error {
	return s.pipe.Retry(id)
}

// Stats 存储运行统计
func (s *Service) Stats() model.StoreStats {
	return s.pipe.Stats()
}
