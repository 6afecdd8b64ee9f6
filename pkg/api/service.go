package api

import (
	"confixr/internal/config"
	"confixr/internal/logger"
	"confixr/internal/service"
	"confixr/pkg/model"
)

// Service 服务接口
type Service interface {
	// Start 启动服务（恢复快照、启动流水线）
	Start() error

	// Stop 停止服务
	Stop() error

	// Attach 附加 DevTools 目标并开始观察
	Attach(devtoolsURL, target string) error

	// Detach 分离当前目标
	Detach() error

	// Ingest 直接摄入一条原始错误事件
	Ingest(raw model.RawErrorEvent)

	// List 查询当前分析记录
	List(tab *model.TabID) []model.AnalysisRecord

	// Subscribe 订阅分析结果广播
	Subscribe() (model.SubID, <-chan model.Event)

	// Unsubscribe 注销订阅
	Unsubscribe(id model.SubID)

	// Clear 清空全部记录
	Clear() error

	// Retry 对指定记录重新分析
	Retry(id model.RecordID) error

	// Stats 存储运行统计
	Stats() model.StoreStats
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) Service {
	return service.New(cfg, l)
}
