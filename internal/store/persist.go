package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"confixr/internal/logger"
	"confixr/internal/storage"
	"confixr/pkg/model"
)

// snapshotKey 持久化命名空间键，对应原有的 errors 集合
const snapshotKey = "errors"

type snapshot struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     []byte `gorm:"column:value"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

// Persister 把记录集合整体序列化后值替换式写入单行 sqlite 快照
type Persister struct {
	db  *gorm.DB
	log logger.Logger
}

// OpenPersister 打开（必要时建表）sqlite 快照存储
func OpenPersister(dsn, prefix string, l logger.Logger) (*Persister, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         storage.NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&snapshot{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot table: %w", err)
	}
	return &Persister{db: db, log: l}, nil
}

// Save 整体覆盖写入当前记录集合
func (p *Persister) Save(ctx context.Context, records []model.AnalysisRecord) error {
	if records == nil {
		records = []model.AnalysisRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	row := snapshot{Key: snapshotKey, Value: data, UpdatedAt: time.Now().UnixMilli()}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load 读取上次保存的记录集合，无快照时返回空
func (p *Persister) Load(ctx context.Context) ([]model.AnalysisRecord, error) {
	var row snapshot
	err := p.db.WithContext(ctx).Where("key = ?", snapshotKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var records []model.AnalysisRecord
	if err := json.Unmarshal(row.Value, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接
func (p *Persister) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
