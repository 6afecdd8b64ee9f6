package store

import (
	"sync"

	"confixr/pkg/model"
)

// DefaultCapacity 默认容量上限
const DefaultCapacity = 50

// Store 有界有序的分析结果集合。
// 按插入顺序保存，按 ID 替换，超出容量时先淘汰最旧记录（FIFO）。
type Store struct {
	mu       sync.RWMutex
	capacity int
	records  []model.AnalysisRecord
	index    map[model.RecordID]int
	total    int64
	evicted  int64
}

// New 创建存储，capacity 不合法时使用默认值
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		index:    make(map[model.RecordID]int),
	}
}

// Upsert 插入或按 ID 原位替换记录，返回是否为替换。
// 插入导致超容时淘汰最旧一条。
func (s *Store) Upsert(rec model.AnalysisRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[rec.ID]; ok {
		s.records[i] = rec
		return true
	}

	s.records = append(s.records, rec)
	s.index[rec.ID] = len(s.records) - 1
	s.total++

	if len(s.records) > s.capacity {
		oldest := s.records[0]
		s.records = s.records[1:]
		delete(s.index, oldest.ID)
		for id := range s.index {
			s.index[id]--
		}
		s.evicted++
	}
	return false
}

// Get 按 ID 查找记录
func (s *Store) Get(id model.RecordID) (model.AnalysisRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.AnalysisRecord{}, false
	}
	return s.records[i], true
}

// List 返回全部记录的快照副本，保持插入顺序
func (s *Store) List() []model.AnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AnalysisRecord, len(s.records))
	copy(out, s.records)
	return out
}

// ListTab 返回指定标签页的记录快照
func (s *Store) ListTab(tab model.TabID) []model.AnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AnalysisRecord
	for i := range s.records {
		if s.records[i].TabID == tab {
			out = append(out, s.records[i])
		}
	}
	return out
}

// Replace 以给定集合整体替换现有内容（用于启动时恢复快照）
func (s *Store) Replace(records []model.AnalysisRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) > s.capacity {
		records = records[len(records)-s.capacity:]
	}
	s.records = make([]model.AnalysisRecord, len(records))
	copy(s.records, records)
	s.index = make(map[model.RecordID]int, len(records))
	for i := range s.records {
		s.index[s.records[i].ID] = i
	}
}

// Clear 清空全部记录
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[model.RecordID]int)
}

// Len 当前记录数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stats 运行统计
func (s *Store) Stats() model.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.StoreStats{Total: s.total, Evicted: s.evicted}
}
