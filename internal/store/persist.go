package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"task-indexer-sol/internal/logic/core"
	"task-indexer-sol/pkg/logger"
)

// 快照文件名。两份逻辑表：原始事件日志 + 历史投影表（含标题表）。
// 每次落盘全量重写——按 webhook/钱包驱动的事件量（千级而非百万级）这是够用的，
// 事件量级上去后需要换增量存储，这是容量问题不是正确性问题。
const (
	eventsFile     = "events.json"
	historicalFile = "historical.json"
)

// historicalSnapshot 投影表快照结构
type historicalSnapshot struct {
	Tasks  []*core.HistoricalTask `json:"tasks"`
	Titles map[string]string      `json:"titles"`
}

// Load 启动时从快照目录恢复全量状态，必须在接收新入库之前调用。
// 读失败时大声记日志后以空状态启动：链本身才是事实源，丢的数据可由回扫恢复，
// 这里选可用性不选一致性。
func (s *EventStore) Load() {
	if s.dir == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. 原始事件日志（存储序即最新在前）
	var events []*core.DecodedEvent
	if ok := loadJSON(filepath.Join(s.dir, eventsFile), &events); ok {
		s.events = events
		// 判重集合与轨迹索引按到达顺序（旧→新）重建
		for i := len(events) - 1; i >= 0; i-- {
			evt := events[i]
			s.processed[evt.DedupeKey()] = struct{}{}
			if addr := evt.Subject(); addr != "" {
				s.trails[addr] = append(s.trails[addr], evt)
			}
		}
	}

	// 2. 历史投影表 + 标题表
	var snapshot historicalSnapshot
	if ok := loadJSON(filepath.Join(s.dir, historicalFile), &snapshot); ok {
		for _, ht := range snapshot.Tasks {
			s.tasks[ht.Address] = ht
		}
		if snapshot.Titles != nil {
			s.titles = snapshot.Titles
		}
	}

	logger.Infof("[EventStore] loaded %d events, %d historical tasks, %d titles from %s",
		len(s.events), len(s.tasks), len(s.titles), s.dir)
}

// loadJSON 读取并反序列化一个快照文件。文件不存在视为首次启动，非错误。
func loadJSON(path string, target interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Errorf("[EventStore] failed to read snapshot %s: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		logger.Errorf("[EventStore] failed to decode snapshot %s, starting empty: %v", path, err)
		return false
	}
	return true
}

// scheduleFlush 登记一次去抖落盘：静默 debounce 时长后执行，期间的连续写入合并
func (s *EventStore) scheduleFlush() {
	if s.dir == "" {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if s.closed {
		return
	}
	if s.flushTimer != nil {
		s.flushTimer.Reset(s.debounce)
		return
	}
	s.flushTimer = time.AfterFunc(s.debounce, func() {
		s.flushMu.Lock()
		s.flushTimer = nil
		s.flushMu.Unlock()

		if err := s.Flush(); err != nil {
			// 内存状态仍然正确，只是暂时失去持久性，必须 error 级让运维看到
			logger.Errorf("[EventStore] debounced flush failed: %v", err)
		}
	})
}

// Flush 同步全量落盘两份快照
func (s *EventStore) Flush() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", s.dir, err)
	}

	s.mu.RLock()
	events := make([]*core.DecodedEvent, len(s.events))
	copy(events, s.events)
	snapshot := historicalSnapshot{
		Tasks:  make([]*core.HistoricalTask, 0, len(s.tasks)),
		Titles: make(map[string]string, len(s.titles)),
	}
	for _, ht := range s.tasks {
		snapshot.Tasks = append(snapshot.Tasks, ht)
	}
	for addr, title := range s.titles {
		snapshot.Titles[addr] = title
	}
	s.mu.RUnlock()

	if err := writeJSON(filepath.Join(s.dir, eventsFile), events); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, historicalFile), snapshot); err != nil {
		return err
	}
	logger.Debugf("[EventStore] flushed %d events, %d historical tasks", len(events), len(snapshot.Tasks))
	return nil
}

// writeJSON 先写临时文件再 rename，避免进程中途挂掉留下半个快照
func writeJSON(path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot %s: %w", path, err)
	}
	return nil
}

// Close 停掉去抖定时器并做最后一次同步落盘，优雅退出时调用
func (s *EventStore) Close() {
	s.flushMu.Lock()
	s.closed = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	s.flushMu.Unlock()

	if err := s.Flush(); err != nil {
		logger.Errorf("[EventStore] final flush failed: %v", err)
	}
}
