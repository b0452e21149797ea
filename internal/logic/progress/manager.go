package progress

import (
	"context"
	"time"

	"task-indexer-sol/pkg/logger"
)

// Manager 统一封装 Redis + DB + 缓冲，控制回扫进度判重与写入。
// redis / db 任一为 nil 时对应层级自动旁路（判重退化，仍可工作）。
type Manager struct {
	redis           *RedisProgressStore
	db              *DBProgressStore
	buffer          *sigBuffer
	recentThreshold time.Duration // 新交易的判断阈值
}

func NewManager(redis *RedisProgressStore, db *DBProgressStore, recentThresholdSec int) *Manager {
	if recentThresholdSec <= 0 {
		recentThresholdSec = 60
	}
	return &Manager{
		redis:           redis,
		db:              db,
		buffer:          newSigBuffer(),
		recentThreshold: time.Duration(recentThresholdSec) * time.Second,
	}
}

// ShouldProcessSig 用于判断是否需要处理该签名：
// - 如果交易是"最近的"，直接处理（事件存储自身的判重兜底）
// - 否则 Redis 查状态 + fallback 到 DB
func (m *Manager) ShouldProcessSig(ctx context.Context, signature string, blockTime int64) (bool, error) {
	if time.Since(time.Unix(blockTime, 0)) <= m.recentThreshold {
		return true, nil // 近期交易，直接处理
	}
	if m.redis == nil {
		return true, nil
	}

	// 旧交易判重：先查 Redis
	status, err := m.redis.GetSigStatus(ctx, signature)
	if err != nil {
		return false, err
	}
	if status == SigProcessed || status == SigInvalid {
		return false, nil
	}
	if m.db == nil {
		return true, nil
	}

	// fallback 到 DB
	exists, err := m.db.CheckSignatureExists(ctx, signature)
	if err != nil {
		return false, err
	}
	if exists {
		_ = m.redis.MarkSigProcessed(ctx, signature)
		return false, nil
	}
	return true, nil
}

// MarkSigStatus 标记某签名的处理状态（已处理、结构非法、处理中）。
// 终态（Processed/Invalid）同时更新 Redis 与缓冲区（供后续批量写入 DB）；
// Pending 只做 Redis 幂等标记，不落库。
func (m *Manager) MarkSigStatus(ctx context.Context, rec *SigRecord) error {
	if m.redis != nil {
		var err error
		switch rec.Status {
		case SigProcessed:
			err = m.redis.MarkSigProcessed(ctx, rec.Signature)
		case SigInvalid:
			err = m.redis.MarkSigInvalid(ctx, rec.Signature)
		case SigPending:
			return m.redis.MarkSigPending(ctx, rec.Signature)
		default:
			return nil // SigUnknown 不参与记录
		}
		if err != nil {
			return err
		}
	}
	if rec.Status != SigProcessed && rec.Status != SigInvalid {
		return nil
	}

	// 加入缓冲区，待后续批量持久化 DB
	if m.db != nil {
		m.buffer.Add(rec)
	}
	return nil
}

// StartFlushLoop 启动后台定时 flush，把缓冲的进度记录批量写入 DB
func (m *Manager) StartFlushLoop(ctx context.Context, interval time.Duration) {
	if m.db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// 退出前把剩余缓冲刷掉
				m.flushOnce(context.Background())
				return
			case <-ticker.C:
				m.flushOnce(ctx)
			}
		}
	}()
}

func (m *Manager) flushOnce(ctx context.Context) {
	records := m.buffer.Flush()
	if len(records) == 0 {
		return
	}
	if err := m.db.BatchInsertProcessedSigs(ctx, records); err != nil {
		// 缓冲已清空，只记日志；签名状态在 Redis 仍然有效
		logger.Errorf("[Progress] batch insert %d records failed: %v", len(records), err)
	}
}

// StartGCLoop 启动后台 GC 清理（每 interval 执行一次，清理超过保留期的签名记录）
func (m *Manager) StartGCLoop(ctx context.Context, interval, retain time.Duration) {
	if m.db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retain).Unix()
				if err := m.db.DeleteOldSigs(ctx, cutoff); err != nil {
					logger.Warnf("[Progress] GC failed: %v", err)
				}
			}
		}
	}()
}
