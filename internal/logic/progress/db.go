package progress

import (
	"context"
	"database/sql"
	"fmt"

	"task-indexer-sol/pkg/logger"
)

// DBProgressStore 管理签名进度的 DB 存储。
// 写入用于持久记录进度，服务恢复后可用；
// 不做高频幂等判重，只在 Redis 未命中时 fallback 使用。
type DBProgressStore struct {
	db *sql.DB
}

func NewDBProgressStore(db *sql.DB) *DBProgressStore {
	return &DBProgressStore{db: db}
}

// CheckSignatureExists 判定某签名是否已存在于 DB 中（Redis 未命中时 fallback）
func (d *DBProgressStore) CheckSignatureExists(ctx context.Context, signature string) (bool, error) {
	query := `SELECT 1 FROM progress_signature WHERE signature = $1`
	var dummy int
	err := d.db.QueryRowContext(ctx, query, signature).Scan(&dummy)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check signature exists error: %w", err)
	}
	return true, nil
}

// BatchInsertProcessedSigs 批量插入签名记录，按 batchLimit 分批写入数据库。
// 签名冲突时交由 insertChunk 中的 ON CONFLICT 策略处理。
func (d *DBProgressStore) BatchInsertProcessedSigs(ctx context.Context, records []*SigRecord) error {
	if len(records) == 0 {
		return nil
	}

	const batchLimit = 1000
	for i := 0; i < len(records); i += batchLimit {
		end := i + batchLimit
		if end > len(records) {
			end = len(records)
		}
		if err := d.insertChunk(ctx, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// insertChunk 插入一批签名记录（最多 1000 条）。
// 若主键 signature 冲突，仅更新 status 和 updated_at 字段。
func (d *DBProgressStore) insertChunk(ctx context.Context, records []*SigRecord) error {
	query := `INSERT INTO progress_signature (signature, slot, source, block_time, status, updated_at) VALUES `
	args := make([]interface{}, 0, len(records)*5)
	placeholders := ""

	for i, rec := range records {
		placeholders += fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,CURRENT_TIMESTAMP),",
			i*5+1, i*5+2, i*5+3, i*5+4, i*5+5)
		args = append(args, rec.Signature, rec.Slot, rec.Source, rec.BlockTime, rec.Status)
	}

	query += placeholders[:len(placeholders)-1] +
		` ON CONFLICT (signature) DO UPDATE SET
		status = EXCLUDED.status,
		updated_at = CURRENT_TIMESTAMP`

	_, err := d.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteOldSigs 删除历史签名记录（进度 GC），保留最近 7 天。
// 为防止锁表和长事务，采用子查询分批删除（每批最多 1000 条）。
func (d *DBProgressStore) DeleteOldSigs(ctx context.Context, cutoffUnix int64) error {
	const batchSize = 1000
	for {
		res, err := d.db.ExecContext(ctx,
			`DELETE FROM progress_signature WHERE signature IN (
				SELECT signature FROM progress_signature WHERE block_time < $1 LIMIT $2
			)`,
			cutoffUnix, batchSize,
		)
		if err != nil {
			return fmt.Errorf("delete old signatures failed: %w", err)
		}

		// 没有更多记录可删，提前退出
		n, _ := res.RowsAffected()
		if n == 0 {
			break
		}

		logger.Infof("[ProgressGC] deleted %d old progress rows", n)
	}

	return nil
}
