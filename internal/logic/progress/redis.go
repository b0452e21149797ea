package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProgressStore 管理 Redis 中的签名状态记录（回扫幂等控制）
type RedisProgressStore struct {
	rdb *redis.Client
}

const sigKeyPrefix = "task-indexer:progress:sig"

// 签名状态的 TTL：回扫窗口最深不会超过一周
const sigTTL = 7 * 24 * time.Hour

// NewRedisProgressStore 创建 Redis 判重管理器
func NewRedisProgressStore(rdb *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{rdb: rdb}
}

func (r *RedisProgressStore) getKey(signature string) string {
	return fmt.Sprintf("%s:%s", sigKeyPrefix, signature)
}

// GetSigStatus 获取签名的状态（Unknown / Processed / Invalid / Pending）
func (r *RedisProgressStore) GetSigStatus(ctx context.Context, signature string) (SigStatus, error) {
	val, err := r.rdb.Get(ctx, r.getKey(signature)).Int()
	switch {
	case err == redis.Nil:
		return SigUnknown, nil
	case err != nil:
		return SigUnknown, fmt.Errorf("redis get error: %w", err)
	case val == int(SigProcessed):
		return SigProcessed, nil
	case val == int(SigInvalid):
		return SigInvalid, nil
	case val == int(SigPending):
		return SigPending, nil
	default:
		return SigUnknown, nil // 容错处理
	}
}

// MarkSigStatus 通用设置签名的状态
func (r *RedisProgressStore) MarkSigStatus(ctx context.Context, signature string, status SigStatus) error {
	return r.rdb.Set(ctx, r.getKey(signature), int(status), sigTTL).Err()
}

// MarkSigProcessed 标记签名为已处理
func (r *RedisProgressStore) MarkSigProcessed(ctx context.Context, signature string) error {
	return r.MarkSigStatus(ctx, signature, SigProcessed)
}

// MarkSigInvalid 标记签名为无效（结构失败、跳过）
func (r *RedisProgressStore) MarkSigInvalid(ctx context.Context, signature string) error {
	return r.MarkSigStatus(ctx, signature, SigInvalid)
}

// MarkSigPending 标记签名为正在处理（幂等控制）
func (r *RedisProgressStore) MarkSigPending(ctx context.Context, signature string) error {
	return r.MarkSigStatus(ctx, signature, SigPending)
}
