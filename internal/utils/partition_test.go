package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionHashBytes(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}

	t.Run("结果落在分区范围内且稳定", func(t *testing.T) {
		for _, mod := range []uint32{2, 3, 4, 8, 16, 17} {
			pid := PartitionHashBytes(key, mod)
			assert.Less(t, pid, mod)
			assert.Equal(t, pid, PartitionHashBytes(key, mod), "同一 key 必须稳定映射")
		}
	})

	t.Run("短缓冲或非法 mod 落 0 号分区", func(t *testing.T) {
		assert.Equal(t, uint32(0), PartitionHashBytes(key[:20], 8))
		assert.Equal(t, uint32(0), PartitionHashBytes(key, 0))
		assert.Equal(t, uint32(0), PartitionHashBytes(key, 1))
	})
}
