package mq

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-indexer-sol/internal/logic/core"
)

func TestBuildEventJobs(t *testing.T) {
	taskAddr := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

	evt := &core.DecodedEvent{
		Signature: "sig1",
		Slot:      5,
		BlockTime: 1700000000,
		EventName: core.EventTaskSettled,
		Fields:    map[string]string{"task": taskAddr, "payout_lamports": "100"},
	}

	t.Run("空输入返回 nil", func(t *testing.T) {
		assert.Nil(t, BuildEventJobs("topic", 4, nil))
	})

	t.Run("消息体为事件 JSON，key 为 task 地址", func(t *testing.T) {
		jobs := BuildEventJobs("topic", 4, []*core.DecodedEvent{evt})
		require.Len(t, jobs, 1)

		job := jobs[0]
		assert.Equal(t, "topic", job.Topic)
		assert.Equal(t, []byte(taskAddr), job.Key)

		var decoded core.DecodedEvent
		require.NoError(t, json.Unmarshal(job.Value, &decoded))
		assert.Equal(t, "sig1", decoded.Signature)
		assert.Equal(t, core.EventTaskSettled, decoded.EventName)
		assert.Equal(t, taskAddr, decoded.Fields["task"])
	})

	t.Run("同一 task 的事件落同一分区", func(t *testing.T) {
		other := &core.DecodedEvent{
			Signature: "sig2",
			EventName: core.EventTaskClaimed,
			Fields:    map[string]string{"task": taskAddr},
		}
		jobs := BuildEventJobs("topic", 8, []*core.DecodedEvent{evt, other})
		require.Len(t, jobs, 2)
		assert.Equal(t, jobs[0].Partition, jobs[1].Partition, "分区内有序依赖同 task 同分区")
		assert.Less(t, jobs[0].Partition, int32(8))
	})

	t.Run("无 task 字段落 0 号分区", func(t *testing.T) {
		noTask := &core.DecodedEvent{
			Signature: "sig3",
			EventName: core.EventPlatformInitialized,
			Fields:    map[string]string{"authority": "A"},
		}
		jobs := BuildEventJobs("topic", 8, []*core.DecodedEvent{noTask})
		require.Len(t, jobs, 1)
		assert.Equal(t, int32(0), jobs[0].Partition)
		assert.Empty(t, jobs[0].Key)
	})

	t.Run("分区数非法时退化为单分区", func(t *testing.T) {
		jobs := BuildEventJobs("topic", 0, []*core.DecodedEvent{evt})
		require.Len(t, jobs, 1)
		assert.Equal(t, int32(0), jobs[0].Partition)
	})
}
