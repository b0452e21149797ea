package mq

import (
	"encoding/json"

	"github.com/mr-tron/base58"

	"task-indexer-sol/internal/logic/core"
	"task-indexer-sol/internal/utils"
	"task-indexer-sol/pkg/logger"
)

// BuildEventJobs 把一批新入库的事件转换成 KafkaJob。
// 分区按事件所属 task 地址散列，保证同一任务的事件落在同一分区内有序；
// 没有 task 字段的事件（如 PlatformInitialized）统一落 0 号分区。
func BuildEventJobs(topic string, partitions int, events []*core.DecodedEvent) []*KafkaJob {
	if len(events) == 0 {
		return nil
	}
	if partitions <= 0 {
		partitions = 1
	}

	jobs := make([]*KafkaJob, 0, len(events))
	for _, evt := range events {
		value, err := json.Marshal(evt)
		if err != nil {
			logger.Warnf("[MQ] marshal event %s failed: %v", evt.DedupeKey(), err)
			continue
		}

		subject := evt.Subject()
		pid := uint32(0)
		if subject != "" {
			if raw, err := base58.Decode(subject); err == nil {
				pid = utils.PartitionHashBytes(raw, uint32(partitions))
			}
		}

		jobs = append(jobs, &KafkaJob{
			Topic:     topic,
			Partition: int32(pid),
			Key:       []byte(subject),
			Value:     value,
		})
	}
	return jobs
}
