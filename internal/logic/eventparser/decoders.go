package eventparser

import (
	"fmt"

	"task-indexer-sol/internal/logic/core"
)

// fieldKind 事件字段的定长原语类型
type fieldKind uint8

const (
	fieldPubkey fieldKind = iota // 32 字节公钥，base58 渲染
	fieldU64                     // u64 LE，十进制字符串
	fieldI64                     // i64 LE，十进制字符串（可为负）
	fieldU16                     // u16 LE
	fieldU8                      // u8
	fieldHash32                  // 32 字节哈希，小写 hex 渲染
)

type fieldDef struct {
	name string
	kind fieldKind
}

// decodeEvent 解码判别符之后的事件负载。
// 14 个 schema 的字段顺序与类型属于 wire contract，与链上程序的事件定义保持一致，不可漂移。
func decodeEvent(eventName string, buf []byte) (map[string]string, error) {
	switch eventName {
	case core.EventPlatformInitialized:
		return decodeFields(buf, []fieldDef{
			{"authority", fieldPubkey},
			{"fee_bps", fieldU16},
			{"treasury", fieldPubkey},
		})
	case core.EventTaskCreated:
		return decodeFields(buf, []fieldDef{
			{"task", fieldPubkey},
			{"creator", fieldPubkey},
			{"task_index", fieldU64},
			{"bounty_lamports", fieldU64},
			{"deadline", fieldI64},
		})
	case core.EventTaskClaimed:
		return decodeFields(buf, []fieldDef{
			{"task", fieldPubkey},
			{"agent", fieldPubkey},
			{"task_index", fieldU64},
		})
	case core.EventDeliverableSubmitted:
		return decodeFields(buf, []fieldDef{
			{"task", fieldPubkey},
			{"agent", fieldPubkey},
			{"deliverable_hash", fieldHash32},
		})
	case core.EventTaskSettled:
		return decodeFields(buf, []fieldDef{
			{"task", fieldPubkey},
			{"agent", fieldPubkey},
			{"payout_lamports", fieldU64},
			{"fee_lamports", fieldU64},
		})
	case core.EventSubmissionRejected:
		return decodeFields(buf, []fieldDef{
			{"task", fieldPubkey},
			{"agent", fieldPubkey},
			{"reason_hash", fieldHash32},
		})
	case core.EventTaskCancelled:
		return decodeFields(buf, []fieldDef{
			{"task", fieldPubkey},
			{"creator", fieldPubkey},
			{"refunded_lamports", fieldU64},
		})
	case core.EventTaskExpired:
		return decodeFields(buf, []fieldDef{
			{"task", fieldPubkey},
			{"creator", fieldPubkey},
			{"refunded_lamports", fieldU64},
		})
	case core.EventTemplateCreated:
		return decodeFields(buf, []fieldDef{
			{"template", fieldPubkey},
			{"creator", fieldPubkey},
			{"template_index", fieldU64},
			{"category", fieldU8},
		})
	case core.EventDisputeOpened:
		return decodeFields(buf, []fieldDef{
			{"dispute", fieldPubkey},
			{"task", fieldPubkey},
			{"initiator", fieldPubkey},
			{"reason", fieldU8},
		})
	case core.EventVoteCast:
		return decodeFields(buf, []fieldDef{
			{"dispute", fieldPubkey},
			{"voter", fieldPubkey},
			{"ruling", fieldU8},
		})
	case core.EventDisputeResolved:
		return decodeFields(buf, []fieldDef{
			{"dispute", fieldPubkey},
			{"task", fieldPubkey},
			{"ruling", fieldU8},
			{"total_votes", fieldU16},
		})
	case core.EventAgentRegistered:
		return decodeFields(buf, []fieldDef{
			{"agent", fieldPubkey},
			{"profile", fieldPubkey},
		})
	case core.EventAgentProfileUpdated:
		return decodeFields(buf, []fieldDef{
			{"agent", fieldPubkey},
			{"reputation_score", fieldI64},
			{"tasks_completed", fieldU64},
		})
	default:
		return nil, fmt.Errorf("no decoder for event %q", eventName)
	}
}

// decodeFields 按 layout 顺序依次读取定长字段
func decodeFields(buf []byte, layout []fieldDef) (map[string]string, error) {
	fields := make(map[string]string, len(layout))
	offset := 0
	for _, def := range layout {
		var (
			val  string
			next int
			err  error
		)
		switch def.kind {
		case fieldPubkey:
			val, next, err = readPubkey(buf, offset)
		case fieldU64:
			val, next, err = readU64(buf, offset)
		case fieldI64:
			val, next, err = readI64(buf, offset)
		case fieldU16:
			val, next, err = readU16(buf, offset)
		case fieldU8:
			val, next, err = readU8(buf, offset)
		case fieldHash32:
			val, next, err = readHash32(buf, offset)
		default:
			err = fmt.Errorf("unknown field kind %d", def.kind)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", def.name, err)
		}
		fields[def.name] = val
		offset = next
	}
	return fields, nil
}
