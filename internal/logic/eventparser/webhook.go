package eventparser

import (
	"encoding/json"
	"runtime/debug"
	"time"

	"task-indexer-sol/internal/logic/core"
	"task-indexer-sol/pkg/logger"
)

// ParseWebhookPayload 解析 Helius webhook 负载（raw / enhanced 两种格式的交易数组）。
// 单条交易解析失败只丢弃该条并记日志，不中断其余条目——这是核心链路里
// 唯一要求的部分失败隔离边界。
func (p *Parser) ParseWebhookPayload(payload interface{}) []*core.DecodedEvent {
	items, ok := payload.([]interface{})
	if !ok {
		logger.Warnf("[EventParser] webhook payload is not an array")
		return nil
	}

	var allEvents []*core.DecodedEvent
	for i, item := range items {
		events := p.parseOneTransaction(i, item)
		allEvents = append(allEvents, events...)
	}
	return allEvents
}

func (p *Parser) parseOneTransaction(index int, item interface{}) (events []*core.DecodedEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("[EventParser] panic parsing webhook item %d: %+v\nstack: %s", index, r, debug.Stack())
			events = nil
		}
	}()

	obj, ok := item.(map[string]interface{})
	if !ok {
		if item != nil {
			logger.Warnf("[EventParser] webhook item %d has unexpected shape %T", index, item)
		}
		return nil
	}

	// 优先尝试 raw 格式：meta.logMessages + transaction.signatures[0]
	if meta, ok := obj["meta"].(map[string]interface{}); ok {
		logMessages := asStringSlice(meta["logMessages"])
		signature := firstSignature(obj["transaction"])
		slot := asUint64(obj["slot"])
		blockTime := asInt64(obj["blockTime"])
		if blockTime == 0 {
			blockTime = time.Now().Unix()
		}

		if len(logMessages) > 0 && signature != "" {
			return p.ParseEventsFromLogs(logMessages, signature, slot, blockTime)
		}
	}

	// enhanced 格式：顶层 signature + transaction.meta.logMessages
	if signature, ok := obj["signature"].(string); ok && signature != "" {
		var logMessages []string
		if tx, ok := obj["transaction"].(map[string]interface{}); ok {
			if meta, ok := tx["meta"].(map[string]interface{}); ok {
				logMessages = asStringSlice(meta["logMessages"])
			}
		}
		slot := asUint64(obj["slot"])
		blockTime := asInt64(obj["timestamp"])
		if blockTime == 0 {
			blockTime = time.Now().Unix()
		}

		if len(logMessages) > 0 {
			return p.ParseEventsFromLogs(logMessages, signature, slot, blockTime)
		}
	}

	return nil
}

// ExtractTitlesFromWebhook 从 webhook 负载的交易体里恢复任务标题，
// 返回 task PDA 地址 → title 的合并结果。形态不符的条目静默跳过。
func (p *Parser) ExtractTitlesFromWebhook(payload interface{}) map[string]string {
	titles := make(map[string]string)
	items, ok := payload.([]interface{})
	if !ok {
		return titles
	}

	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		msg := webhookTxMessage(obj)
		if msg == nil {
			continue
		}
		for addr, title := range p.ExtractTitles(msg) {
			titles[addr] = title
		}
	}
	return titles
}

// webhookTxMessage 兼容 raw（transaction.message）与 enhanced
// （transaction.transaction.message）两种嵌套形态
func webhookTxMessage(obj map[string]interface{}) *TxMessage {
	tx, ok := obj["transaction"].(map[string]interface{})
	if !ok {
		return nil
	}
	if msg, ok := tx["message"].(map[string]interface{}); ok {
		return TxMessageFromJSON(msg)
	}
	if inner, ok := tx["transaction"].(map[string]interface{}); ok {
		if msg, ok := inner["message"].(map[string]interface{}); ok {
			return TxMessageFromJSON(msg)
		}
	}
	return nil
}

func firstSignature(tx interface{}) string {
	obj, ok := tx.(map[string]interface{})
	if !ok {
		return ""
	}
	sigs, ok := obj["signatures"].([]interface{})
	if !ok || len(sigs) == 0 {
		return ""
	}
	sig, _ := sigs[0].(string)
	return sig
}

func asStringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// asUint64 兼容 encoding/json 的两种数值表示（float64 / json.Number）
func asUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0
		}
		return uint64(i)
	default:
		return 0
	}
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
