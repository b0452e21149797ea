package eventparser

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"task-indexer-sol/internal/consts"
	"task-indexer-sol/internal/logic/core"
	"task-indexer-sol/pkg/logger"
	"task-indexer-sol/pkg/types"
)

const programDataPrefix = "Program data: "

// Parser 事件解析器，绑定目标程序 Program ID。
// 进程内构造一次，注入各消费方（webhook handler / 回扫服务）。
type Parser struct {
	programID string

	invokePrefix  string
	successPrefix string
	failedPrefix  string
}

func NewParser(programID string) *Parser {
	if programID == "" {
		programID = consts.DefaultProgramID
	}
	// 程序 ID 必须是合法的 32 字节 base58，配置写错在启动期直接暴露
	programID = types.PubkeyFromBase58(programID).String()
	return &Parser{
		programID:     programID,
		invokePrefix:  "Program " + programID + " invoke",
		successPrefix: "Program " + programID + " success",
		failedPrefix:  "Program " + programID + " failed",
	}
}

func (p *Parser) ProgramID() string {
	return p.programID
}

// ParseEventsFromLogs 从交易日志行中提取目标程序的事件，输出保持输入顺序。
//
// 用单个布尔位跟踪"当前是否在目标程序调用内"：跨程序调用（CPI）会让不同程序的
// "Program data:" 行在同一笔交易里交错出现，只有嵌套在目标程序内时才能归属给它。
// 注意这里不是深度计数器——目标程序不会递归调用自己，布尔位足够；若将来支持
// 自递归 CPI，必须改为计数器。
func (p *Parser) ParseEventsFromLogs(logMessages []string, signature string, slot uint64, blockTime int64) []*core.DecodedEvent {
	var results []*core.DecodedEvent

	insideProgram := false
	for _, line := range logMessages {
		if strings.HasPrefix(line, p.invokePrefix) {
			insideProgram = true
			continue
		}
		if strings.HasPrefix(line, p.successPrefix) || strings.HasPrefix(line, p.failedPrefix) {
			insideProgram = false
			continue
		}

		if !insideProgram || !strings.HasPrefix(line, programDataPrefix) {
			continue
		}

		// base64 解码失败静默跳过：日志源本身就很嘈杂
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line[len(programDataPrefix):]))
		if err != nil {
			continue
		}
		if len(raw) < 8 {
			continue // 不足以容纳判别符
		}

		eventName, ok := EventNameForDiscriminator(hex.EncodeToString(raw[:8]))
		if !ok {
			continue // 外部程序或未知事件，正常情况
		}

		fields, err := decodeEvent(eventName, raw[8:])
		if err != nil {
			// 单条事件解码失败只丢弃自己，不影响同一日志流中的其它事件
			logger.Warnf("[EventParser] failed to decode %s: %v, tx=%s", eventName, err, signature)
			continue
		}

		results = append(results, &core.DecodedEvent{
			Signature: signature,
			Slot:      slot,
			BlockTime: blockTime,
			EventName: eventName,
			Fields:    fields,
		})
	}

	return results
}
