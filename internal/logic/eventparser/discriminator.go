package eventparser

import (
	"crypto/sha256"
	"encoding/hex"

	"task-indexer-sol/internal/logic/core"
)

// Anchor 判别符命名空间：事件用 "event"，指令方法用 "global"
const (
	NamespaceEvent  = "event"
	NamespaceGlobal = "global"
)

// Discriminator 计算 Anchor 判别符：sha256("{namespace}:{name}") 的前 8 字节。
// 必须与链上数据逐位兼容，不可改动。
func Discriminator(namespace, name string) [8]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var tag [8]byte
	copy(tag[:], sum[:8])
	return tag
}

// knownEvents 全部已知事件 schema（与 decoders.go 的 switch 分支一一对应）
var knownEvents = []string{
	core.EventPlatformInitialized,
	core.EventTaskCreated,
	core.EventTaskClaimed,
	core.EventDeliverableSubmitted,
	core.EventTaskSettled,
	core.EventSubmissionRejected,
	core.EventTaskCancelled,
	core.EventTaskExpired,
	core.EventTemplateCreated,
	core.EventDisputeOpened,
	core.EventVoteCast,
	core.EventDisputeResolved,
	core.EventAgentRegistered,
	core.EventAgentProfileUpdated,
}

// discToEvent hex 判别符 → 事件名 的反查表，init 时预计算
var discToEvent = make(map[string]string, len(knownEvents))

func init() {
	for _, name := range knownEvents {
		tag := Discriminator(NamespaceEvent, name)
		discToEvent[hex.EncodeToString(tag[:])] = name
	}
}

// EventNameForDiscriminator 反查判别符对应的事件名。
// 未命中不是错误：混合程序的交易日志中经常出现外部程序的数据行，直接跳过。
func EventNameForDiscriminator(tagHex string) (string, bool) {
	name, ok := discToEvent[tagHex]
	return name, ok
}
