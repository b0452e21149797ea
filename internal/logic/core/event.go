package core

// 链上事件名（与 on-chain 程序的 Anchor 事件定义一一对应，属于 wire contract）
const (
	EventPlatformInitialized  = "PlatformInitialized"
	EventTaskCreated          = "TaskCreated"
	EventTaskClaimed          = "TaskClaimed"
	EventDeliverableSubmitted = "DeliverableSubmitted"
	EventTaskSettled          = "TaskSettled"
	EventSubmissionRejected   = "SubmissionRejected"
	EventTaskCancelled        = "TaskCancelled"
	EventTaskExpired          = "TaskExpired"
	EventTemplateCreated      = "TemplateCreated"
	EventDisputeOpened        = "DisputeOpened"
	EventVoteCast             = "VoteCast"
	EventDisputeResolved      = "DisputeResolved"
	EventAgentRegistered      = "AgentRegistered"
	EventAgentProfileUpdated  = "AgentProfileUpdated"
)

// DecodedEvent 表示从交易日志解出的一条链上事件。
// Fields 中所有数值均字符串化，避免 64 位精度在 JSON 持久化/跨语言读取时丢失。
type DecodedEvent struct {
	Signature string            `json:"signature"` // 交易签名（一笔交易可产生多条事件，故不全局唯一）
	Slot      uint64            `json:"slot"`      // 账本位置
	BlockTime int64             `json:"blockTime"` // Unix 秒，来源缺失时由采集侧补当前时间
	EventName string            `json:"eventName"` // 事件名，决定 Fields 的 schema
	Fields    map[string]string `json:"fields"`    // 字段名 → 字符串化取值
}

// DedupeKey 入库判重 key：同一 (signature, eventName) 只入库一次
func (e *DecodedEvent) DedupeKey() string {
	return e.Signature + ":" + e.EventName
}

// Subject 返回事件关联的 task 主体地址，无 task 字段时返回空串
func (e *DecodedEvent) Subject() string {
	return e.Fields["task"]
}
