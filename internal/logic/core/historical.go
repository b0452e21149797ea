package core

// TaskStatus 表示任务关闭时的终态
type TaskStatus string

const (
	StatusApproved        TaskStatus = "Approved"        // TaskSettled：交付被采纳并结算
	StatusCancelled       TaskStatus = "Cancelled"       // TaskCancelled：创建者主动取消
	StatusExpired         TaskStatus = "Expired"         // TaskExpired：超过 deadline 自动关闭
	StatusDisputeResolved TaskStatus = "DisputeResolved" // DisputeResolved：仲裁裁决后关闭
)

// terminalEvents 终态事件集合：只有这四类事件会触发历史投影重建
var terminalEvents = map[string]struct{}{
	EventTaskSettled:     {},
	EventTaskCancelled:   {},
	EventTaskExpired:     {},
	EventDisputeResolved: {},
}

// IsTerminalEvent 判断事件名是否属于终态事件
func IsTerminalEvent(name string) bool {
	_, ok := terminalEvents[name]
	return ok
}

// HistoricalTask 表示由事件轨迹折叠出的历史任务快照。
// 链上账户关闭后，该任务只能从这里查询。
type HistoricalTask struct {
	Address string `json:"address"` // task PDA base58，投影主键
	Title   string `json:"title"`   // create_task 指令参数中的标题，未知时为空

	Creator        string `json:"creator"`        // 优先取创建事件，本地窗口缺失时回退终态事件
	TaskIndex      string `json:"taskIndex"`      // 创建事件中的序号
	BountyLamports string `json:"bountyLamports"` // 悬赏金额（lamports，字符串化 u64）
	Deadline       int64  `json:"deadline"`       // 创建事件中的截止时间（Unix 秒）

	FinalStatus TaskStatus `json:"finalStatus"` // 由终态事件类型决定

	Agent            string `json:"agent"`            // 优先取认领事件，回退终态事件
	DeliverableHash  string `json:"deliverableHash"`  // DeliverableSubmitted 中的交付哈希（hex），未提交为空
	PayoutLamports   string `json:"payoutLamports"`   // 终态事件字段，缺省 "0"
	FeeLamports      string `json:"feeLamports"`      // 终态事件字段，缺省 "0"
	RefundedLamports string `json:"refundedLamports"` // 终态事件字段，缺省 "0"

	CreatedAt int64 `json:"createdAt"` // 创建事件 blockTime
	ClosedAt  int64 `json:"closedAt"`  // 终态事件 blockTime

	Events []*DecodedEvent `json:"events"` // 完整事件轨迹，按 blockTime 升序
}
