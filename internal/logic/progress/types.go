package progress

// SigStatus 表示交易签名的处理状态（统一 Redis 与 DB 编码）
type SigStatus int

const (
	SigUnknown   SigStatus = 0 // Redis 不存在
	SigProcessed SigStatus = 1 // 已处理成功
	SigInvalid   SigStatus = 2 // 明确结构错误、跳过
	SigPending   SigStatus = 3 // Redis 标记中，暂未完成（仅 Redis 用）
)

// Source 表示签名来源模块
const (
	SourceUnknown  int16 = 0
	SourceWebhook  int16 = 1
	SourceBackfill int16 = 2
)

func SourceName(src int16) string {
	switch src {
	case SourceWebhook:
		return "webhook"
	case SourceBackfill:
		return "backfill"
	default:
		return "unknown"
	}
}

// SigRecord 表示一条待写入 DB 的签名进度记录
type SigRecord struct {
	Signature string    // 交易签名
	Slot      uint64    // 账本位置
	Source    int16     // 来源：1=webhook, 2=backfill
	BlockTime int64     // Unix timestamp（秒）
	Status    SigStatus // 处理状态：1=已处理，2=无效
}
