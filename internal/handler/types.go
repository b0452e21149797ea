package handler

// HistoryQueryReq 历史任务列表查询参数
type HistoryQueryReq struct {
	Status  string `form:"status,optional"`
	Creator string `form:"creator,optional"`
	Agent   string `form:"agent,optional"`
	Limit   int    `form:"limit,optional"`
	Offset  int    `form:"offset,optional"`
}

// TaskPathReq 单任务路径参数
type TaskPathReq struct {
	Address string `path:"address"`
}

// RecentEventsReq 最近事件查询参数
type RecentEventsReq struct {
	Limit int `form:"limit,optional"`
}

// BackfillReq 手动触发回扫的参数
type BackfillReq struct {
	Limit  int    `json:"limit,optional"`
	Before string `json:"before,optional"`
}

// WebhookResp webhook 入口的响应：收到多少条事件、实际新增多少条
type WebhookResp struct {
	Received int `json:"received"`
	Ingested int `json:"ingested"`
}

// ErrorResp 统一错误响应体
type ErrorResp struct {
	Error string `json:"error"`
}
