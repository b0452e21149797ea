package consts

// DefaultProgramID 任务托管程序的默认 Program ID，可通过配置 program_id 覆盖
const DefaultProgramID = "Coxgjx4UMQZPRdDZT9CAdrvt4TMTyUKH79ziJiNFHk8S"

// MaxTitleLen create_task 指令中 title 参数的 schema 上限（字节）
const MaxTitleLen = 64
