package config

import (
	"task-indexer-sol/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// StoreConfig 表示事件存储（内存 + 快照文件）相关配置
type StoreConfig struct {
	Dir             string `yaml:"dir"`               // 快照文件目录（events.json / historical.json）
	FlushDebounceMs int    `yaml:"flush_debounce_ms"` // 去抖落盘的静默窗口（毫秒），默认 2000
	MaxQueryLimit   int    `yaml:"max_query_limit"`   // query 单页上限，默认 500
}

// RestConfig 表示 HTTP API 监听配置
type RestConfig struct {
	Host string `yaml:"host"` // 监听地址，默认 0.0.0.0
	Port int    `yaml:"port"` // 监听端口
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置。
// Brokers 为空时不启用事件外发。
type KafkaProducerConfig struct {
	Brokers    string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	Topic      string `yaml:"topic"`      // 新入库事件的外发 topic
	Partitions int    `yaml:"partitions"` // topic 分区数（自动建 topic 时使用）
	BatchSize  int    `yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs   int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）
}

// BackfillConfig 表示 RPC 历史回扫配置。
// Endpoint 为空时不启用回扫服务（仅能通过 HTTP 手动触发时也需要 endpoint）。
type BackfillConfig struct {
	Endpoint      string `yaml:"endpoint"`        // Solana RPC 地址
	IntervalS     int    `yaml:"interval_s"`      // 周期回扫间隔（秒），0 表示只接受手动触发
	SigPageSize   int    `yaml:"sig_page_size"`   // 单次 getSignaturesForAddress 的分页大小，默认 100
	TxBatch       int    `yaml:"tx_batch"`        // 单批并发拉取交易数，默认 20
	MaxSignatures int    `yaml:"max_signatures"`  // 单次回扫签名数上限，默认 500，硬上限 2000
}

// IndexerConfig 是主配置结构体，用于驱动索引器服务
type IndexerConfig struct {
	LogConf           LogConfig           `yaml:"logger"`         // 日志配置
	StoreConf         StoreConfig         `yaml:"store"`          // 事件存储配置
	RestConf          RestConfig          `yaml:"rest"`           // HTTP API 配置
	KafkaProducerConf KafkaProducerConfig `yaml:"kafka_producer"` // Kafka 生产者配置
	BackfillConf      BackfillConfig      `yaml:"backfill"`       // RPC 回扫配置

	ProgramID string `yaml:"program_id"` // 目标程序 Program ID，空时使用默认值

	RedisAddr    string `yaml:"redis_addr"`   // Redis 地址（回扫判重，可为空）
	PostgresDSN  string `yaml:"postgres_dsn"` // PostgreSQL 数据源（回扫判重 fallback，可为空）
	ProgressConf struct {
		RecentThresholdSec int `yaml:"recent_threshold_sec"` // 判定为"近期交易"的时间阈值（秒）
	} `yaml:"progress"` // 回扫进度管理配置
}
