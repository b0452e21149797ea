package svc

import (
	"context"
	"database/sql"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"task-indexer-sol/internal/config"
	"task-indexer-sol/internal/logic/backfill"
	"task-indexer-sol/internal/logic/core"
	"task-indexer-sol/internal/logic/eventparser"
	"task-indexer-sol/internal/logic/progress"
	"task-indexer-sol/internal/mq"
	"task-indexer-sol/internal/store"
	"task-indexer-sol/pkg/logger"
)

const kafkaSendTimeout = 10 * time.Second

// ServiceContext 聚合索引服务的全部资源：解析器、事件存储、Kafka、进度管理、回扫服务
type ServiceContext struct {
	Config          config.IndexerConfig
	Parser          *eventparser.Parser
	Store           *store.EventStore
	Producer        *kafka.Producer
	ProgressManager *progress.Manager
	Backfill        *backfill.Service

	rdb *redis.Client
	db  *sql.DB
}

// NewServiceContext 创建服务上下文。
// Kafka / Redis / Postgres 均按配置可选：未配置的资源直接旁路，不影响核心索引链路。
func NewServiceContext(c config.IndexerConfig) (*ServiceContext, error) {
	ctx := &ServiceContext{Config: c}

	// 1. 事件解析器
	ctx.Parser = eventparser.NewParser(c.ProgramID)

	// 2. 事件存储：先加载已有快照再对外服务
	ctx.Store = store.NewEventStore(c.StoreConf)
	ctx.Store.Load()

	// 3. Kafka 生产者（可选）
	if c.KafkaProducerConf.Brokers != "" {
		producer, err := mq.NewKafkaProducer(c.KafkaProducerConf)
		if err != nil {
			logger.Errorf("[Svc] Kafka producer 初始化失败: %v", err)
			ctx.Close()
			return nil, err
		}
		ctx.Producer = producer
	}

	// 4. Redis 客户端（可选，用于回扫签名判重）
	var redisStore *progress.RedisProgressStore
	if c.RedisAddr != "" {
		ctx.rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		redisStore = progress.NewRedisProgressStore(ctx.rdb)
	}

	// 5. PostgreSQL（可选，进度持久化）
	var dbStore *progress.DBProgressStore
	if c.PostgresDSN != "" {
		db, err := sql.Open("postgres", c.PostgresDSN)
		if err != nil {
			logger.Errorf("[Svc] PostgreSQL 连接失败: %v", err)
			ctx.Close()
			return nil, err
		}
		ctx.db = db
		dbStore = progress.NewDBProgressStore(db)
	}

	// 6. 进度管理器
	ctx.ProgressManager = progress.NewManager(redisStore, dbStore, c.ProgressConf.RecentThresholdSec)

	// 7. 回扫服务（可选）
	if c.BackfillConf.Endpoint != "" {
		bf, err := backfill.NewService(c.BackfillConf, ctx.Parser, ctx.Store, ctx.ProgressManager)
		if err != nil {
			ctx.Close()
			return nil, err
		}
		ctx.Backfill = bf
	}

	logger.Infof("[Svc] 服务上下文初始化完成: program=%s", ctx.Parser.ProgramID())
	return ctx, nil
}

// IngestAndPublish 入库一批事件，并把真正新增的事件推送 Kafka。
// 返回新增数量。Kafka 未配置或发送失败只影响下游消费，不影响入库结果。
func (ctx *ServiceContext) IngestAndPublish(reqCtx context.Context, events []*core.DecodedEvent) int {
	ingested, added := ctx.Store.IngestReturningNew(events)
	if ctx.Producer == nil || len(added) == 0 {
		return ingested
	}

	jobs := mq.BuildEventJobs(ctx.Config.KafkaProducerConf.Topic, ctx.Config.KafkaProducerConf.Partitions, added)
	_, failed := mq.SendKafkaJobs(reqCtx, ctx.Producer, jobs, kafkaSendTimeout)
	if len(failed) > 0 {
		logger.Warnf("[Svc] %d/%d 条事件消息发送失败", len(failed), len(jobs))
	}
	return ingested
}

// Close 关闭服务上下文中的资源
func (ctx *ServiceContext) Close() {
	if ctx.Store != nil {
		ctx.Store.Close()
	}
	if ctx.Producer != nil {
		ctx.Producer.Close()
	}
	if ctx.rdb != nil {
		_ = ctx.rdb.Close()
	}
	if ctx.db != nil {
		_ = ctx.db.Close()
	}
}
