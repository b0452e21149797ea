package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"task-indexer-sol/internal/config"
	"task-indexer-sol/internal/logic/core"
	"task-indexer-sol/pkg/logger"
)

const (
	defaultQueryLimit = 100
	defaultMaxLimit   = 500
	defaultDebounce   = 2 * time.Second
)

// EventStore 事件存储 + 历史投影引擎。
// 进程内单实例：追加式事件日志（最新在前）、判重集合、按 task 的事件轨迹索引、
// 历史任务投影表。全部读改写路径由同一把锁保护——判重后插入、追加轨迹后重建投影
// 都不是各自原子的，必须整批互斥。
type EventStore struct {
	mu        sync.RWMutex
	events    []*core.DecodedEvent            // 原始事件日志，最新在前
	processed map[string]struct{}             // 已入库判重 key（signature:eventName）
	trails    map[string][]*core.DecodedEvent // task 地址 → 事件轨迹（到达顺序）
	tasks     map[string]*core.HistoricalTask // task 地址 → 历史投影
	titles    map[string]string               // task 地址 → 标题（来自指令数据）

	dir      string
	maxLimit int

	// 去抖落盘：快速连写合并为静默期后的一次全量快照
	flushMu    sync.Mutex
	flushTimer *time.Timer
	debounce   time.Duration
	closed     bool
}

func NewEventStore(cfg config.StoreConfig) *EventStore {
	maxLimit := cfg.MaxQueryLimit
	if maxLimit <= 0 {
		maxLimit = defaultMaxLimit
	}
	debounce := time.Duration(cfg.FlushDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &EventStore{
		events:    make([]*core.DecodedEvent, 0, 1024),
		processed: make(map[string]struct{}),
		trails:    make(map[string][]*core.DecodedEvent),
		tasks:     make(map[string]*core.HistoricalTask),
		titles:    make(map[string]string),
		dir:       cfg.Dir,
		maxLimit:  maxLimit,
		debounce:  debounce,
	}
}

// Ingest 入库一批已解码事件，返回实际新增条数。
// 同一 (signature, eventName) 幂等：webhook 重投、回扫窗口重叠都会重复送达。
// 返回 0 表示本批全是重复，调用方可据此跳过不必要的落盘。
func (s *EventStore) Ingest(batch []*core.DecodedEvent) int {
	added, _ := s.IngestReturningNew(batch)
	return added
}

// IngestReturningNew 同 Ingest，但额外返回真正新增的事件（供下游外发使用）
func (s *EventStore) IngestReturningNew(batch []*core.DecodedEvent) (int, []*core.DecodedEvent) {
	if len(batch) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	var newEvents []*core.DecodedEvent
	for _, evt := range batch {
		key := evt.DedupeKey()
		if _, seen := s.processed[key]; seen {
			continue
		}
		s.processed[key] = struct{}{}
		newEvents = append(newEvents, evt)

		// 1. 头插原始日志，维持最新在前
		s.events = append(s.events, nil)
		copy(s.events[1:], s.events)
		s.events[0] = evt

		// 2. 追加 task 轨迹
		taskAddr := evt.Subject()
		if taskAddr != "" {
			s.trails[taskAddr] = append(s.trails[taskAddr], evt)
		}

		// 3. 终态事件触发投影重建；非终态事件只进轨迹，不动投影表
		if core.IsTerminalEvent(evt.EventName) && taskAddr != "" {
			s.tasks[taskAddr] = s.projectLocked(taskAddr, evt)
		}
	}
	s.mu.Unlock()

	if len(newEvents) > 0 {
		s.scheduleFlush()
	}
	return len(newEvents), newEvents
}

// projectLocked 把某 task 的完整轨迹折叠为一条历史记录。调用方必须持有写锁。
// 轨迹顺序是到达顺序，回扫与实时 webhook 竞争时可能偏离因果序，
// 因此创建事件按"最早 blockTime 的 TaskCreated"检索，而不是假设轨迹头部。
func (s *EventStore) projectLocked(taskAddr string, terminal *core.DecodedEvent) *core.HistoricalTask {
	trail := s.trails[taskAddr]
	if len(trail) == 0 {
		trail = []*core.DecodedEvent{terminal}
	}

	var created, claimed, submitted *core.DecodedEvent
	for _, evt := range trail {
		switch evt.EventName {
		case core.EventTaskCreated:
			if created == nil || evt.BlockTime < created.BlockTime {
				created = evt
			}
		case core.EventTaskClaimed:
			if claimed == nil {
				claimed = evt
			}
		case core.EventDeliverableSubmitted:
			if submitted == nil {
				submitted = evt
			}
		}
	}

	ht := &core.HistoricalTask{
		Address:          taskAddr,
		Title:            s.titles[taskAddr],
		FinalStatus:      mapTerminalStatus(terminal.EventName),
		PayoutLamports:   fieldOr(terminal, "payout_lamports", "0"),
		FeeLamports:      fieldOr(terminal, "fee_lamports", "0"),
		RefundedLamports: fieldOr(terminal, "refunded_lamports", "0"),
		CreatedAt:        terminal.BlockTime,
		ClosedAt:         terminal.BlockTime,
	}

	// 参与方解析：优先创建/认领事件，本地事件窗口缺失时回退终态事件字段
	ht.Creator = fieldOr(created, "creator", fieldOr(terminal, "creator", ""))
	ht.Agent = fieldOr(claimed, "agent", fieldOr(terminal, "agent", ""))

	if created != nil {
		ht.TaskIndex = fieldOr(created, "task_index", "")
		ht.BountyLamports = fieldOr(created, "bounty_lamports", "0")
		ht.Deadline = parseInt64(fieldOr(created, "deadline", "0"))
		ht.CreatedAt = created.BlockTime
	} else {
		ht.BountyLamports = "0"
	}
	if submitted != nil {
		ht.DeliverableHash = fieldOr(submitted, "deliverable_hash", "")
	}

	ht.Events = sortedByBlockTime(trail)
	return ht
}

// mapTerminalStatus 终态事件名 → 终态状态。
// 终态集合是封闭的且在投影前已做过成员检查，default 分支理应不可达；
// 一旦命中说明上游集合与映射漂移，必须大声报错而不是静默吞掉。
func mapTerminalStatus(eventName string) core.TaskStatus {
	switch eventName {
	case core.EventTaskSettled:
		return core.StatusApproved
	case core.EventTaskCancelled:
		return core.StatusCancelled
	case core.EventTaskExpired:
		return core.StatusExpired
	case core.EventDisputeResolved:
		return core.StatusDisputeResolved
	default:
		logger.Errorf("[EventStore] unrecognized terminal event %q, defaulting to %s", eventName, core.StatusApproved)
		return core.StatusApproved
	}
}

// SetTitle 记录指令数据中恢复的任务标题；已有投影时同步回填。
// 投影记录发布进 s.tasks 后视为只读——Query/Task 把指针交给持锁外的序列化方，
// 回填必须复制替换表项而不是原地改写。
func (s *EventStore) SetTitle(taskAddr, title string) {
	if taskAddr == "" || title == "" {
		return
	}
	s.mu.Lock()
	s.titles[taskAddr] = title
	if ht, ok := s.tasks[taskAddr]; ok {
		clone := *ht
		clone.Title = title
		s.tasks[taskAddr] = &clone
	}
	s.mu.Unlock()

	s.scheduleFlush()
}

// HistoryQuery 历史任务查询条件，零值字段不参与过滤
type HistoryQuery struct {
	Status  string
	Creator string
	Agent   string
	Limit   int
	Offset  int
}

// QueryResult 分页查询结果，Total 为过滤后、分页前的总数
type QueryResult struct {
	Tasks  []*core.HistoricalTask `json:"tasks"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// Query 按等值条件过滤历史任务，按 closedAt 降序分页。
// limit 无论调用方传多大都被钳到 maxLimit，防止响应体失控。
func (s *EventStore) Query(q HistoryQuery) QueryResult {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	filtered := make([]*core.HistoricalTask, 0, len(s.tasks))
	for _, ht := range s.tasks {
		if q.Status != "" && string(ht.FinalStatus) != q.Status {
			continue
		}
		if q.Creator != "" && ht.Creator != q.Creator {
			continue
		}
		if q.Agent != "" && ht.Agent != q.Agent {
			continue
		}
		filtered = append(filtered, ht)
	}
	s.mu.RUnlock()

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].ClosedAt > filtered[j].ClosedAt
	})

	total := len(filtered)
	if offset >= total {
		return QueryResult{Tasks: []*core.HistoricalTask{}, Total: total, Limit: limit, Offset: offset}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return QueryResult{Tasks: filtered[offset:end], Total: total, Limit: limit, Offset: offset}
}

// Task 按地址查询单条历史任务
func (s *EventStore) Task(address string) (*core.HistoricalTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ht, ok := s.tasks[address]
	return ht, ok
}

// Trail 返回某 task 的完整事件轨迹，按 blockTime 升序
func (s *EventStore) Trail(address string) []*core.DecodedEvent {
	s.mu.RLock()
	trail := s.trails[address]
	s.mu.RUnlock()
	return sortedByBlockTime(trail)
}

// Recent 返回原始日志头部的 limit 条（最新在前）
func (s *EventStore) Recent(limit int) []*core.DecodedEvent {
	if limit <= 0 {
		limit = 50
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit > len(s.events) {
		limit = len(s.events)
	}
	result := make([]*core.DecodedEvent, limit)
	copy(result, s.events[:limit])
	return result
}

// Stats 索引器汇总统计
type Stats struct {
	TotalEvents         int                     `json:"totalEvents"`
	TotalHistoricalTask int                     `json:"totalHistoricalTasks"`
	ByStatus            map[core.TaskStatus]int `json:"byStatus"`
	LastEventTime       int64                   `json:"lastEventTime"`
}

func (s *EventStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalEvents:         len(s.events),
		TotalHistoricalTask: len(s.tasks),
		ByStatus:            make(map[core.TaskStatus]int),
	}
	for _, ht := range s.tasks {
		stats.ByStatus[ht.FinalStatus]++
	}
	for _, evt := range s.events {
		if evt.BlockTime > stats.LastEventTime {
			stats.LastEventTime = evt.BlockTime
		}
	}
	return stats
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func fieldOr(evt *core.DecodedEvent, key, def string) string {
	if evt == nil {
		return def
	}
	if v, ok := evt.Fields[key]; ok && v != "" {
		return v
	}
	return def
}

func sortedByBlockTime(trail []*core.DecodedEvent) []*core.DecodedEvent {
	result := make([]*core.DecodedEvent, len(trail))
	copy(result, trail)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].BlockTime < result[j].BlockTime
	})
	return result
}
