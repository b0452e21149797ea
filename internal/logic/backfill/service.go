package backfill

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"

	"task-indexer-sol/internal/config"
	"task-indexer-sol/internal/logic/eventparser"
	"task-indexer-sol/internal/logic/progress"
	"task-indexer-sol/internal/store"
	"task-indexer-sol/pkg/logger"
)

const (
	defaultSigPageSize = 100
	defaultTxBatch     = 20
	defaultLimit       = 500
	hardLimit          = 2000
)

// Result 单次回扫的统计结果
type Result struct {
	SignaturesScanned   int   `json:"signaturesScanned"`
	TransactionsFetched int   `json:"transactionsFetched"`
	EventsParsed        int   `json:"eventsParsed"`
	EventsIngested      int   `json:"eventsIngested"`
	Errors              int   `json:"errors"`
	DurationMs          int64 `json:"durationMs"`
}

// Service RPC 历史回扫服务：分页扫描目标程序的交易签名，补齐 webhook 漏掉的事件。
// 可配置周期运行，也可由 HTTP 入口手动触发单次 Run。
type Service struct {
	cfg      config.BackfillConfig
	parser   *eventparser.Parser
	store    *store.EventStore
	progress *progress.Manager // 可为 nil：纯靠事件存储自身判重
	client   *client.Client

	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc

	runMu sync.Mutex // 同一时刻只允许一次回扫在跑
}

func NewService(cfg config.BackfillConfig, parser *eventparser.Parser, st *store.EventStore, pm *progress.Manager) (*Service, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("backfill endpoint is empty")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		parser:   parser,
		store:    st,
		progress: pm,
		client:   client.NewClient(cfg.Endpoint),
		interval: time.Duration(cfg.IntervalS) * time.Second,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start 实现 service.Service。interval 为 0 时只挂起等待手动触发。
func (s *Service) Start() {
	if s.interval > 0 {
		s.scheduleNext()
	}
	<-s.stopChan
}

func (s *Service) scheduleNext() {
	time.AfterFunc(s.interval, func() {
		if _, err := s.Run(s.ctx, 0, ""); err != nil {
			logger.Warnf("[Backfill] periodic run failed: %v", err)
		}
		// 如果没有被 Stop，就继续调度
		select {
		case <-s.ctx.Done():
			return
		default:
			s.scheduleNext()
		}
	})
}

func (s *Service) Stop() {
	s.cancel()
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Run 执行一次回扫：分页拉签名 → 过滤失败交易 → 倒序成时间正序 → 分批拉交易并入库。
// limit<=0 使用配置/默认值，硬上限 2000。单笔交易失败计入 Errors，不中断整轮。
func (s *Service) Run(ctx context.Context, limit int, before string) (result *Result, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Backfill] run panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("backfill panic: %v", r)
		}
	}()

	start := time.Now()
	result = &Result{}

	if limit <= 0 {
		limit = s.cfg.MaxSignatures
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > hardLimit {
		limit = hardLimit
	}

	// 1. 分页拉取签名
	sigs, err := s.fetchSignatures(ctx, limit, before)
	if err != nil {
		result.DurationMs = time.Since(start).Milliseconds()
		return result, err
	}
	result.SignaturesScanned = len(sigs)
	logger.Infof("[Backfill] found %d signatures to process", len(sigs))

	// 2. 过滤失败交易并倒序：让 TaskCreated 先于终态事件入库
	valid := make([]rpc.SignatureWithStatus, 0, len(sigs))
	for i := len(sigs) - 1; i >= 0; i-- {
		if sigs[i].Err == nil {
			valid = append(valid, sigs[i])
		}
	}

	// 3. 分批并发拉交易、解析入库
	txBatch := s.cfg.TxBatch
	if txBatch <= 0 {
		txBatch = defaultTxBatch
	}
	for i := 0; i < len(valid); i += txBatch {
		select {
		case <-ctx.Done():
			result.DurationMs = time.Since(start).Milliseconds()
			return result, ctx.Err()
		default:
		}

		end := i + txBatch
		if end > len(valid) {
			end = len(valid)
		}
		s.processBatch(ctx, valid[i:end], result)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	logger.Infof("[Backfill] done in %dms: %d sigs, %d txns, %d events parsed, %d ingested, %d errors",
		result.DurationMs, result.SignaturesScanned, result.TransactionsFetched,
		result.EventsParsed, result.EventsIngested, result.Errors)
	return result, nil
}

// fetchSignatures 按页拉取目标程序的历史签名，直到凑满 limit 或翻到头
func (s *Service) fetchSignatures(ctx context.Context, limit int, before string) ([]rpc.SignatureWithStatus, error) {
	pageSize := s.cfg.SigPageSize
	if pageSize <= 0 {
		pageSize = defaultSigPageSize
	}

	var all []rpc.SignatureWithStatus
	for len(all) < limit {
		page := pageSize
		if remain := limit - len(all); remain < page {
			page = remain
		}

		callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		batch, err := s.client.GetSignaturesForAddressWithConfig(callCtx, s.parser.ProgramID(),
			client.GetSignaturesForAddressConfig{
				Limit:      page,
				Before:     before,
				Commitment: rpc.CommitmentConfirmed,
			})
		cancel()
		if err != nil {
			return all, fmt.Errorf("getSignaturesForAddress failed: %w", err)
		}

		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		before = batch[len(batch)-1].Signature
	}
	return all, nil
}

// processBatch 并发拉取一批交易并串行聚合结果（入库本身由 store 的锁保护）
func (s *Service) processBatch(ctx context.Context, batch []rpc.SignatureWithStatus, result *Result) {
	type txResult struct {
		sig rpc.SignatureWithStatus
		tx  *client.Transaction
		err error
	}

	var wg sync.WaitGroup
	resultCh := make(chan txResult, len(batch))

	for _, sig := range batch {
		// 进度判重：旧签名已处理过的直接跳过，不再打 RPC
		if s.progress != nil {
			blockTime := int64(0)
			if sig.BlockTime != nil {
				blockTime = *sig.BlockTime
			}
			should, err := s.progress.ShouldProcessSig(ctx, sig.Signature, blockTime)
			if err != nil {
				logger.Warnf("[Backfill] progress check failed for %s: %v", sig.Signature, err)
			} else if !should {
				continue
			}

			// 拉取前先标记 Pending，失败的签名带 TTL 自动过期后可重试
			err = s.progress.MarkSigStatus(ctx, &progress.SigRecord{
				Signature: sig.Signature,
				Slot:      sig.Slot,
				Source:    progress.SourceBackfill,
				BlockTime: blockTime,
				Status:    progress.SigPending,
			})
			if err != nil {
				logger.Warnf("[Backfill] mark pending failed for %s: %v", sig.Signature, err)
			}
		}

		wg.Add(1)
		go func(sig rpc.SignatureWithStatus) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			tx, err := s.client.GetTransaction(callCtx, sig.Signature)
			cancel()
			resultCh <- txResult{sig: sig, tx: tx, err: err}
		}(sig)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for res := range resultCh {
		if res.err != nil || res.tx == nil {
			result.Errors++
			continue
		}
		s.processTransaction(ctx, res.sig, res.tx, result)
	}
}

func (s *Service) processTransaction(ctx context.Context, sig rpc.SignatureWithStatus, tx *client.Transaction, result *Result) {
	if tx.Meta == nil || len(tx.Meta.LogMessages) == 0 {
		return
	}
	result.TransactionsFetched++

	blockTime := time.Now().Unix()
	if tx.BlockTime != nil {
		blockTime = *tx.BlockTime
	}

	events := s.parser.ParseEventsFromLogs(tx.Meta.LogMessages, sig.Signature, tx.Slot, blockTime)
	if len(events) > 0 {
		result.EventsParsed += len(events)
		result.EventsIngested += s.store.Ingest(events)
	}

	// 标题恢复是 best-effort：失败不计入 Errors
	titles := s.parser.ExtractTitles(txMessageFromSDK(tx))
	for addr, title := range titles {
		s.store.SetTitle(addr, title)
	}

	if s.progress != nil {
		err := s.progress.MarkSigStatus(ctx, &progress.SigRecord{
			Signature: sig.Signature,
			Slot:      tx.Slot,
			Source:    progress.SourceBackfill,
			BlockTime: blockTime,
			Status:    progress.SigProcessed,
		})
		if err != nil {
			logger.Warnf("[Backfill] mark progress failed for %s: %v", sig.Signature, err)
		}
	}
}

// txMessageFromSDK 把 SDK 交易转换成解析器的中立 message 表示
func txMessageFromSDK(tx *client.Transaction) *eventparser.TxMessage {
	msg := tx.Transaction.Message

	keys := make([]string, 0, len(msg.Accounts))
	for _, key := range msg.Accounts {
		keys = append(keys, key.ToBase58())
	}

	result := &eventparser.TxMessage{AccountKeys: keys}
	for _, ix := range msg.Instructions {
		result.Instructions = append(result.Instructions, eventparser.TxInstruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			Accounts:       ix.Accounts,
			Data:           ix.Data,
		})
	}
	return result
}
