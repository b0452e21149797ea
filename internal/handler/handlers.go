package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"task-indexer-sol/internal/store"
	"task-indexer-sol/internal/svc"
	"task-indexer-sol/pkg/logger"
)

// webhook 请求体上限：单笔交易日志不会超过这个量级
const maxWebhookBody = 8 * 1024 * 1024

// WebhookHandler 接收 Helius 等 webhook 推送的交易，解析事件后入库。
// 对结构不符的载荷宽容处理：能解析多少算多少，始终返回 200。
func WebhookHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "read body failed")
			return
		}

		var payload interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid json payload")
			return
		}

		events := svcCtx.Parser.ParseWebhookPayload(payload)
		ingested := svcCtx.IngestAndPublish(r.Context(), events)

		// 尝试从交易体里恢复任务标题（best-effort）
		titles := svcCtx.Parser.ExtractTitlesFromWebhook(payload)
		for addr, title := range titles {
			svcCtx.Store.SetTitle(addr, title)
		}

		logger.Infof("[Webhook] received %d events, ingested %d", len(events), ingested)
		httpx.OkJsonCtx(r.Context(), w, WebhookResp{Received: len(events), Ingested: ingested})
	}
}

// HistoryQueryHandler 按状态/创建者/执行者过滤历史任务，分页返回
func HistoryQueryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HistoryQueryReq
		if err := httpx.Parse(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		result := svcCtx.Store.Query(store.HistoryQuery{
			Status:  req.Status,
			Creator: req.Creator,
			Agent:   req.Agent,
			Limit:   req.Limit,
			Offset:  req.Offset,
		})
		httpx.OkJsonCtx(r.Context(), w, result)
	}
}

// TaskHandler 查询单个任务的历史投影
func TaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TaskPathReq
		if err := httpx.Parse(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		task, ok := svcCtx.Store.Task(req.Address)
		if !ok {
			writeError(w, r, http.StatusNotFound, "task not found")
			return
		}
		httpx.OkJsonCtx(r.Context(), w, task)
	}
}

// TaskEventsHandler 查询单个任务的完整事件轨迹（按 blockTime 升序）
func TaskEventsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TaskPathReq
		if err := httpx.Parse(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		httpx.OkJsonCtx(r.Context(), w, svcCtx.Store.Trail(req.Address))
	}
}

// RecentEventsHandler 查询最近入库的事件（按到达顺序倒序）
func RecentEventsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecentEventsReq
		if err := httpx.Parse(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		httpx.OkJsonCtx(r.Context(), w, svcCtx.Store.Recent(req.Limit))
	}
}

// StatsHandler 返回索引状态统计
func StatsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.OkJsonCtx(r.Context(), w, svcCtx.Store.Stats())
	}
}

// BackfillHandler 手动触发一次 RPC 回扫，同步返回统计结果
func BackfillHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcCtx.Backfill == nil {
			writeError(w, r, http.StatusServiceUnavailable, "backfill is not configured")
			return
		}

		var req BackfillReq
		if err := httpx.Parse(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		result, err := svcCtx.Backfill.Run(r.Context(), req.Limit, req.Before)
		if err != nil {
			logger.Errorf("[Backfill] manual run failed: %v", err)
			writeError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		httpx.OkJsonCtx(r.Context(), w, result)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	httpx.WriteJsonCtx(r.Context(), w, code, ErrorResp{Error: msg})
}
