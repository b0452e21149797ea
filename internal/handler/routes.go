package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"task-indexer-sol/internal/svc"
)

// RegisterHandlers 注册全部 HTTP 路由
func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	server.AddRoutes([]rest.Route{
		{
			Method:  http.MethodPost,
			Path:    "/api/v1/webhook",
			Handler: WebhookHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/history",
			Handler: HistoryQueryHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/history/:address",
			Handler: TaskHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/history/:address/events",
			Handler: TaskEventsHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/events/recent",
			Handler: RecentEventsHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/stats",
			Handler: StatsHandler(svcCtx),
		},
		{
			Method:  http.MethodPost,
			Path:    "/api/v1/backfill",
			Handler: BackfillHandler(svcCtx),
		},
	})
}
