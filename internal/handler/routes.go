package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"genetix/internal/svc"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/api/stats",
				Handler: StatsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/status",
				Handler: StatsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/positions",
				Handler: PositionsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/activity",
				Handler: ActivityHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/snapshot",
				Handler: SnapshotHandler(serverCtx),
			},
		},
	)

	server.AddRoute(rest.Route{
		Method:  http.MethodGet,
		Path:    "/metrics",
		Handler: MetricsHandler(serverCtx),
	})
}
