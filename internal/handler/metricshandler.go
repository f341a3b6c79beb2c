package handler

import (
	"net/http"

	"genetix/internal/svc"
)

func MetricsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return svcCtx.Metrics.Handler().ServeHTTP
}
