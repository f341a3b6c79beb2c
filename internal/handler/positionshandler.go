package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"genetix/internal/logic"
	"genetix/internal/svc"
)

func PositionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewPositionsLogic(r.Context(), svcCtx)
		resp, err := l.Positions()
		if err != nil {
			writeError(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
