package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"genetix/internal/logic"
	"genetix/internal/svc"
)

func ActivityHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewActivityLogic(r.Context(), svcCtx)
		resp, err := l.Activity()
		if err != nil {
			writeError(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
