package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"genetix/internal/logic"
	"genetix/internal/svc"
)

func SnapshotHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewSnapshotLogic(r.Context(), svcCtx)
		resp, err := l.Snapshot()
		if err != nil {
			writeError(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
