package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"genetix/internal/logic"
	"genetix/internal/types"
)

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, logic.ErrNotInitialized) {
		httpx.WriteJsonCtx(ctx, w, http.StatusServiceUnavailable, types.ErrorResponse{Error: err.Error()})
		return
	}
	httpx.WriteJsonCtx(ctx, w, http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
}
