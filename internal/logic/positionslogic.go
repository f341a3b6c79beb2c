package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/internal/svc"
	"genetix/internal/types"
)

type PositionsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewPositionsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *PositionsLogic {
	return &PositionsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *PositionsLogic) Positions() (*types.PositionsResponse, error) {
	snap, err := latestSnapshot(l.svcCtx)
	if err != nil {
		return nil, err
	}
	resp := &types.PositionsResponse{
		Count:     len(snap.Positions),
		Positions: make([]types.PositionItem, 0, len(snap.Positions)),
	}
	for _, p := range snap.Positions {
		resp.Positions = append(resp.Positions, types.PositionItem{
			Symbol:          p.Symbol,
			Side:            string(p.Side),
			EntryPrice:      p.EntryPrice.InexactFloat64(),
			CurrentPrice:    p.CurrentPrice.InexactFloat64(),
			Quantity:        p.Size.InexactFloat64(),
			Leverage:        p.Leverage,
			PnL:             money(p.PnL),
			PnLPercent:      round2(p.PnLPercent),
			EntryTime:       formatTime(p.EntryTime),
			DurationSeconds: p.DurationSeconds,
		})
	}
	return resp, nil
}
