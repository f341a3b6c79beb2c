package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/internal/svc"
	"genetix/internal/types"
)

type StatsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStatsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StatsLogic {
	return &StatsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *StatsLogic) Stats() (*types.StatsResponse, error) {
	snap, err := latestSnapshot(l.svcCtx)
	if err != nil {
		return nil, err
	}
	acct := snap.Account
	return &types.StatsResponse{
		Balance:           money(acct.Balance),
		InitialBalance:    money(acct.InitialBalance),
		DailyPnL:          money(acct.DailyPnL),
		DailyPnLPercent:   round2(snap.DailyPnLPercent),
		TotalPnL:          money(snap.TotalPnL),
		TotalPnLPercent:   round2(snap.TotalPnLPercent),
		Positions:         len(snap.Positions),
		MaxPositions:      snap.MaxPositions,
		TradesOpened:      snap.Counters.TradesOpened,
		TradesClosed:      snap.Counters.TradesClosed,
		Wins:              snap.Counters.Wins,
		Losses:            snap.Counters.Losses,
		WinRate:           round2(snap.WinRate),
		ConsecutiveLosses: snap.Counters.ConsecutiveLosses,
		TradingAllowed:    snap.Gate.Allowed,
		GateReason:        snap.Gate.Reason,
		Status:            snap.Status,
		DryRun:            snap.DryRun,
		UpdatedAt:         formatTime(snap.Timestamp),
	}, nil
}
