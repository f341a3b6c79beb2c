package logic

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/internal/svc"
	"genetix/internal/types"
	"genetix/pkg/manager"
)

type ActivityLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewActivityLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ActivityLogic {
	return &ActivityLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Activity returns the newest trades first.
func (l *ActivityLogic) Activity() (*types.ActivityResponse, error) {
	snap, err := latestSnapshot(l.svcCtx)
	if err != nil {
		return nil, err
	}
	trades := snap.RecentTrades
	if len(trades) > activityLimit {
		trades = trades[len(trades)-activityLimit:]
	}
	resp := &types.ActivityResponse{Activity: make([]types.ActivityItem, 0, len(trades))}
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		item := types.ActivityItem{
			Timestamp: formatTime(t.Timestamp),
			Symbol:    t.Symbol,
			Action:    string(t.Action),
			Side:      string(t.Side),
			Quantity:  t.Quantity.InexactFloat64(),
			Price:     t.Price.InexactFloat64(),
			Reason:    t.Reason,
			Message:   activityMessage(t),
		}
		if t.PnL != nil {
			pnl := money(*t.PnL)
			item.PnL = &pnl
		}
		resp.Activity = append(resp.Activity, item)
	}
	return resp, nil
}

func activityMessage(t manager.TradeEntry) string {
	if t.Action == manager.TradeOpen {
		return fmt.Sprintf("Opened %s %s @ %s (confidence %.0f%%)", t.Side, t.Symbol, t.Price.StringFixed(2), t.Confidence*100)
	}
	msg := fmt.Sprintf("Closed %s @ %s", t.Symbol, t.Price.StringFixed(2))
	if t.Reason != "" {
		msg += " (" + t.Reason + ")"
	}
	if t.PnL != nil {
		msg += fmt.Sprintf(": %s USDT", t.PnL.StringFixed(2))
	}
	if t.PnLPercent != nil {
		msg += fmt.Sprintf(" (%+.2f%%)", *t.PnLPercent)
	}
	return msg
}
