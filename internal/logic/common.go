package logic

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"genetix/internal/svc"
	"genetix/pkg/manager"
)

// ErrNotInitialized is returned until the scheduler publishes a snapshot.
var ErrNotInitialized = errors.New("bot not initialized")

const activityLimit = 10

func latestSnapshot(svcCtx *svc.ServiceContext) (*manager.Snapshot, error) {
	if svcCtx == nil || svcCtx.Board == nil {
		return nil, ErrNotInitialized
	}
	snap, ok := svcCtx.Board.Latest()
	if !ok {
		return nil, ErrNotInitialized
	}
	return snap, nil
}

func money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

func round2(v float64) float64 { return decimal.NewFromFloat(v).Round(2).InexactFloat64() }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
