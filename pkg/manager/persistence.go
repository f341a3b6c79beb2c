package manager

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/pkg/exchange"
)

// PositionEventType distinguishes between open/close lifecycle hooks.
type PositionEventType string

const (
	// PositionEventOpen marks a new position.
	PositionEventOpen PositionEventType = "open"
	// PositionEventClose marks a full close.
	PositionEventClose PositionEventType = "close"
)

// PositionEvent captures the data persistence and notification layers need.
type PositionEvent struct {
	Event      PositionEventType
	Position   Position
	Trade      TradeEntry
	Reason     CloseReason
	Balance    float64
	OccurredAt time.Time
}

// PersistenceService receives position lifecycle events.
type PersistenceService interface {
	RecordPositionEvent(ctx context.Context, event PositionEvent) error
}

// Notifier delivers short operator messages.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Recorder receives trading counters for metrics export.
type Recorder interface {
	OrderSubmitted(symbol string, side exchange.OrderSide, reduceOnly bool)
	OrderFailed(symbol string, kind exchange.ErrorKind)
	PositionOpened(symbol string, side Side)
	PositionClosed(symbol string, reason CloseReason, pnl float64)
	GateRejected(reason string)
}

type noopPersistenceService struct{}

func (noopPersistenceService) RecordPositionEvent(ctx context.Context, event PositionEvent) error {
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, text string) error { return nil }

type noopRecorder struct{}

func (noopRecorder) OrderSubmitted(string, exchange.OrderSide, bool) {}
func (noopRecorder) OrderFailed(string, exchange.ErrorKind) {}
func (noopRecorder) PositionOpened(string, Side) {}
func (noopRecorder) PositionClosed(string, CloseReason, float64) {}
func (noopRecorder) GateRejected(string) {}

// multiPersistence fans an event out to every sink.
type multiPersistence []PersistenceService

func (m multiPersistence) RecordPositionEvent(ctx context.Context, event PositionEvent) error {
	var first error
	for _, p := range m {
		if err := p.RecordPositionEvent(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func logPersistenceError(ctx context.Context, err error, msg string, fields map[string]any) {
	if err == nil {
		return
	}
	logx.WithContext(ctx).Errorf("manager: %s: %v fields=%v", msg, err, fields)
}
