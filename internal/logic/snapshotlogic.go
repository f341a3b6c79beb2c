package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/internal/svc"
	"genetix/pkg/manager"
)

type SnapshotLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSnapshotLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SnapshotLogic {
	return &SnapshotLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SnapshotLogic) Snapshot() (*manager.Snapshot, error) {
	return latestSnapshot(l.svcCtx)
}
