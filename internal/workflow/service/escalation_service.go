package service

import (
	"context"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/engine"
	"github.com/MarioSri/docflow/internal/workflow/entity"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/MarioSri/docflow/internal/workflow/scheduler"
	"go.uber.org/zap"
)

// EscalationService 升级调度服务——调度器的宿主
// 时钟全部落库（escalation_states），进程重启后首次sweep补打错过的deadline
type EscalationService struct {
	repo      *repository.EscalationRepository
	interval  time.Duration
	logger    *zap.Logger
	scheduler *scheduler.Scheduler
}

// NewEscalationService 创建升级调度服务
// 超时处理器因依赖审批服务，装配期通过 SetHandler 注入
func NewEscalationService(repo *repository.EscalationRepository, interval time.Duration, logger *zap.Logger) *EscalationService {
	return &EscalationService{repo: repo, interval: interval, logger: logger}
}

// SetHandler 注入超时处理器并构建调度器
func (s *EscalationService) SetHandler(fire scheduler.FireFunc) {
	s.scheduler = scheduler.New(s.repo, scheduler.SystemClock{}, fire, s.interval, s.logger)
}

// Run 启动后台sweep循环，ctx取消后退出
func (s *EscalationService) Run(ctx context.Context) {
	if s.scheduler == nil {
		s.logger.Error("Escalation scheduler not wired, timers will not fire")
		return
	}
	s.scheduler.Run(ctx)
}

// Arm 装载（或重置）一张卡的升级时钟
func (s *EscalationService) Arm(ctx context.Context, cardID, documentID, mode string, timeoutMs int64, cyclic bool) error {
	if s.scheduler == nil {
		return engine.ErrSchedulerUnavailable
	}
	return s.scheduler.Arm(ctx, cardID, documentID, mode, timeoutMs, cyclic)
}

// Disarm 停表，幂等
func (s *EscalationService) Disarm(ctx context.Context, cardID string) error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Disarm(ctx, cardID)
}

// Status 某张卡的时钟状态（剩余时间、是否循环）
func (s *EscalationService) Status(ctx context.Context, cardID string) (*entity.EscalationState, error) {
	return s.repo.FindByCard(ctx, cardID)
}
