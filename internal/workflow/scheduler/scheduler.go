package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/engine"
	"github.com/MarioSri/docflow/internal/workflow/entity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store 升级时钟的持久化契约
// 所有deadline都落库：调度器进程重启后仅凭 last_action_at + timeout_ms 即可重建，
// 不允许任何升级状态只活在内存里
type Store interface {
	// Arm 装载（或重置）一张卡的升级时钟
	Arm(ctx context.Context, st *entity.EscalationState) error
	// Disarm 停表（终态迁移、驳回、操作员取消时调用），幂等
	Disarm(ctx context.Context, cardID string) error
	// DisarmIfDeadline 仅当deadline仍是读出时的值才停表
	// Arm会重写deadline，所以deadline变了说明有人刚重新装载过，不能停
	DisarmIfDeadline(ctx context.Context, cardID string, deadline time.Time) error
	// Due 返回所有 deadline 已过且未停表的时钟
	Due(ctx context.Context, now time.Time) ([]entity.EscalationState, error)
}

// FireFunc 时钟到期后的处理回调：把 Escalate 事件打进路由引擎
// 返回 engine.ErrStaleTransition 表示卡片已走到引擎前面，时钟应静默停表
type FireFunc func(ctx context.Context, st entity.EscalationState) error

// Scheduler 升级调度器
// 大量并发时钟靠单个轻量sweep轮询持久化deadline实现，不为每张卡开OS定时器；
// 重新装载/停表由 FireFunc 执行引擎副作用时完成，sweep本身不改时钟
type Scheduler struct {
	store    Store
	clock    Clock
	fire     FireFunc
	interval time.Duration
	logger   *zap.Logger
}

// New 创建调度器；interval 为sweep轮询周期
func New(store Store, clock Clock, fire FireFunc, interval time.Duration, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{store: store, clock: clock, fire: fire, interval: interval, logger: logger}
}

// Arm (重新)装载一张卡的时钟：deadline = now + timeoutMs
// 卡片创建和每次非终态迁移后都会调用
func (s *Scheduler) Arm(ctx context.Context, cardID, documentID, mode string, timeoutMs int64, cyclic bool) error {
	st := &entity.EscalationState{
		ID:         uuid.New().String(),
		CardID:     cardID,
		DocumentID: documentID,
		Mode:       mode,
		TimeoutMs:  timeoutMs,
		Cyclic:     cyclic,
		Deadline:   s.clock.Now().Add(time.Duration(timeoutMs) * time.Millisecond),
		Stopped:    false,
	}
	if err := s.store.Arm(ctx, st); err != nil {
		return fmt.Errorf("装载升级时钟失败: %w", err)
	}
	return nil
}

// Disarm 停表，幂等
func (s *Scheduler) Disarm(ctx context.Context, cardID string) error {
	return s.store.Disarm(ctx, cardID)
}

// Sweep 单次扫描：触发所有已过期时钟
// 启动时立即执行一次——调度器宕机期间错过的deadline必须在恢复后立刻补打，
// 而不是悄悄跳过
func (s *Scheduler) Sweep(ctx context.Context) int {
	now := s.clock.Now()
	due, err := s.store.Due(ctx, now)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("Escalation sweep query failed", zap.Error(err))
		}
		return 0
	}

	fired := 0
	for _, st := range due {
		if err := s.fire(ctx, st); err != nil {
			if errors.Is(err, engine.ErrStaleTransition) {
				// 卡片已被人工操作超越：静默停表。
				// 赢家的迁移可能刚把时钟重新装载过（deadline已变），
				// 条件停表保证输家不会误停那只新表
				s.store.DisarmIfDeadline(ctx, st.CardID, st.Deadline)
				if s.logger != nil {
					s.logger.Info("Escalation skipped",
						zap.String("card_id", st.CardID), zap.Error(err))
				}
				continue
			}
			// 瞬时故障：时钟保持装载，下一轮sweep重试
			if s.logger != nil {
				s.logger.Warn("Escalation fire failed, will retry",
					zap.String("card_id", st.CardID), zap.Error(err))
			}
			continue
		}
		fired++
	}
	return fired
}

// Run 后台sweep循环，ctx取消后退出
func (s *Scheduler) Run(ctx context.Context) {
	if s.logger != nil {
		s.logger.Info("Escalation scheduler started", zap.Duration("interval", s.interval))
	}
	// 恢复补打
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("Escalation scheduler stopped")
			}
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
