package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarioSri/docflow/internal/notify"
	"github.com/MarioSri/docflow/internal/workflow/engine"
	"github.com/MarioSri/docflow/internal/workflow/entity"
	"github.com/MarioSri/docflow/internal/workflow/events"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApprovalService 审批服务——路由引擎的调用方和副作用执行者
// 引擎给出决策（新状态+副作用指令），这里负责CAS落库、装/停时钟、
// 发通知、广播事件；CAS失败的一方整体放弃自己的副作用
type ApprovalService struct {
	repos      *repository.Repositories
	escalation *EscalationService
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewApprovalService 创建审批服务
func NewApprovalService(repos *repository.Repositories, escalation *EscalationService,
	dispatcher notify.Dispatcher, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repos:      repos,
		escalation: escalation,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Approve 审批通过
func (s *ApprovalService) Approve(ctx context.Context, cardID, actorID, comment string) (*entity.ApprovalCard, error) {
	return s.transition(ctx, cardID, engine.Event{
		Type:    engine.EventApprove,
		ActorID: actorID,
		Comment: comment,
	})
}

// Reject 驳回（理由必填）
func (s *ApprovalService) Reject(ctx context.Context, cardID, actorID, reason string) (*entity.ApprovalCard, error) {
	return s.transition(ctx, cardID, engine.Event{
		Type:    engine.EventReject,
		ActorID: actorID,
		Reason:  reason,
	})
}

// CancelEscalation 操作员手动取消升级时钟（对任何卡片状态幂等）
func (s *ApprovalService) CancelEscalation(ctx context.Context, cardID, actorID string) error {
	_, err := s.transition(ctx, cardID, engine.Event{
		Type:    engine.EventCancel,
		ActorID: actorID,
	})
	return err
}

// HandleTimeout 升级时钟到期回调（scheduler.FireFunc）
// 返回 StaleTransition 时调度器会停表；其余错误视为瞬时故障，保持装载待重试
func (s *ApprovalService) HandleTimeout(ctx context.Context, st entity.EscalationState) error {
	_, err := s.transition(ctx, st.CardID, engine.Event{
		Type: engine.EventEscalate,
	})
	if err != nil && errors.Is(err, repository.ErrNotFound) {
		// 卡片已不存在，时钟没有存在的必要
		return fmt.Errorf("%w: 卡片 %s 不存在", engine.ErrStaleTransition, st.CardID)
	}
	return err
}

// GetCard 查卡片（支持内部id或approval_id）
func (s *ApprovalService) GetCard(ctx context.Context, cardID string) (*entity.ApprovalCard, error) {
	return s.repos.Card.FindByID(ctx, cardID)
}

// GetPending 某收件人的当前待办
func (s *ApprovalService) GetPending(ctx context.Context, recipientID string) ([]entity.ApprovalCard, error) {
	return s.repos.Card.ListPendingFor(ctx, recipientID)
}

// GroupStatusResult 并行组完成度（查询兄弟卡实时计算，不做冗余存储）
type GroupStatusResult struct {
	TrackingCardID string                `json:"tracking_card_id"`
	Total          int64                 `json:"total"`
	Approved       int64                 `json:"approved"`
	Rejected       int64                 `json:"rejected"`
	Bypassed       int64                 `json:"bypassed"`
	FullyApproved  bool                  `json:"fully_approved"`
	Cards          []entity.ApprovalCard `json:"cards"`
}

// GroupStatus 并行组整体状态
func (s *ApprovalService) GroupStatus(ctx context.Context, trackingCardID string) (*GroupStatusResult, error) {
	cards, err := s.repos.Card.ListByTracking(ctx, trackingCardID)
	if err != nil {
		return nil, fmt.Errorf("查询兄弟卡失败: %w", err)
	}
	if len(cards) == 0 {
		return nil, repository.ErrNotFound
	}

	res := &GroupStatusResult{TrackingCardID: trackingCardID, Total: int64(len(cards)), Cards: cards}
	for _, c := range cards {
		switch c.Status {
		case entity.CardStatusApproved:
			res.Approved++
		case entity.CardStatusRejected:
			res.Rejected++
		case entity.CardStatusBypassed:
			res.Bypassed++
		}
	}
	res.FullyApproved = res.Approved == res.Total
	return res, nil
}

// ReopenBypass 把已驳回的卡片以绕行方式复活
// 终态卡片不可变更：复活生成一张新的bypassed卡，原卡保留作审计
func (s *ApprovalService) ReopenBypass(ctx context.Context, cardID, actorID string) (*entity.ApprovalCard, error) {
	old, err := s.repos.Card.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if old.Status != entity.CardStatusRejected {
		return nil, fmt.Errorf("%w: 仅已驳回的卡片可绕行复活", engine.ErrStaleTransition)
	}

	now := time.Now()
	card := &entity.ApprovalCard{
		ID:              uuid.New().String(),
		ApprovalID:      fmt.Sprintf("APL-%s", uuid.New().String()[:8]),
		TrackingCardID:  old.TrackingCardID,
		DocumentID:      old.DocumentID,
		Title:           old.Title,
		Priority:        old.Priority,
		Status:          entity.CardStatusBypassed,
		SubmitterID:     old.SubmitterID,
		RoutingType:     old.RoutingType,
		IsParallel:      old.IsParallel,
		IsEmergency:     old.IsEmergency,
		LastActionAt:    now,
		Workflow:        old.Workflow,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, r := range old.Recipients {
		card.Recipients = append(card.Recipients, entity.CardRecipient{
			ID:              uuid.New().String(),
			CardID:          card.ID,
			RecipientID:     r.RecipientID,
			RecipientUserID: r.RecipientUserID,
			RecipientName:   r.RecipientName,
			OrderIndex:      r.OrderIndex,
			StepIndex:       r.StepIndex,
			Status:          entity.CardStatusBypassed,
		})
	}
	if err := s.repos.Card.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("创建绕行卡片失败: %w", err)
	}

	s.repos.Approval.Append(ctx, &entity.Approval{
		ID:         uuid.New().String(),
		CardID:     card.ID,
		DocumentID: card.DocumentID,
		ApproverID: actorID,
		Action:     entity.ActionBypassed,
		Status:     entity.CardStatusBypassed,
		Comments:   fmt.Sprintf("reopened from %s", old.ID),
		CreatedAt:  now,
	})

	// 绕行直达：所有收件人同时收到，不装时钟
	s.notifyAsync(card, recipientIDs(card), "assignment")
	s.emit(engine.TopicApprovalBypassed, card, nil)
	return card, nil
}

// transition 迁移主路径：读卡 → 引擎决策 → CAS落库 → 执行副作用
func (s *ApprovalService) transition(ctx context.Context, cardID string, ev engine.Event) (*entity.ApprovalCard, error) {
	card, err := s.repos.Card.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}

	spec, err := engine.ParseSpec(card.Workflow)
	if err != nil {
		return nil, err
	}

	decision, err := engine.Transition(card, spec, ev)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":               decision.Status,
		"current_recipient_id": decision.CurrentRecipientID,
		"current_step":         decision.CurrentStep,
		"escalation_level":     decision.EscalationLevel,
		"bounce_count":         decision.BounceCount,
		"last_action_at":       decision.LastActionAt,
	}
	if decision.Record != nil {
		decision.Record.ID = uuid.New().String()
	}
	if err := s.repos.Card.ApplyTransition(ctx, card.ID, card.Version,
		updates, decision.RecipientStatus, decision.Record); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			// 竞争落败：别的事件已推进这张卡，丢弃本次决策的全部副作用
			return nil, fmt.Errorf("%w: 卡片 %s 已被并发事件推进", engine.ErrStaleTransition, card.ID)
		}
		return nil, err
	}

	// 落库成功后才执行副作用
	s.execute(ctx, card, spec, decision)

	updated, err := s.repos.Card.FindByID(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// execute 执行引擎返回的副作用指令
func (s *ApprovalService) execute(ctx context.Context, card *entity.ApprovalCard, spec *engine.RouteSpec, d *engine.Decision) {
	mode := entity.EscalationModeSequential
	if card.IsParallel {
		mode = entity.EscalationModeParallel
	}

	for _, eff := range d.Effects {
		switch eff.Kind {
		case engine.EffectArmTimer:
			if !spec.Escalation.Enabled || eff.TimeoutMs <= 0 {
				continue
			}
			if err := s.escalation.Arm(ctx, card.ID, card.DocumentID, mode, eff.TimeoutMs, spec.Escalation.Cyclic); err != nil {
				// 时钟装不上不影响迁移本身：降级为仅人工升级
				s.logger.Warn("Escalation timer arm failed, card degraded",
					zap.String("card_id", card.ID), zap.Error(err))
			}
		case engine.EffectDisarm:
			if err := s.escalation.Disarm(ctx, card.ID); err != nil {
				s.logger.Warn("Escalation timer disarm failed",
					zap.String("card_id", card.ID), zap.Error(err))
			}
		case engine.EffectNotify:
			s.notifyAsync(card, eff.Targets, "assignment")
		case engine.EffectNotifyRole:
			s.notifyRoleAsync(card, eff.Role)
		case engine.EffectEmit:
			s.emit(eff.Topic, card, d)
		}
	}

	if d.CascadeRenotify {
		s.cascadeRenotify(ctx, card)
	}

	if d.Terminal {
		s.finalizeDocument(ctx, card, d.Status)
	}
}

// cascadeRenotify 绕行级联：重新通知同组其余在途兄弟卡的收件人
func (s *ApprovalService) cascadeRenotify(ctx context.Context, card *entity.ApprovalCard) {
	siblings, err := s.repos.Card.ListByTracking(ctx, card.TrackingCardID)
	if err != nil {
		s.logger.Warn("Cascade renotify query failed",
			zap.String("tracking_card_id", card.TrackingCardID), zap.Error(err))
		return
	}
	for i := range siblings {
		sib := &siblings[i]
		if sib.ID == card.ID {
			continue
		}
		if sib.Status != entity.CardStatusPending && sib.Status != entity.CardStatusEscalated {
			continue
		}
		s.notifyAsync(sib, recipientIDs(sib), "reminder")
	}
}

// finalizeDocument 卡片终态后推导文档整体状态
// 并行组：等全组到终态后汇总，串行链直接跟随本卡终态
func (s *ApprovalService) finalizeDocument(ctx context.Context, card *entity.ApprovalCard, status string) {
	docStatus := ""
	if card.IsParallel {
		total, err := s.repos.Card.CountByTracking(ctx, card.TrackingCardID)
		if err != nil {
			s.logger.Warn("Group completion query failed", zap.Error(err))
			return
		}
		approved, _ := s.repos.Card.CountByTrackingAndStatus(ctx, card.TrackingCardID, entity.CardStatusApproved)
		rejected, _ := s.repos.Card.CountByTrackingAndStatus(ctx, card.TrackingCardID, entity.CardStatusRejected)
		bypassed, _ := s.repos.Card.CountByTrackingAndStatus(ctx, card.TrackingCardID, entity.CardStatusBypassed)

		switch {
		case rejected > 0 && approved+rejected+bypassed == total:
			docStatus = entity.DocumentStatusRejected
		case approved > 0 && approved+bypassed == total:
			// 绕行后剩余审批人全部通过，视为通过
			docStatus = entity.DocumentStatusApproved
		case bypassed == total:
			docStatus = entity.DocumentStatusBypassed
		}
	} else {
		docStatus = status
	}

	if docStatus == "" {
		return
	}
	if err := s.repos.Document.UpdateStatus(ctx, card.DocumentID, docStatus); err != nil {
		s.logger.Warn("Document status update failed",
			zap.String("document_id", card.DocumentID), zap.Error(err))
	}
}

// notifyAsync 异步通知收件人，失败只记日志不回传
func (s *ApprovalService) notifyAsync(card *entity.ApprovalCard, targets []string, kind string) {
	if len(targets) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, t := range targets {
			if err := s.dispatcher.Dispatch(ctx, notify.Message{
				RecipientID: t,
				CardID:      card.ID,
				TrackingID:  card.DocumentID,
				Title:       card.Title,
				Kind:        kind,
			}); err != nil {
				s.logger.Warn("Notification dispatch failed",
					zap.String("recipient", t), zap.String("card_id", card.ID), zap.Error(err))
			}
		}
	}()
}

// notifyRoleAsync 按角色解析收件人后异步通知（升级目标）
func (s *ApprovalService) notifyRoleAsync(card *entity.ApprovalCard, role string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		recs, err := s.repos.Recipient.ListByRole(ctx, role)
		if err != nil {
			s.logger.Warn("Escalation role lookup failed",
				zap.String("role", role), zap.Error(err))
			return
		}
		if len(recs) == 0 {
			s.logger.Warn("Escalation role has no active recipients",
				zap.String("role", role), zap.String("card_id", card.ID))
			return
		}
		for _, rec := range recs {
			if err := s.dispatcher.Dispatch(ctx, notify.Message{
				RecipientID: rec.UserID,
				CardID:      card.ID,
				TrackingID:  card.DocumentID,
				Title:       card.Title,
				Kind:        "escalation",
			}); err != nil {
				s.logger.Warn("Escalation notification failed",
					zap.String("recipient", rec.UserID), zap.Error(err))
			}
		}
	}()
}

// emit 广播事件到hub（SSE订阅方消费）
func (s *ApprovalService) emit(topic string, card *entity.ApprovalCard, d *engine.Decision) {
	ev := events.Event{
		Topic:      topic,
		TrackingID: card.DocumentID,
		CardID:     card.ID,
	}
	if d != nil {
		ev.CurrentRecipientID = d.CurrentRecipientID
		ev.EscalationLevel = d.EscalationLevel
	} else {
		ev.CurrentRecipientID = card.CurrentRecipientID
		ev.EscalationLevel = card.EscalationLevel
	}
	ev.RecipientIDs = recipientIDs(card)
	events.GlobalHub.Publish(ev)
}

func recipientIDs(card *entity.ApprovalCard) []string {
	ids := make([]string, 0, len(card.Recipients))
	for _, r := range card.Recipients {
		ids = append(ids, r.RecipientID)
	}
	return ids
}
