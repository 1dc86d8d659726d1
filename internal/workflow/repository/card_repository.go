package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"gorm.io/gorm"
)

// ErrVersionConflict 卡片version已被别人推进（CAS失败）
var ErrVersionConflict = errors.New("card version conflict")

// CardRepository 审批卡片仓储
type CardRepository struct {
	db *gorm.DB
}

// NewCardRepository 创建审批卡片仓储
func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create 创建卡片及其收件人（事务）
func (r *CardRepository) Create(ctx context.Context, card *entity.ApprovalCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// CreateBatch 并行模式批量创建兄弟卡（同一事务，tracking_card_id相同）
func (r *CardRepository) CreateBatch(ctx context.Context, cards []*entity.ApprovalCard) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, card := range cards {
			if err := tx.Create(card).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID 根据ID查找卡片（含收件人）
func (r *CardRepository) FindByID(ctx context.Context, id string) (*entity.ApprovalCard, error) {
	var card entity.ApprovalCard
	err := r.db.WithContext(ctx).
		Preload("Recipients", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Where("id = ? OR approval_id = ?", id, id).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

// ListByTracking 同一tracking下的全部兄弟卡
func (r *CardRepository) ListByTracking(ctx context.Context, trackingID string) ([]entity.ApprovalCard, error) {
	var cards []entity.ApprovalCard
	err := r.db.WithContext(ctx).
		Preload("Recipients").
		Where("tracking_card_id = ?", trackingID).
		Order("created_at ASC").
		Find(&cards).Error
	return cards, err
}

// ListPendingFor 某收件人当前待办的卡片
// 链式卡只有当前步骤的收件人在责（会签时含尚未表态的同步骤人），
// 未来步骤的收件人不算待办；并行兄弟卡每张只有一个收件人，天然在责
func (r *CardRepository) ListPendingFor(ctx context.Context, recipientID string) ([]entity.ApprovalCard, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&entity.CardRecipient{}).
		Select("approval_card_recipients.card_id").
		Joins("JOIN approval_cards ON approval_cards.id = approval_card_recipients.card_id").
		Where("(approval_card_recipients.recipient_id = ? OR approval_card_recipients.recipient_user_id = ?) AND approval_card_recipients.status = ?",
			recipientID, recipientID, entity.CardStatusPending).
		Where("approval_cards.is_parallel = ? OR approval_card_recipients.step_index = approval_cards.current_step",
			true).
		Find(&ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []entity.ApprovalCard{}, nil
	}

	var cards []entity.ApprovalCard
	err := r.db.WithContext(ctx).
		Preload("Recipients", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Where("status IN ?", []string{entity.CardStatusPending, entity.CardStatusEscalated}).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Find(&cards).Error
	return cards, err
}

// ApplyTransition 以compare-and-set落盘一次引擎决策
// WHERE version = ? 保证同一张卡的并发事件串行化：输掉竞争的一方
// RowsAffected为0，上层应将其视为 StaleTransition
func (r *CardRepository) ApplyTransition(ctx context.Context, cardID string, expectedVersion int64,
	updates map[string]interface{}, recipientStatus map[string]string, record *entity.Approval) error {

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates["version"] = expectedVersion + 1
		updates["updated_at"] = time.Now()

		result := tx.Model(&entity.ApprovalCard{}).
			Where("id = ? AND version = ?", cardID, expectedVersion).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("更新卡片失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		now := time.Now()
		for recipientRowID, status := range recipientStatus {
			ru := map[string]interface{}{"status": status}
			if status != entity.CardStatusPending {
				ru["decided_at"] = now
			} else {
				ru["decided_at"] = nil
			}
			if err := tx.Model(&entity.CardRecipient{}).
				Where("id = ?", recipientRowID).
				Updates(ru).Error; err != nil {
				return fmt.Errorf("更新收件人状态失败: %w", err)
			}
		}

		if record != nil {
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("写入审批流水失败: %w", err)
			}
		}
		return nil
	})
}

// CountByTrackingAndStatus 同组兄弟卡中处于指定状态的数量（并行组完成度判定）
func (r *CardRepository) CountByTrackingAndStatus(ctx context.Context, trackingID, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ApprovalCard{}).
		Where("tracking_card_id = ? AND status = ?", trackingID, status).
		Count(&count).Error
	return count, err
}

// CountByTracking 同组兄弟卡总数
func (r *CardRepository) CountByTracking(ctx context.Context, trackingID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ApprovalCard{}).
		Where("tracking_card_id = ?", trackingID).
		Count(&count).Error
	return count, err
}
