package repository

import (
	"context"
	"errors"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EscalationRepository 升级时钟仓储，实现 scheduler.Store
type EscalationRepository struct {
	db *gorm.DB
}

// NewEscalationRepository 创建升级时钟仓储
func NewEscalationRepository(db *gorm.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// Arm 装载时钟：同一card_id存在则重置deadline并复活
func (r *EscalationRepository) Arm(ctx context.Context, st *entity.EscalationState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "card_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"deadline", "timeout_ms", "cyclic", "mode", "stopped", "updated_at",
			}),
		}).
		Create(st).Error
}

// Disarm 停表，幂等（不存在时也不报错）
func (r *EscalationRepository) Disarm(ctx context.Context, cardID string) error {
	return r.db.WithContext(ctx).
		Model(&entity.EscalationState{}).
		Where("card_id = ?", cardID).
		Updates(map[string]interface{}{
			"stopped":    true,
			"updated_at": time.Now(),
		}).Error
}

// DisarmIfDeadline 条件停表：deadline已被重新装载改写时不动
func (r *EscalationRepository) DisarmIfDeadline(ctx context.Context, cardID string, deadline time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.EscalationState{}).
		Where("card_id = ? AND deadline = ? AND stopped = ?", cardID, deadline, false).
		Updates(map[string]interface{}{
			"stopped":    true,
			"updated_at": time.Now(),
		}).Error
}

// Due 所有到期且未停表的时钟
func (r *EscalationRepository) Due(ctx context.Context, now time.Time) ([]entity.EscalationState, error) {
	var states []entity.EscalationState
	err := r.db.WithContext(ctx).
		Where("stopped = ? AND deadline <= ?", false, now).
		Order("deadline ASC").
		Find(&states).Error
	return states, err
}

// FindByCard 某张卡的时钟状态
func (r *EscalationRepository) FindByCard(ctx context.Context, cardID string) (*entity.EscalationState, error) {
	var st entity.EscalationState
	err := r.db.WithContext(ctx).Where("card_id = ?", cardID).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}
