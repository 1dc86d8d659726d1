package repository

import (
	"context"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"gorm.io/gorm"
)

// ApprovalRepository 审批流水仓储（append-only审计）
type ApprovalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository 创建审批流水仓储
func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Append 追加一条流水
func (r *ApprovalRepository) Append(ctx context.Context, rec *entity.Approval) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListByCard 某张卡的全部流水
func (r *ApprovalRepository) ListByCard(ctx context.Context, cardID string) ([]entity.Approval, error) {
	var recs []entity.Approval
	err := r.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}

// ListByDocument 某份文档的全部流水（跨兄弟卡）
func (r *ApprovalRepository) ListByDocument(ctx context.Context, documentID string) ([]entity.Approval, error) {
	var recs []entity.Approval
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}
