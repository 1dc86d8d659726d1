package repository

import (
	"context"
	"errors"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipientRepository 收件人目录仓储
type RecipientRepository struct {
	db *gorm.DB
}

// NewRecipientRepository 创建收件人目录仓储
func NewRecipientRepository(db *gorm.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// FindByIDOrEmail 按目录id、user_id或email解析收件人
func (r *RecipientRepository) FindByIDOrEmail(ctx context.Context, idOrEmail string) (*entity.Recipient, error) {
	var rec entity.Recipient
	err := r.db.WithContext(ctx).
		Where("id = ? OR user_id = ? OR email = ?", idOrEmail, idOrEmail, idOrEmail).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListActive 全部在册收件人
func (r *RecipientRepository) ListActive(ctx context.Context) ([]entity.Recipient, error) {
	var recs []entity.Recipient
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&recs).Error
	return recs, err
}

// ListByRole 按角色查找（升级目标解析用）
func (r *RecipientRepository) ListByRole(ctx context.Context, role string) ([]entity.Recipient, error) {
	var recs []entity.Recipient
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Find(&recs).Error
	return recs, err
}

// Create 创建收件人
func (r *RecipientRepository) Create(ctx context.Context, rec *entity.Recipient) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Update 更新收件人
func (r *RecipientRepository) Update(ctx context.Context, rec *entity.Recipient) error {
	rec.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(rec).Error
}

// UpsertBatch 批量导入（CSV导入用，user_id冲突时更新）
func (r *RecipientRepository) UpsertBatch(ctx context.Context, recs []entity.Recipient) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "role", "department", "updated_at"}),
		}).
		Create(&recs).Error
}
