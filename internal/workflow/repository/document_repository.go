package repository

import (
	"context"
	"errors"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"gorm.io/gorm"
)

// DocumentRepository 文档仓储
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create 创建文档及其收件人链（事务）
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// FindByTrackingID 根据tracking_id查找文档
func (r *DocumentRepository) FindByTrackingID(ctx context.Context, trackingID string) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).
		Preload("Recipients", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Where("tracking_id = ?", trackingID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// UpdateStatus 更新文档整体状态
func (r *DocumentRepository) UpdateStatus(ctx context.Context, trackingID, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Document{}).
		Where("tracking_id = ?", trackingID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// SetAttachment 记录附件的对象存储引用
func (r *DocumentRepository) SetAttachment(ctx context.Context, trackingID, objectKey, fileName string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Document{}).
		Where("tracking_id = ?", trackingID).
		Updates(map[string]interface{}{
			"attachment_key":  objectKey,
			"attachment_name": fileName,
			"updated_at":      time.Now(),
		}).Error
}

// ListBySubmitter 某提交人的全部文档
func (r *DocumentRepository) ListBySubmitter(ctx context.Context, submitterID string) ([]entity.Document, error) {
	var docs []entity.Document
	err := r.db.WithContext(ctx).
		Preload("Recipients").
		Where("submitter_id = ?", submitterID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

// List 文档列表（可按状态过滤）
func (r *DocumentRepository) List(ctx context.Context, status string) ([]entity.Document, error) {
	var docs []entity.Document
	query := r.db.WithContext(ctx).Preload("Recipients")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&docs).Error
	return docs, err
}
