package repository

import (
	"context"
	"errors"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/entity"
	"gorm.io/gorm"
)

// RouteRepository 路由模板仓储
type RouteRepository struct {
	db *gorm.DB
}

// NewRouteRepository 创建路由模板仓储
func NewRouteRepository(db *gorm.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// Create 创建路由模板
func (r *RouteRepository) Create(ctx context.Context, route *entity.WorkflowRoute) error {
	return r.db.WithContext(ctx).Create(route).Error
}

// FindByID 根据ID查找模板
func (r *RouteRepository) FindByID(ctx context.Context, id string) (*entity.WorkflowRoute, error) {
	var route entity.WorkflowRoute
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&route).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &route, nil
}

// List 模板列表
func (r *RouteRepository) List(ctx context.Context, status string) ([]entity.WorkflowRoute, error) {
	var routes []entity.WorkflowRoute
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&routes).Error
	return routes, err
}

// Publish 发布模板（发布后视为不可变）
func (r *RouteRepository) Publish(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&entity.WorkflowRoute{}).
		Where("id = ? AND status = ?", id, "draft").
		Updates(map[string]interface{}{
			"status":     "published",
			"updated_at": time.Now(),
		}).Error
}

// Update 更新模板（仅draft状态允许）
func (r *RouteRepository) Update(ctx context.Context, route *entity.WorkflowRoute) error {
	result := r.db.WithContext(ctx).
		Model(&entity.WorkflowRoute{}).
		Where("id = ? AND status = ?", route.ID, "draft").
		Updates(route)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
