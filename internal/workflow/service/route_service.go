package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MarioSri/docflow/internal/workflow/engine"
	"github.com/MarioSri/docflow/internal/workflow/entity"
	"github.com/MarioSri/docflow/internal/workflow/repository"
	"github.com/google/uuid"
)

// RouteService 路由模板服务
// 模板发布后不可变；在途卡片持有自己的快照，不受模板后续变更影响
type RouteService struct {
	repo *repository.RouteRepository
}

// NewRouteService 创建路由模板服务
func NewRouteService(repo *repository.RouteRepository) *RouteService {
	return &RouteService{repo: repo}
}

// CreateRouteRequest 创建路由模板请求
type CreateRouteRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Type        string                 `json:"type" binding:"required"`
	Steps       []entity.WorkflowStep  `json:"steps"`
	Escalation  *entity.AutoEscalation `json:"escalation"`
	BounceLimit int                    `json:"bounce_limit"`
}

// Create 创建路由模板（draft状态），定义非法直接拒绝
func (s *RouteService) Create(ctx context.Context, createdBy string, req *CreateRouteRequest) (*entity.WorkflowRoute, error) {
	spec := &engine.RouteSpec{
		Type:        req.Type,
		BounceLimit: req.BounceLimit,
	}
	for _, st := range req.Steps {
		spec.Steps = append(spec.Steps, engine.StepSpec{
			Order:           st.Order,
			Role:            st.Role,
			Required:        st.Required,
			TimeoutMs:       entity.TimeoutToMs(st.TimeoutValue, st.TimeoutUnit),
			EscalationRoles: st.EscalationRoles,
		})
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	route := &entity.WorkflowRoute{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		BounceLimit: req.BounceLimit,
		Status:      entity.RouteStatusDraft,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(req.Steps) > 0 {
		route.Steps, _ = json.Marshal(req.Steps)
	} else {
		route.Steps = json.RawMessage("[]")
	}
	if req.Escalation != nil {
		route.Escalation, _ = json.Marshal(req.Escalation)
	}

	if err := s.repo.Create(ctx, route); err != nil {
		return nil, fmt.Errorf("创建路由模板失败: %w", err)
	}
	return route, nil
}

// Get 查模板
func (s *RouteService) Get(ctx context.Context, id string) (*entity.WorkflowRoute, error) {
	return s.repo.FindByID(ctx, id)
}

// List 模板列表（可按状态过滤）
func (s *RouteService) List(ctx context.Context, status string) ([]entity.WorkflowRoute, error) {
	return s.repo.List(ctx, status)
}

// Publish 发布模板，此后不可再改
func (s *RouteService) Publish(ctx context.Context, id string) (*entity.WorkflowRoute, error) {
	if err := s.repo.Publish(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// Update 更新draft模板
func (s *RouteService) Update(ctx context.Context, id string, req *CreateRouteRequest) (*entity.WorkflowRoute, error) {
	route, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if route.Status != entity.RouteStatusDraft {
		return nil, fmt.Errorf("%w: 已发布模板不可修改", engine.ErrInvalidRoute)
	}

	route.Name = req.Name
	route.Description = req.Description
	route.Type = req.Type
	route.BounceLimit = req.BounceLimit
	if len(req.Steps) > 0 {
		route.Steps, _ = json.Marshal(req.Steps)
	}
	if req.Escalation != nil {
		route.Escalation, _ = json.Marshal(req.Escalation)
	}
	route.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, route); err != nil {
		return nil, err
	}
	return route, nil
}
