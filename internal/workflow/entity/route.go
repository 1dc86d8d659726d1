package entity

import (
	"encoding/json"
	"time"
)

// 路由类型常量
const (
	RoutingSequential    = "sequential"
	RoutingParallel      = "parallel"
	RoutingReverse       = "reverse"
	RoutingBidirectional = "bidirectional"
)

// 路由模板状态常量
const (
	RouteStatusDraft     = "draft"
	RouteStatusPublished = "published"
)

// 超时单位常量
const (
	UnitSeconds = "seconds"
	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDays    = "days"
	UnitWeeks   = "weeks"
	UnitMonths  = "months"
)

// WorkflowRoute 路由模板（发布后不可变，被多份文档引用）
type WorkflowRoute struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	Name        string          `json:"name" gorm:"size:200;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Type        string          `json:"type" gorm:"size:20;not null;default:'sequential'"`
	Steps       json.RawMessage `json:"steps" gorm:"type:jsonb;default:'[]'"`
	Escalation  json.RawMessage `json:"auto_escalation" gorm:"column:auto_escalation;type:jsonb"`
	BounceLimit int             `json:"bounce_limit" gorm:"default:0"`
	Status      string          `json:"status" gorm:"size:20;not null;default:'draft'"`
	CreatedBy   string          `json:"created_by" gorm:"size:64"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (WorkflowRoute) TableName() string {
	return "workflow_routes"
}

// WorkflowStep 路由步骤（steps JSONB 内的单项）
type WorkflowStep struct {
	Order           int      `json:"order"`
	Role            string   `json:"role"`
	Required        int      `json:"required_approvals"`
	TimeoutValue    int      `json:"timeout_value,omitempty"`
	TimeoutUnit     string   `json:"timeout_unit,omitempty"`
	EscalationRoles []string `json:"escalation_roles,omitempty"`
}

// AutoEscalation 自动升级策略（auto_escalation JSONB）
type AutoEscalation struct {
	Enabled      bool   `json:"enabled"`
	TimeoutValue int    `json:"timeout_value"`
	TimeoutUnit  string `json:"timeout_unit"`
	Cyclic       bool   `json:"cyclic"`
}

// TimeoutToMs 配置的超时换算为毫秒（months 按30天计）
// 调度器本身不感知单位，换算只在arm时做一次
func TimeoutToMs(value int, unit string) int64 {
	var factor int64
	switch unit {
	case UnitSeconds:
		factor = 1000
	case UnitMinutes:
		factor = 60 * 1000
	case UnitHours:
		factor = 60 * 60 * 1000
	case UnitDays:
		factor = 24 * 60 * 60 * 1000
	case UnitWeeks:
		factor = 7 * 24 * 60 * 60 * 1000
	case UnitMonths:
		factor = 30 * 24 * 60 * 60 * 1000
	default:
		factor = 60 * 1000
	}
	return int64(value) * factor
}
