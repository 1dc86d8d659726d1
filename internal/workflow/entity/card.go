package entity

import (
	"encoding/json"
	"time"
)

// 审批卡片状态常量
const (
	CardStatusPending   = "pending"
	CardStatusApproved  = "approved"
	CardStatusRejected  = "rejected"
	CardStatusEscalated = "escalated"
	CardStatusBypassed  = "bypassed"
)

// 审批动作常量
const (
	ActionSubmitted = "submitted"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
	ActionEscalated = "escalated"
	ActionBounced   = "bounced"
	ActionBypassed  = "bypassed"
	ActionCanceled  = "canceled"
)

// ApprovalCard 审批卡片——路由执行的活动记录
// 顺序路由：一份文档一张卡；并行路由：每个收件人一张兄弟卡，共享 tracking_card_id
type ApprovalCard struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID         string          `json:"approval_id" gorm:"size:50;uniqueIndex"`
	TrackingCardID     string          `json:"tracking_card_id" gorm:"size:36;not null;index"`
	DocumentID         string          `json:"document_id" gorm:"size:36;not null;index"`
	Title              string          `json:"title" gorm:"size:256;not null"`
	Priority           string          `json:"priority" gorm:"size:20;default:'normal'"`
	Status             string          `json:"status" gorm:"size:20;not null;default:'pending';index"`
	SubmitterID        string          `json:"submitter_id" gorm:"size:64"`
	CurrentRecipientID string          `json:"current_recipient_id" gorm:"size:64;index"`
	CurrentStep        int             `json:"current_step" gorm:"default:0"`
	RoutingType        string          `json:"routing_type" gorm:"size:20;not null"`
	IsParallel         bool            `json:"is_parallel" gorm:"default:false"`
	IsEmergency        bool            `json:"is_emergency" gorm:"default:false"`
	CascadeOnReject    bool            `json:"cascade_on_reject" gorm:"default:false"`
	EscalationLevel    int             `json:"escalation_level" gorm:"default:0"`
	BounceCount        int             `json:"bounce_count" gorm:"default:0"`
	BounceLimit        int             `json:"bounce_limit" gorm:"default:0"`
	LastActionAt       time.Time       `json:"last_action_at"`
	Workflow           json.RawMessage `json:"workflow,omitempty" gorm:"type:jsonb"`
	Metadata           JSONB           `json:"metadata,omitempty" gorm:"type:jsonb"`

	// 乐观并发控制：所有状态迁移都以 version 做 compare-and-set
	Version int64 `json:"version" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Recipients []CardRecipient `json:"recipients,omitempty" gorm:"foreignKey:CardID"`
}

func (ApprovalCard) TableName() string {
	return "approval_cards"
}

// CardRecipient 卡片收件人（含步骤归属，支持同一步多个会签人）
type CardRecipient struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	CardID          string     `json:"card_id" gorm:"size:36;not null;index"`
	RecipientID     string     `json:"recipient_id" gorm:"size:64;not null;index"`
	RecipientUserID string     `json:"recipient_user_id" gorm:"size:64"`
	RecipientName   string     `json:"recipient_name" gorm:"size:128"`
	OrderIndex      int        `json:"order_index" gorm:"default:0"`
	StepIndex       int        `json:"step_index" gorm:"default:0"`
	Status          string     `json:"status" gorm:"size:20;not null;default:'pending'"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
}

func (CardRecipient) TableName() string {
	return "approval_card_recipients"
}

// Approval 审批动作流水（append-only审计）
type Approval struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	CardID       string    `json:"card_id" gorm:"size:36;not null;index"`
	DocumentID   string    `json:"document_id" gorm:"size:36;index"`
	ApproverID   string    `json:"approver_id" gorm:"size:64;not null"`
	ApproverName string    `json:"approver_name" gorm:"size:128"`
	Action       string    `json:"action" gorm:"size:20;not null"`
	Status       string    `json:"status" gorm:"size:20;not null"`
	Comments     string    `json:"comments" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Approval) TableName() string {
	return "approvals"
}
