package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// 文档状态常量
const (
	DocumentStatusPending  = "pending"
	DocumentStatusApproved = "approved"
	DocumentStatusRejected = "rejected"
	DocumentStatusBypassed = "bypassed"
)

// 优先级常量
const (
	PriorityNormal    = "normal"
	PriorityHigh      = "high"
	PriorityEmergency = "emergency"
)

// Document 提交的文档（一次路由实例的根记录）
type Document struct {
	TrackingID  string `json:"tracking_id" gorm:"primaryKey;size:36"`
	Title       string `json:"title" gorm:"size:256;not null"`
	Description string `json:"description" gorm:"type:text"`
	Type        string `json:"type" gorm:"size:50;default:'letter'"`
	Priority    string `json:"priority" gorm:"size:20;default:'normal'"`
	Status      string `json:"status" gorm:"size:20;not null;default:'pending'"`
	SubmitterID string `json:"submitter_id" gorm:"size:64;not null"`
	RoutingType string `json:"routing_type" gorm:"size:20;not null"`
	IsEmergency bool   `json:"is_emergency" gorm:"default:false"`
	IsParallel  bool   `json:"is_parallel" gorm:"default:false"`

	// 附件（二进制内容存MinIO，这里只存对象引用）
	AttachmentKey  string `json:"attachment_key,omitempty" gorm:"size:512"`
	AttachmentName string `json:"attachment_name,omitempty" gorm:"size:256"`

	Metadata  JSONB     `json:"metadata,omitempty" gorm:"type:jsonb"`
	Workflow  JSONB     `json:"workflow,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Recipients []DocumentRecipient `json:"recipients,omitempty" gorm:"foreignKey:DocumentID;references:TrackingID"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentRecipient 文档收件人（完整链路，含顺序）
type DocumentRecipient struct {
	ID              string `json:"id" gorm:"primaryKey;size:36"`
	DocumentID      string `json:"document_id" gorm:"size:36;not null;index"`
	RecipientID     string `json:"recipient_id" gorm:"size:64;not null"`
	RecipientUserID string `json:"recipient_user_id" gorm:"size:64"`
	OrderIndex      int    `json:"order_index" gorm:"default:0"`
	Status          string `json:"status" gorm:"size:20;not null;default:'pending'"`
}

func (DocumentRecipient) TableName() string {
	return "document_recipients"
}
