package entity

import "time"

// 升级模式常量
const (
	EscalationModeSequential = "sequential"
	EscalationModeParallel   = "parallel"
)

// EscalationState 升级时钟——每张活动卡片一条
// deadline = last_action_at + timeout_ms，全部落库，进程重启后可完整重建
type EscalationState struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	CardID     string    `json:"card_id" gorm:"size:36;uniqueIndex;not null"`
	DocumentID string    `json:"document_id" gorm:"size:36;index"`
	Mode       string    `json:"mode" gorm:"size:20;not null;default:'sequential'"`
	TimeoutMs  int64     `json:"timeout_ms" gorm:"not null"`
	Cyclic     bool      `json:"cyclic" gorm:"default:false"`
	Deadline   time.Time `json:"deadline" gorm:"not null;index"`
	Stopped    bool      `json:"stopped" gorm:"default:false;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (EscalationState) TableName() string {
	return "escalation_states"
}
