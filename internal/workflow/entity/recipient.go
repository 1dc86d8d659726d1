package entity

import "time"

// Recipient 收件人目录条目（引擎内部只存id，名字按需解析）
type Recipient struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      string    `json:"user_id" gorm:"size:64;uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Email       string    `json:"email" gorm:"size:128;index"`
	Role        string    `json:"role" gorm:"size:50;default:'employee';index"`
	Department  string    `json:"department" gorm:"size:100"`
	Branch      string    `json:"branch" gorm:"size:100"`
	Designation string    `json:"designation" gorm:"size:100"`
	Phone       string    `json:"phone" gorm:"size:32"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Recipient) TableName() string {
	return "recipients"
}
