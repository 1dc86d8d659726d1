package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Document   *DocumentRepository
	Route      *RouteRepository
	Card       *CardRepository
	Recipient  *RecipientRepository
	Approval   *ApprovalRepository
	Escalation *EscalationRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Document:   NewDocumentRepository(db),
		Route:      NewRouteRepository(db),
		Card:       NewCardRepository(db),
		Recipient:  NewRecipientRepository(db),
		Approval:   NewApprovalRepository(db),
		Escalation: NewEscalationRepository(db),
	}
}
