package handler

import (
	"github.com/MarioSri/docflow/internal/workflow/service"
	"github.com/gin-gonic/gin"
)

// ApprovalHandler 审批处理器
type ApprovalHandler struct {
	svc *service.ApprovalService
}

// NewApprovalHandler 创建审批处理器
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// ActionRequest 审批动作请求
type ActionRequest struct {
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

// Get 查卡片
// GET /api/v1/approvals/:id
func (h *ApprovalHandler) Get(c *gin.Context) {
	card, err := h.svc.GetCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, card)
}

// Pending 当前用户的待办卡片
// GET /api/v1/approvals/pending
func (h *ApprovalHandler) Pending(c *gin.Context) {
	cards, err := h.svc.GetPending(c.Request.Context(), GetUserID(c))
	if err != nil {
		InternalError(c, "获取待办失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": cards})
}

// Approve 审批通过
// POST /api/v1/approvals/:id/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req ActionRequest
	c.ShouldBindJSON(&req)

	card, err := h.svc.Approve(c.Request.Context(), c.Param("id"), GetUserID(c), req.Comment)
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, card)
}

// Reject 驳回（理由必填）
// POST /api/v1/approvals/:id/reject
func (h *ApprovalHandler) Reject(c *gin.Context) {
	var req ActionRequest
	c.ShouldBindJSON(&req)

	card, err := h.svc.Reject(c.Request.Context(), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, card)
}

// CancelEscalation 取消升级时钟
// POST /api/v1/approvals/:id/cancel-escalation
func (h *ApprovalHandler) CancelEscalation(c *gin.Context) {
	if err := h.svc.CancelEscalation(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		DomainError(c, err)
		return
	}
	Success(c, gin.H{"canceled": true})
}

// GroupStatus 并行组完成度
// GET /api/v1/approvals/group/:tracking_id
func (h *ApprovalHandler) GroupStatus(c *gin.Context) {
	result, err := h.svc.GroupStatus(c.Request.Context(), c.Param("tracking_id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, result)
}

// ReopenBypass 已驳回卡片的绕行复活（仅授权角色，路由层限制）
// POST /api/v1/approvals/:id/reopen-bypass
func (h *ApprovalHandler) ReopenBypass(c *gin.Context) {
	card, err := h.svc.ReopenBypass(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		DomainError(c, err)
		return
	}
	Created(c, card)
}
